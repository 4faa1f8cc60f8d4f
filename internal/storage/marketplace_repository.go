package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/developkariyer/IWApim/internal/core/models"
)

type MarketplaceRepository struct {
	db *gorm.DB
}

func NewMarketplaceRepository(db *gorm.DB) *MarketplaceRepository {
	return &MarketplaceRepository{db: db}
}

func (r *MarketplaceRepository) ListPublished(ctx context.Context) ([]models.Marketplace, error) {
	var out []models.Marketplace
	err := r.db.WithContext(ctx).Where("published = ?", true).Order("key").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list marketplaces: %w", err)
	}
	return out, nil
}

// FindByKeys returns the marketplaces with the given keys regardless of the published flag;
// construction of their connectors decides whether they may run.
func (r *MarketplaceRepository) FindByKeys(ctx context.Context, keys []string) ([]models.Marketplace, error) {
	var out []models.Marketplace
	err := r.db.WithContext(ctx).Where("key IN ?", keys).Order("key").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find marketplaces %v: %w", keys, err)
	}
	return out, nil
}

func (r *MarketplaceRepository) FindByKey(ctx context.Context, key string) (*models.Marketplace, error) {
	var m models.Marketplace
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find marketplace %s: %w", key, err)
	}
	return &m, nil
}

// WithErpStore lists marketplaces mirrored into the ERP.
func (r *MarketplaceRepository) WithErpStore(ctx context.Context) ([]models.Marketplace, error) {
	var out []models.Marketplace
	err := r.db.WithContext(ctx).Where("wisersell_store_id <> ''").Order("key").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list erp marketplaces: %w", err)
	}
	return out, nil
}
