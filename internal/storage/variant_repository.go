package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/developkariyer/IWApim/internal/core/models"
)

var ErrNotFound = errors.New("storage: record not found")

// unpublishChunk bounds the IN list of a single UPDATE.
const unpublishChunk = 1000

type VariantRepository struct {
	db *gorm.DB
}

func NewVariantRepository(db *gorm.DB) *VariantRepository {
	return &VariantRepository{db: db}
}

func (r *VariantRepository) FindByUnique(ctx context.Context, marketplaceID uint, uniqueID string) (*models.Variant, error) {
	var v models.Variant
	err := r.db.WithContext(ctx).
		Where("marketplace_id = ? AND unique_marketplace_id = ?", marketplaceID, uniqueID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find variant %d/%s: %w", marketplaceID, uniqueID, err)
	}
	return &v, nil
}

func (r *VariantRepository) Create(ctx context.Context, v *models.Variant) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("create variant %s: %w", v.UniqueMarketplaceID, err)
	}
	return nil
}

func (r *VariantRepository) Update(ctx context.Context, v *models.Variant) error {
	if err := r.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("update variant %s: %w", v.UniqueMarketplaceID, err)
	}
	return nil
}

func (r *VariantRepository) ListByMarketplace(ctx context.Context, marketplaceID uint) ([]models.Variant, error) {
	var out []models.Variant
	err := r.db.WithContext(ctx).
		Where("marketplace_id = ?", marketplaceID).
		Order("unique_marketplace_id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list variants of %d: %w", marketplaceID, err)
	}
	return out, nil
}

// PublishedIDs returns the unique ids currently published for a marketplace.
func (r *VariantRepository) PublishedIDs(ctx context.Context, marketplaceID uint) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("marketplace_id = ? AND published = ?", marketplaceID, true).
		Pluck("unique_marketplace_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("published variants of %d: %w", marketplaceID, err)
	}
	return ids, nil
}

// Unpublish flips published=false; variants are never hard-deleted.
func (r *VariantRepository) Unpublish(ctx context.Context, marketplaceID uint, uniqueIDs []string) (int64, error) {
	var total int64
	for start := 0; start < len(uniqueIDs); start += unpublishChunk {
		end := start + unpublishChunk
		if end > len(uniqueIDs) {
			end = len(uniqueIDs)
		}
		res := r.db.WithContext(ctx).
			Model(&models.Variant{}).
			Where("marketplace_id = ? AND unique_marketplace_id IN ?", marketplaceID, uniqueIDs[start:end]).
			Update("published", false)
		if res.Error != nil {
			return total, fmt.Errorf("unpublish variants of %d: %w", marketplaceID, res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

// SetErpListing stores the ERP listing id and sync code matched for a variant.
func (r *VariantRepository) SetErpListing(ctx context.Context, id uuid.UUID, listingID, syncCode string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Variant{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"wisersell_listing_id": listingID, "sync_code": syncCode}).Error
	if err != nil {
		return fmt.Errorf("set erp listing of %s: %w", id, err)
	}
	return nil
}
