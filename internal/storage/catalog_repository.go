package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/developkariyer/IWApim/internal/core/models"
)

// CatalogRepository reads and writes the local products and categories mirrored into the ERP.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.db.WithContext(ctx).Order("category").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, c *models.Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create category %s: %w", c.Name, err)
	}
	return nil
}

func (r *CatalogRepository) SetCategoryErpID(ctx context.Context, id uint, erpID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Update("wisersell_category_id", erpID).Error
	if err != nil {
		return fmt.Errorf("set category %d erp id: %w", id, err)
	}
	return nil
}

// ProductsWithSku returns local products that carry an iwasku.
func (r *CatalogRepository) ProductsWithSku(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := r.db.WithContext(ctx).
		Where("iwasku <> ''").
		Order("iwasku").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) FindProductBySku(ctx context.Context, sku string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("iwasku = ?", sku).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", sku, err)
	}
	return &p, nil
}

func (r *CatalogRepository) SaveProduct(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save product %s: %w", p.Iwasku, err)
	}
	return nil
}
