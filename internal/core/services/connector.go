package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core/models"
)

// Connector определяет, какие операции должен поддерживать адаптер маркетплейса.
// Capabilities a marketplace does not offer return core.ErrNotSupported.
type Connector interface {
	// Download refreshes the cached listings; force bypasses the cache.
	// Returns the number of listings now cached.
	Download(ctx context.Context, force bool) (int, error)

	// Import maps cached listings into canonical variants.
	Import(ctx context.Context, opts ImportOptions) (ImportStats, error)

	DownloadOrders(ctx context.Context) (int, error)
	DownloadInventory(ctx context.Context) (int, error)

	SetInventory(ctx context.Context, v *models.Variant, qty int, opts WriteOptions) error
	SetPrice(ctx context.Context, v *models.Variant, price decimal.Decimal, currency string, opts WriteOptions) error

	Marketplace() *models.Marketplace
}

type ImportOptions struct {
	// UpdateExisting allows mutating variants that already exist.
	UpdateExisting bool
	// CreateNew allows creating variants that do not exist yet.
	CreateNew bool
}

type ImportStats struct {
	Created     int
	Updated     int
	Unchanged   int
	Skipped     int
	Unpublished int
}

func (s ImportStats) Total() int {
	return s.Created + s.Updated + s.Unchanged + s.Skipped
}

func (s *ImportStats) Add(other ImportStats) {
	s.Created += other.Created
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.Skipped += other.Skipped
	s.Unpublished += other.Unpublished
}

// WriteOptions carries the optional targeting of an inventory or price write.
type WriteOptions struct {
	Sku        string
	Country    string
	LocationID string
}
