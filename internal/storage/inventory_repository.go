package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/developkariyer/IWApim/internal/core/models"
)

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Replace overwrites the snapshot of one marketplace/country wholesale.
func (r *InventoryRepository) Replace(ctx context.Context, marketplaceID uint, country string, records []models.InventoryRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inventory tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM iwapim.inventory_summaries WHERE marketplace_id = $1 AND country = $2`,
		marketplaceID, country,
	); err != nil {
		return fmt.Errorf("clear inventory %d/%s: %w", marketplaceID, country, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("iwapim", "inventory_summaries",
		"marketplace_id", "country", "sku", "external_id", "quantity", "detail"))
	if err != nil {
		return fmt.Errorf("prepare copyin error: %w", err)
	}
	for i, rec := range records {
		detail := string(rec.Detail)
		if detail == "" {
			detail = "{}"
		}
		if _, err := stmt.ExecContext(ctx, marketplaceID, country, rec.Sku, rec.ExternalID, rec.Quantity, detail); err != nil {
			stmt.Close()
			return fmt.Errorf("exec copyin error at row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("final exec copyin error: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close stmt error: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory: %w", err)
	}
	return nil
}
