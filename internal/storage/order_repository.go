package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/developkariyer/IWApim/internal/core/models"
)

const orderBatchSize = 200

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// UpsertBatch inserts or replaces orders keyed by (marketplace_id, order_id).
// Each batch is applied atomically, so overlapping date windows stay idempotent.
func (r *OrderRepository) UpsertBatch(ctx context.Context, orders []models.Order) error {
	for start := 0; start < len(orders); start += orderBatchSize {
		end := start + orderBatchSize
		if end > len(orders) {
			end = len(orders)
		}
		if err := r.upsert(ctx, dedupeOrders(orders[start:end])); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) upsert(ctx context.Context, batch []models.Order) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin orders tx: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*3)
	for i, o := range batch {
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, o.MarketplaceID, o.OrderID, string(o.JSON))
	}
	query := `
		INSERT INTO iwapim.marketplace_orders (marketplace_id, order_id, json)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (marketplace_id, order_id) DO UPDATE
		SET json = EXCLUDED.json, updated_at = current_timestamp`

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert orders: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit orders: %w", err)
	}
	return nil
}

// dedupeOrders keeps the last occurrence; ON CONFLICT cannot touch a row twice in one statement.
func dedupeOrders(batch []models.Order) []models.Order {
	index := make(map[string]int, len(batch))
	out := make([]models.Order, 0, len(batch))
	for _, o := range batch {
		key := fmt.Sprintf("%d/%s", o.MarketplaceID, o.OrderID)
		if i, ok := index[key]; ok {
			out[i] = o
			continue
		}
		index[key] = len(out)
		out = append(out, o)
	}
	return out
}

// LastValue returns the greatest value of a top-level JSON field over the stored orders
// of a marketplace, e.g. the last orderPlacedDateTime. Empty when nothing is stored.
func (r *OrderRepository) LastValue(ctx context.Context, marketplaceID uint, field string) (string, error) {
	var last sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(json->>$2) FROM iwapim.marketplace_orders WHERE marketplace_id = $1`,
		marketplaceID, field,
	).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("last order %s of %d: %w", field, marketplaceID, err)
	}
	return last.String, nil
}
