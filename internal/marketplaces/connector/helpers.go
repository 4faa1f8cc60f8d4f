package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/internal/core/models"
	"github.com/developkariyer/IWApim/internal/core/services"
	"github.com/developkariyer/IWApim/internal/importer"
)

type Window struct {
	From time.Time
	To   time.Time
}

// OrderWindows splits (last, now] into step-long windows, starting no earlier than now-maxBack.
func OrderWindows(last time.Time, maxBack, step time.Duration, now time.Time) []Window {
	if step <= 0 {
		step = 24 * time.Hour
	}
	earliest := now.Add(-maxBack)
	from := last
	if from.IsZero() || from.Before(earliest) {
		from = earliest
	}
	var out []Window
	for from.Before(now) {
		to := from.Add(step)
		if to.After(now) {
			to = now
		}
		out = append(out, Window{From: from, To: to})
		from = to
	}
	return out
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q", core.ErrData, s)
	}
	return d, nil
}

// Decimal parses a marketplace price; blanks are zero.
func Decimal(s string) (decimal.Decimal, error) {
	return parseDecimal(s)
}

func MustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// Upsert runs one listing through the importer and folds the outcome into stats.
// Data errors are logged and counted as skipped.
func (b *Base) Upsert(ctx context.Context, f importer.Fields, placement []string, opts services.ImportOptions, stats *services.ImportStats) error {
	_, outcome, err := b.Importer.Upsert(ctx, b.mp, f, placement, opts)
	if err != nil {
		if core.IsSkippable(err) {
			b.Log.Warn("listing %q skipped: %v", f.UniqueMarketplaceID, err)
			stats.Skipped++
			return nil
		}
		return err
	}
	importer.Record(stats, outcome)
	return nil
}

// ReplaceImport runs fn inside a tombstone-then-resurrect pass. The tombstone is
// only committed when fn returns without error.
func (b *Base) ReplaceImport(ctx context.Context, fn func() error) (int, error) {
	if err := b.Importer.BeginReplace(ctx, b.mp); err != nil {
		return 0, err
	}
	if err := fn(); err != nil {
		b.Importer.Abort(b.mp)
		return 0, err
	}
	return b.Importer.Commit(ctx, b.mp)
}

// SaveOrders stores orders keyed by their marketplace id.
func (b *Base) SaveOrders(ctx context.Context, orders map[string]json.RawMessage) (int, error) {
	if len(orders) == 0 {
		return 0, nil
	}
	if b.Orders == nil {
		return 0, fmt.Errorf("%w: order store is not configured", core.ErrConfig)
	}
	batch := make([]models.Order, 0, len(orders))
	for id, raw := range orders {
		if id == "" {
			continue
		}
		batch = append(batch, models.Order{MarketplaceID: b.mp.ID, OrderID: id, JSON: raw})
	}
	if err := b.Orders.UpsertBatch(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (b *Base) ReplaceInventory(ctx context.Context, country string, records []models.InventoryRecord) error {
	if b.Inventory == nil {
		return fmt.Errorf("%w: inventory store is not configured", core.ErrConfig)
	}
	for i := range records {
		records[i].MarketplaceID = b.mp.ID
		records[i].Country = country
	}
	return b.Inventory.Replace(ctx, b.mp.ID, country, records)
}

// LastOrderValue returns the largest stored value of an order field, "" when none.
func (b *Base) LastOrderValue(ctx context.Context, field string) (string, error) {
	if b.Orders == nil {
		return "", nil
	}
	return b.Orders.LastValue(ctx, b.mp.ID, field)
}

// LastOrderTime reads the newest stored value of a timestamp field of the orders.
func (b *Base) LastOrderTime(ctx context.Context, field string) (time.Time, error) {
	if b.Orders == nil {
		return time.Time{}, nil
	}
	raw, err := b.Orders.LastValue(ctx, b.mp.ID, field)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	b.Log.Warn("stored %s %q is not a timestamp, starting from the maximum window", field, raw)
	return time.Time{}, nil
}
