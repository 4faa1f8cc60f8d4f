package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type CurrencyRepository struct {
	db *sql.DB
}

func NewCurrencyRepository(db *sql.DB) *CurrencyRepository {
	return &CurrencyRepository{db: db}
}

// RateOn returns the nearest rate on or before day.
func (r *CurrencyRepository) RateOn(ctx context.Context, currency string, day time.Time) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM iwapim.currency_history
		WHERE currency = $1 AND date <= $2
		ORDER BY date DESC
		LIMIT 1`,
		currency, day.Format("2006-01-02"),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate of %s on %s: %w", currency, day.Format("2006-01-02"), err)
	}
	return value, nil
}

func (r *CurrencyRepository) Save(ctx context.Context, currency string, day time.Time, value decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO iwapim.currency_history (currency, date, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (currency, date) DO UPDATE SET value = EXCLUDED.value`,
		currency, day.Format("2006-01-02"), value,
	)
	if err != nil {
		return fmt.Errorf("save rate of %s: %w", currency, err)
	}
	return nil
}
