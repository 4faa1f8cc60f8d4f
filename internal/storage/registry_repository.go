package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// RegistryRepository is a namespaced key/value store (e.g. amazon-asin: ASIN -> seller SKU).
type RegistryRepository struct {
	db *sql.DB
}

func NewRegistryRepository(db *sql.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

func (r *RegistryRepository) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM iwapim.registry WHERE namespace = $1 AND key = $2`,
		namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("registry %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (r *RegistryRepository) Set(ctx context.Context, namespace, key, value string) error {
	return r.SetMany(ctx, namespace, map[string]string{key: value})
}

// SetMany upserts all pairs in one transaction.
func (r *RegistryRepository) SetMany(ctx context.Context, namespace string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registry tx: %w", err)
	}
	defer tx.Rollback()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO iwapim.registry (namespace, key, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = current_timestamp`,
			namespace, k, values[k],
		); err != nil {
			return fmt.Errorf("registry set %s/%s: %w", namespace, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry: %w", err)
	}
	return nil
}
