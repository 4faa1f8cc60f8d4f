package migration

import (
	"database/sql"
	"fmt"
)

type MigrationInterface interface {
	UpMigration(*sql.DB) error
}

// Apply runs migrations in order; the first failure stops the rest.
func Apply(db *sql.DB, migrations ...MigrationInterface) error {
	for i, m := range migrations {
		if err := m.UpMigration(db); err != nil {
			return fmt.Errorf("migration %d of %d: %w", i+1, len(migrations), err)
		}
	}
	return nil
}
