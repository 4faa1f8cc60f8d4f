package infrastructure

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/developkariyer/IWApim/pkg/dbconnect/migration"
)

// Migration is applied once and recorded by name in migrations.migrations.
type Migration struct {
	Name  string
	Query string
}

func (m *Migration) UpMigration(db *sql.DB) error {
	if ok, err := checkAndSkipMigration(db, m.Name); err != nil {
		return err
	} else if ok {
		return nil
	}
	if err := executeAndMarkMigration(db, m.Query, m.Name); err != nil {
		return err
	}
	log.Printf("Migration '%s' completed successfully.", m.Name)
	return nil
}

func checkAndSkipMigration(db *sql.DB, name string) (bool, error) {
	var migrationExists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM migrations.migrations WHERE name = $1)", name).Scan(&migrationExists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	if migrationExists {
		log.Printf("Migration '%s' already completed. Skipping.", name)
	}
	return migrationExists, nil
}

func executeAndMarkMigration(db *sql.DB, query, name string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin '%s': %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to apply '%s': %w", name, err)
	}
	if _, err := tx.Exec("INSERT INTO migrations.migrations (name, time) VALUES ($1, current_timestamp)", name); err != nil {
		return fmt.Errorf("failed to mark '%s' migration as complete: %w", name, err)
	}
	return tx.Commit()
}

// MigrationsTable holds the bookkeeping table itself, so it is not recorded.
type MigrationsTable struct{}

func (m *MigrationsTable) UpMigration(db *sql.DB) error {
	query := `
	CREATE SCHEMA IF NOT EXISTS migrations;
	CREATE TABLE IF NOT EXISTS migrations.migrations (
		id SERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		time TIMESTAMP WITH TIME ZONE NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// All lists the schema in apply order.
func All() []migration.MigrationInterface {
	return []migration.MigrationInterface{
		&MigrationsTable{},
		&Migration{Name: "iwapim.schema", Query: `CREATE SCHEMA IF NOT EXISTS iwapim;`},
		&Migration{Name: "iwapim.marketplaces", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.marketplaces (
			id SERIAL PRIMARY KEY,
			key VARCHAR(190) NOT NULL UNIQUE,
			marketplace_type VARCHAR(32) NOT NULL,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			credentials JSONB,
			countries TEXT[],
			main_country VARCHAR(8),
			fba_regions TEXT[],
			currency VARCHAR(8),
			wisersell_store_id VARCHAR(64),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`},
		&Migration{Name: "iwapim.categories", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.categories (
			id SERIAL PRIMARY KEY,
			category VARCHAR(190) NOT NULL UNIQUE,
			wisersell_category_id VARCHAR(64),
			published BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`},
		&Migration{Name: "iwapim.products", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.products (
			id SERIAL PRIMARY KEY,
			iwasku VARCHAR(64),
			name TEXT,
			category_name TEXT,
			variation_size TEXT,
			variation_color TEXT,
			package_width NUMERIC(10,2),
			package_length NUMERIC(10,2),
			package_height NUMERIC(10,2),
			package_weight NUMERIC(10,3),
			published BOOLEAN NOT NULL DEFAULT FALSE,
			wisersell_id VARCHAR(64),
			wisersell_json JSONB,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS products_iwasku_idx ON iwapim.products(iwasku);`},
		&Migration{Name: "iwapim.variant_products", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.variant_products (
			id UUID PRIMARY KEY,
			marketplace_id INT NOT NULL REFERENCES iwapim.marketplaces(id),
			unique_marketplace_id VARCHAR(190) NOT NULL,
			sku VARCHAR(190),
			ean VARCHAR(64),
			title TEXT,
			attributes TEXT,
			sale_price NUMERIC(14,4),
			sale_currency VARCHAR(8),
			quantity INT NOT NULL DEFAULT 0,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			url TEXT,
			image_url TEXT,
			placement_path TEXT,
			store_product_id VARCHAR(190),
			variant_code VARCHAR(190),
			parent_product_id INT REFERENCES iwapim.products(id),
			api_response_json JSONB,
			parent_response_json JSONB,
			wisersell_listing_id VARCHAR(64),
			sync_code VARCHAR(40),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS variant_products_marketplace_unique_idx
			ON iwapim.variant_products(marketplace_id, unique_marketplace_id);`},
		&Migration{Name: "iwapim.marketplace_orders", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.marketplace_orders (
			id BIGSERIAL PRIMARY KEY,
			marketplace_id INT NOT NULL REFERENCES iwapim.marketplaces(id),
			order_id VARCHAR(190) NOT NULL,
			json JSONB NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (marketplace_id, order_id)
		);`},
		&Migration{Name: "iwapim.inventory_summaries", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.inventory_summaries (
			id BIGSERIAL PRIMARY KEY,
			marketplace_id INT NOT NULL REFERENCES iwapim.marketplaces(id),
			country VARCHAR(8) NOT NULL,
			sku VARCHAR(190),
			external_id VARCHAR(190),
			quantity INT NOT NULL DEFAULT 0,
			detail JSONB
		);
		CREATE INDEX IF NOT EXISTS inventory_summaries_marketplace_idx
			ON iwapim.inventory_summaries(marketplace_id, country);`},
		&Migration{Name: "iwapim.currency_history", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.currency_history (
			currency VARCHAR(8) NOT NULL,
			date DATE NOT NULL,
			value NUMERIC(18,6) NOT NULL,
			PRIMARY KEY (currency, date)
		);`},
		&Migration{Name: "iwapim.registry", Query: `
		CREATE TABLE IF NOT EXISTS iwapim.registry (
			namespace VARCHAR(64) NOT NULL,
			key VARCHAR(190) NOT NULL,
			value TEXT,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (namespace, key)
		);`},
	}
}

// Up applies every migration in order and stops at the first failure.
func Up(db *sql.DB) error {
	return migration.Apply(db, All()...)
}
