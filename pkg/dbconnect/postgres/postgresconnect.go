package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/developkariyer/IWApim/config"
	"github.com/developkariyer/IWApim/pkg/logger"
)

const maxRetries = 10
const dbMaxOpenConns = 20
const retryDelay = 5 * time.Second

type PostgresDatabase struct {
	config.DbConfig
	db  *sql.DB
	mu  sync.Mutex // Для защиты доступа к db
	log logger.Logger

	retries int
	delay   time.Duration
}

func NewPgConnector(dbConfig config.DbConfig, log logger.Logger) *PostgresDatabase {
	if log == nil {
		log = logger.Discard()
	}
	return &PostgresDatabase{DbConfig: dbConfig, log: log, retries: maxRetries, delay: retryDelay}
}

// Connect opens the pool, retrying while the server comes up.
func (pg *PostgresDatabase) Connect(ctx context.Context) (*sql.DB, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db != nil {
		return pg.db, nil
	}

	var err error
	conStr := pg.GetConnectionString()

	for i := 0; i < pg.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pg.delay):
			}
		}
		var db *sql.DB
		db, err = sql.Open("postgres", conStr)
		if err != nil {
			pg.log.Warn("Failed to connect to Postgres (attempt %d/%d): %v", i+1, pg.retries, err)
			continue
		}

		db.SetMaxOpenConns(dbMaxOpenConns)

		if err = db.PingContext(ctx); err != nil {
			pg.log.Warn("Failed to ping Postgres db (attempt %d/%d): %v", i+1, pg.retries, err)
			db.Close()
			continue
		}

		pg.log.Log("Successfully connected to Postgres")
		pg.db = db
		return pg.db, nil
	}
	return nil, fmt.Errorf("postgres unreachable after %d attempts: %w", pg.retries, err)
}

func (pg *PostgresDatabase) Ping(ctx context.Context) error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.db == nil {
		return fmt.Errorf("database connection is not established")
	}

	if err := pg.db.PingContext(ctx); err != nil {
		pg.db.Close()
		pg.db = nil
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (pg *PostgresDatabase) Close() error {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	if pg.db == nil {
		return nil
	}
	err := pg.db.Close()
	pg.db = nil
	return err
}

// OpenGorm shares an open pool with gorm for the catalog repositories.
func OpenGorm(db *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return gdb, nil
}
