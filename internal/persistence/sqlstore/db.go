package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for local/dev stores

	"github.com/marketboard/marketboard/internal/persistence"
)

// Open connects to the configured database and verifies connectivity.
// Supported drivers: postgres (production) and sqlite3 (local imports,
// tests).
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}

// NewStore wires both repositories over one connection pool.
func NewStore(db *sqlx.DB, timeout time.Duration) persistence.Store {
	return persistence.Store{
		Products: NewProductsRepo(db, timeout),
		Sales:    NewSalesRepo(db, timeout),
	}
}

// InitSchema creates the two event tables and their secondary indexes if
// absent. The DDL sticks to the subset both drivers accept.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			log_id         BIGINT PRIMARY KEY,
			prod_id        INTEGER NOT NULL,
			cat_id         INTEGER NOT NULL,
			fab_id         INTEGER NOT NULL,
			date_id        INTEGER NOT NULL,
			date_formatted DATE,
			created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			log_id         BIGINT PRIMARY KEY,
			prod_id        INTEGER NOT NULL,
			cat_id         INTEGER NOT NULL,
			fab_id         INTEGER NOT NULL,
			mag_id         INTEGER NOT NULL,
			date_id        INTEGER NOT NULL,
			date_formatted DATE,
			created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_prod_id ON products(prod_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_cat_id ON products(cat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_fab_id ON products(fab_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_date ON products(date_formatted)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_prod_id ON sales(prod_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_cat_id ON sales(cat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_fab_id ON sales(fab_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_mag_id ON sales(mag_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales(date_formatted)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
