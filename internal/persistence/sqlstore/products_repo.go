package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/marketboard/marketboard/internal/domain"
	"github.com/marketboard/marketboard/internal/persistence"
)

type productsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewProductsRepo creates the product log repository.
func NewProductsRepo(db *sqlx.DB, timeout time.Duration) persistence.ProductsRepo {
	return &productsRepo{db: db, timeout: timeout}
}

// InsertBatch inserts new product logs inside one transaction. Conflicts on
// log_id are ignored, which makes re-imports of overlapping id ranges safe.
func (r *productsRepo) InsertBatch(ctx context.Context, records []domain.ProductLog) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, r.db.Rebind(`
		INSERT INTO products (log_id, prod_id, cat_id, fab_id, date_id, date_formatted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (log_id) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.LogID, rec.ProdID, rec.CatID, rec.FabID, rec.DateID, nullDate(rec.Date))
		if err != nil {
			return 0, fmt.Errorf("failed to insert product log %d: %w", rec.LogID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit product batch: %w", err)
	}
	return inserted, nil
}

// ListAll returns every product log in log_id order.
func (r *productsRepo) ListAll(ctx context.Context) ([]domain.ProductLog, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT log_id, prod_id, cat_id, fab_id, date_id, date_formatted
		FROM products
		ORDER BY log_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductLog
	for rows.Next() {
		var rec domain.ProductLog
		var d sql.NullTime
		if err := rows.Scan(&rec.LogID, &rec.ProdID, &rec.CatID, &rec.FabID, &rec.DateID, &d); err != nil {
			return nil, fmt.Errorf("failed to scan product log: %w", err)
		}
		if d.Valid {
			rec.Date = d.Time.UTC()
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

// Count returns the number of product logs.
func (r *productsRepo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	if err := r.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// MaxLogID returns the highest stored log_id, or 0 for an empty table.
func (r *productsRepo) MaxLogID(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	if err := r.db.QueryRowxContext(ctx, `SELECT COALESCE(MAX(log_id), 0) FROM products`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read max product log_id: %w", err)
	}
	return id, nil
}

// nullDate maps the zero time to SQL NULL so undecodable dates stay
// visibly absent instead of becoming 0001-01-01.
func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
