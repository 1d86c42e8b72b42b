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

type salesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSalesRepo creates the sale agreement repository.
func NewSalesRepo(db *sqlx.DB, timeout time.Duration) persistence.SalesRepo {
	return &salesRepo{db: db, timeout: timeout}
}

func (r *salesRepo) InsertBatch(ctx context.Context, records []domain.SaleLog) (int, error) {
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
		INSERT INTO sales (log_id, prod_id, cat_id, fab_id, mag_id, date_id, date_formatted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (log_id) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			rec.LogID, rec.ProdID, rec.CatID, rec.FabID, rec.MagID, rec.DateID, nullDate(rec.Date))
		if err != nil {
			return 0, fmt.Errorf("failed to insert sale log %d: %w", rec.LogID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sale batch: %w", err)
	}
	return inserted, nil
}

func (r *salesRepo) ListAll(ctx context.Context) ([]domain.SaleLog, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT log_id, prod_id, cat_id, fab_id, mag_id, date_id, date_formatted
		FROM sales
		ORDER BY log_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []domain.SaleLog
	for rows.Next() {
		var rec domain.SaleLog
		var d sql.NullTime
		if err := rows.Scan(&rec.LogID, &rec.ProdID, &rec.CatID, &rec.FabID, &rec.MagID, &rec.DateID, &d); err != nil {
			return nil, fmt.Errorf("failed to scan sale log: %w", err)
		}
		if d.Valid {
			rec.Date = d.Time.UTC()
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}
	return out, nil
}

func (r *salesRepo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var n int64
	if err := r.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM sales`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return n, nil
}

func (r *salesRepo) MaxLogID(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var id int64
	if err := r.db.QueryRowxContext(ctx, `SELECT COALESCE(MAX(log_id), 0) FROM sales`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read max sale log_id: %w", err)
	}
	return id, nil
}
