package persistence

import (
	"context"

	"github.com/marketboard/marketboard/internal/domain"
)

// ProductsRepo persists product listing logs. Inserts are idempotent keyed
// by log_id: re-inserting an existing log is a no-op.
type ProductsRepo interface {
	// InsertBatch stores new records and returns how many were actually
	// inserted (duplicates by log_id are skipped silently).
	InsertBatch(ctx context.Context, records []domain.ProductLog) (int, error)

	// ListAll returns every product log in log_id order.
	ListAll(ctx context.Context) ([]domain.ProductLog, error)

	// Count returns the total number of product logs.
	Count(ctx context.Context) (int64, error)

	// MaxLogID returns the highest stored log_id, 0 when the table is
	// empty. Used to resume interrupted imports.
	MaxLogID(ctx context.Context) (int64, error)
}

// SalesRepo persists sale agreement logs with the same contract.
type SalesRepo interface {
	InsertBatch(ctx context.Context, records []domain.SaleLog) (int, error)
	ListAll(ctx context.Context) ([]domain.SaleLog, error)
	Count(ctx context.Context) (int64, error)
	MaxLogID(ctx context.Context) (int64, error)
}

// Store aggregates the two repositories.
type Store struct {
	Products ProductsRepo
	Sales    SalesRepo
}
