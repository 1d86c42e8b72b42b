package kpi

import (
	"github.com/marketboard/marketboard/internal/domain"
)

// Snapshot is an immutable view of the two event tables. Dates are decoded
// exactly once when the snapshot is built; rows whose date_id cannot be
// decoded keep participating in unfiltered aggregations and are excluded
// from date-filtered ones.
type Snapshot struct {
	products []domain.ProductLog
	sales    []domain.SaleLog

	skippedProductDates int
	skippedSaleDates    int
	decodeFailures      []error
}

// NewSnapshot builds a snapshot from already-normalized records. Records
// that arrive without a decoded Date get one from DateID here; decode
// failures are collected, not raised.
func NewSnapshot(products []domain.ProductLog, sales []domain.SaleLog) *Snapshot {
	s := &Snapshot{
		products: make([]domain.ProductLog, len(products)),
		sales:    make([]domain.SaleLog, len(sales)),
	}

	for i, p := range products {
		if !p.HasDate() {
			d, err := domain.DecodeDateIDInt(p.DateID)
			if err != nil {
				s.skippedProductDates++
				s.decodeFailures = append(s.decodeFailures, err)
			} else {
				p.Date = d
			}
		}
		s.products[i] = p
	}
	for i, sl := range sales {
		if !sl.HasDate() {
			d, err := domain.DecodeDateIDInt(sl.DateID)
			if err != nil {
				s.skippedSaleDates++
				s.decodeFailures = append(s.decodeFailures, err)
			} else {
				sl.Date = d
			}
		}
		s.sales[i] = sl
	}
	return s
}

// Products returns the product listing rows. Callers must not mutate them.
func (s *Snapshot) Products() []domain.ProductLog { return s.products }

// Sales returns the sale agreement rows. Callers must not mutate them.
func (s *Snapshot) Sales() []domain.SaleLog { return s.sales }

// SkippedDates reports how many product and sale rows carry an
// undecodable date_id and are therefore invisible to date filters.
func (s *Snapshot) SkippedDates() (products, sales int) {
	return s.skippedProductDates, s.skippedSaleDates
}

// DecodeFailures returns the collected per-row decode errors.
func (s *Snapshot) DecodeFailures() []error { return s.decodeFailures }

// Empty reports whether the snapshot holds no rows at all.
func (s *Snapshot) Empty() bool { return len(s.products) == 0 && len(s.sales) == 0 }
