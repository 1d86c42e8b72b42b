package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketboard/marketboard/internal/domain"
)

func TestNewSnapshot_DecodesDatesOnce(t *testing.T) {
	products := []domain.ProductLog{
		{LogID: 1, ProdID: 101, CatID: 5, FabID: 1, DateID: 20220101},
	}
	s := NewSnapshot(products, nil)

	require.Len(t, s.Products(), 1)
	assert.Equal(t, date(2022, 1, 1), s.Products()[0].Date)

	p, sl := s.SkippedDates()
	assert.Zero(t, p)
	assert.Zero(t, sl)
}

func TestNewSnapshot_CountsUndecodableRows(t *testing.T) {
	products := []domain.ProductLog{
		{LogID: 1, ProdID: 101, CatID: 5, FabID: 1, DateID: 20220101},
		{LogID: 2, ProdID: 102, CatID: 5, FabID: 2, DateID: 42}, // day-offset relic, rejected
	}
	sales := []domain.SaleLog{
		{LogID: 1, ProdID: 101, CatID: 5, FabID: 1, MagID: 10, DateID: 99999999},
	}
	s := NewSnapshot(products, sales)

	skippedProducts, skippedSales := s.SkippedDates()
	assert.Equal(t, 1, skippedProducts)
	assert.Equal(t, 1, skippedSales)
	assert.Len(t, s.DecodeFailures(), 2)

	// The bad rows are retained, only their dates are missing.
	assert.Len(t, s.Products(), 2)
	assert.False(t, s.Products()[1].HasDate())

	// Unfiltered aggregations still see the row; date-filtered ones skip it.
	e := NewEngine()
	e.SetSnapshot(s)

	actors, err := e.MarketActors(5, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, actors)

	actors, err = e.MarketActors(5, &DateRange{From: date(2022, 1, 1), To: date(2022, 12, 31)})
	require.NoError(t, err)
	assert.Equal(t, 1, actors)
}

func TestNewSnapshot_PreservesAlreadyDecodedDates(t *testing.T) {
	products := []domain.ProductLog{
		{LogID: 1, ProdID: 101, CatID: 5, FabID: 1, DateID: 20220101, Date: date(2022, 1, 1)},
	}
	s := NewSnapshot(products, nil)
	assert.Equal(t, date(2022, 1, 1), s.Products()[0].Date)
	assert.Empty(t, s.DecodeFailures())
}

func TestSnapshot_Empty(t *testing.T) {
	assert.True(t, NewSnapshot(nil, nil).Empty())
	assert.False(t, NewSnapshot([]domain.ProductLog{{LogID: 1, DateID: 20220101}}, nil).Empty())
}
