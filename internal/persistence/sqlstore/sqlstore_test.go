package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketboard/marketboard/internal/domain"
	"github.com/marketboard/marketboard/internal/persistence"
)

// Store tests run against an in-memory sqlite database: real SQL, no
// external service.
func testStore(t *testing.T) persistence.Store {
	t.Helper()

	ctx := context.Background()
	db, err := Open(ctx, "sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// :memory: gives each connection its own database.
	db.SetMaxOpenConns(1)

	require.NoError(t, InitSchema(ctx, db))
	return NewStore(db, 5*time.Second)
}

func sampleProducts() []domain.ProductLog {
	return []domain.ProductLog{
		{LogID: 1, ProdID: 101, CatID: 5, FabID: 1, DateID: 20220101, Date: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{LogID: 2, ProdID: 102, CatID: 5, FabID: 2, DateID: 20220102, Date: time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func TestProductsRepo_InsertBatchIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	inserted, err := store.Products.InsertBatch(ctx, sampleProducts())
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Same batch again: nothing inserted, counts unchanged.
	inserted, err = store.Products.InsertBatch(ctx, sampleProducts())
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	count, err := store.Products.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestProductsRepo_PartialOverlapInsertsOnlyNewRows(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	_, err := store.Products.InsertBatch(ctx, sampleProducts())
	require.NoError(t, err)

	batch := append(sampleProducts(), domain.ProductLog{
		LogID: 3, ProdID: 103, CatID: 7, FabID: 3, DateID: 20220103,
		Date: time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC),
	})
	inserted, err := store.Products.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestProductsRepo_ListAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	records := sampleProducts()
	// A row whose date_id never decoded is stored with a NULL date.
	records = append(records, domain.ProductLog{LogID: 3, ProdID: 103, CatID: 5, FabID: 1, DateID: 42})

	_, err := store.Products.InsertBatch(ctx, records)
	require.NoError(t, err)

	got, err := store.Products.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0].LogID)
	assert.Equal(t, 101, got[0].ProdID)
	assert.True(t, got[0].Date.Equal(records[0].Date))
	assert.False(t, got[2].HasDate(), "NULL date comes back as zero time")
}

func TestProductsRepo_MaxLogID(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	max, err := store.Products.MaxLogID(ctx)
	require.NoError(t, err)
	assert.Zero(t, max, "empty table reports 0")

	_, err = store.Products.InsertBatch(ctx, sampleProducts())
	require.NoError(t, err)

	max, err = store.Products.MaxLogID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), max)
}

func TestSalesRepo_InsertAndList(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	sales := []domain.SaleLog{
		{LogID: 1, ProdID: 101, CatID: 5, FabID: 1, MagID: 10, DateID: 20220101, Date: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		{LogID: 2, ProdID: 102, CatID: 5, FabID: 2, MagID: 20, DateID: 20220105, Date: time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC)},
	}
	inserted, err := store.Sales.InsertBatch(ctx, sales)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = store.Sales.InsertBatch(ctx, sales)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	got, err := store.Sales.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].MagID)
	assert.Equal(t, 20, got[1].MagID)

	count, err := store.Sales.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	max, err := store.Sales.MaxLogID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), max)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	assert.Error(t, err)
}
