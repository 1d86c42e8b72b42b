package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketboard/marketboard/internal/domain"
	"github.com/marketboard/marketboard/internal/kpi"
)

func newTestServer(t *testing.T, loaded bool) *Server {
	t.Helper()

	engine := kpi.NewEngine()
	if loaded {
		products := []domain.ProductLog{
			{LogID: 1, ProdID: 100, CatID: 1, FabID: 1, DateID: 20240110},
			{LogID: 2, ProdID: 200, CatID: 1, FabID: 2, DateID: 20240215},
		}
		sales := []domain.SaleLog{
			{LogID: 1, ProdID: 100, CatID: 1, FabID: 1, MagID: 10, DateID: 20240112},
		}
		engine.SetSnapshot(kpi.NewSnapshot(products, sales))
	}
	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, engine, nil, NewMetrics())
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandleHealth(t *testing.T) {
	rec := doGet(t, newTestServer(t, false), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["snapshot_loaded"])

	rec = doGet(t, newTestServer(t, true), "/health")
	decodeBody(t, rec, &body)
	assert.Equal(t, true, body["snapshot_loaded"])
}

func TestKPIEndpoints_NoSnapshotIs503(t *testing.T) {
	s := newTestServer(t, false)

	paths := []string{
		"/kpi/market-actors?category=1",
		"/kpi/avg-products?category=1",
		"/kpi/top-stores",
		"/kpi/health-score?manufacturer=1&category=1",
		"/kpi/share?manufacturer=1&category=1",
		"/kpi/product-count?manufacturer=1&category=1",
		"/kpi/market-actors/series?category=1&from=2024-01-01&to=2024-03-31",
		"/kpi/discount/top-stores?year=2024",
	}
	for _, path := range paths {
		rec := doGet(t, s, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)

		var body errorResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, "no snapshot loaded", body.Error, path)
	}
}

func TestHandleMarketActors(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/market-actors?category=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]int
	decodeBody(t, rec, &body)
	assert.Equal(t, 2, body["actor_count"])
}

func TestHandleMarketActors_BadParams(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/market-actors")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "category is required")

	rec = doGet(t, s, "/kpi/market-actors?category=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doGet(t, s, "/kpi/market-actors?category=1&from=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "from without to")

	rec = doGet(t, s, "/kpi/market-actors?category=1&from=01/02/2024&to=2024-03-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-ISO date")
}

func TestHandleMarketActors_DateFilter(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/market-actors?category=1&from=2024-01-01&to=2024-01-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	decodeBody(t, rec, &body)
	assert.Equal(t, 1, body["actor_count"], "only manufacturer 1 listed in January")
}

func TestHandleTopStores(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/top-stores?n=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stores []kpi.StoreRank `json:"stores"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Stores, 1)
	assert.Equal(t, 10, body.Stores[0].MagID)
	assert.Equal(t, 1, body.Stores[0].Agreements)
}

func TestHandleHealthScore(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/health-score?manufacturer=1&category=1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]float64
	decodeBody(t, rec, &body)
	assert.InDelta(t, 1.0, body["health_score"], 1e-9)

	rec = doGet(t, s, "/kpi/health-score?manufacturer=99&category=1")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	assert.Zero(t, body["health_score"], "unlisted manufacturer scores zero")
}

func TestHandleShareAndProductCount(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/share?manufacturer=1&category=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var share map[string]float64
	decodeBody(t, rec, &share)
	assert.InDelta(t, 0.5, share["share"], 1e-9)

	rec = doGet(t, s, "/kpi/product-count?manufacturer=1&category=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var count map[string]int
	decodeBody(t, rec, &count)
	assert.Equal(t, 1, count["product_count"])
}

func TestHandleMarketActorsSeries(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/market-actors/series?category=1&from=2024-01-01&to=2024-03-31&granularity=month")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Series []kpi.ActorsPoint `json:"series"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Series, 3)
	assert.Equal(t, 1, body.Series[0].Actors)
	assert.Equal(t, 1, body.Series[1].Actors)
	assert.Equal(t, 0, body.Series[2].Actors, "empty period still produces a row")
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), body.Series[1].PeriodStart)
}

func TestHandleMarketActorsSeries_BadGranularity(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/market-actors/series?category=1&from=2024-01-01&to=2024-03-31&granularity=hour")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealthScoreSeries(t *testing.T) {
	s := newTestServer(t, true)

	rec := doGet(t, s, "/kpi/health-score/series?manufacturer=1&category=1&from=2024-01-01&to=2024-02-29&granularity=month")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Series []kpi.ScorePoint `json:"series"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Series, 2)
	assert.InDelta(t, 1.0, body.Series[0].Score, 1e-9)
	assert.Zero(t, body.Series[1].Score, "no February sales")
}

func TestHandleDiscountEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	// The winter window (Jan 12 - Feb 8) covers the Jan 12 sale but not
	// the Jan 10 listing.
	rec := doGet(t, s, "/kpi/discount/top-stores?year=2024")
	require.Equal(t, http.StatusOK, rec.Code)
	var stores struct {
		Stores []kpi.StoreRank `json:"stores"`
	}
	decodeBody(t, rec, &stores)
	require.Len(t, stores.Stores, 1)
	assert.Equal(t, 10, stores.Stores[0].MagID)

	rec = doGet(t, s, "/kpi/discount/avg-products?category=1&year=2024")
	require.Equal(t, http.StatusOK, rec.Code)
	var avg map[string]float64
	decodeBody(t, rec, &avg)
	assert.Zero(t, avg["avg_products"], "no listings inside the winter window")

	rec = doGet(t, s, "/kpi/discount/top-stores?year=2024&season=summer")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &stores)
	assert.Empty(t, stores.Stores, "no summer-window sales")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	doGet(t, s, "/kpi/market-actors?category=1")
	rec := doGet(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketboard_http_request_duration_seconds")
}

func TestRequestIDHeader(t *testing.T) {
	rec := doGet(t, newTestServer(t, true), "/health")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)
}
