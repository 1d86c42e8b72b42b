package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:        baseURL,
		RPS:            1000,
		Burst:          100,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
	})
}

func TestClient_FetchProductRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logProduits/1":
			fmt.Fprint(w, `{"logID":1,"prodID":101,"catID":5,"fabID":1,"dateID":20220101}`)
		case "/logProduits/2":
			// Legacy shape: 200 with a NOT FOUND body.
			fmt.Fprint(w, `"NOT FOUND"`)
		case "/logProduits/3":
			fmt.Fprint(w, `{"logID":3,"prodID":103,"catID":5,"fabID":2,"dateID":20220103}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	records, err := testClient(srv.URL).FetchProductRange(context.Background(), 1, 4)
	require.NoError(t, err)
	require.Len(t, records, 2, "missing ids are skipped, both 404 and NOT FOUND body")

	assert.Equal(t, int64(1), records[0].LogID)
	assert.Equal(t, 101, records[0].ProdID)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Date)
	assert.Equal(t, int64(3), records[1].LogID)
}

func TestClient_FetchSale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/logAccordsVente/7", r.URL.Path)
		fmt.Fprint(w, `{"logID":7,"prodID":101,"catID":5,"fabID":1,"magID":10,"dateID":20220110}`)
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL).FetchSale(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 10, rec.MagID)
	assert.Equal(t, time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC), rec.Date)
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"logID":1,"prodID":101,"catID":5,"fabID":1,"dateID":20220101}`)
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL).FetchProduct(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, attempts)
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchProduct(context.Background(), 1)
	assert.Error(t, err)
}

func TestClient_UndecodableDateIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"logID":1,"prodID":101,"catID":5,"fabID":1,"dateID":42}`)
	}))
	defer srv.Close()

	rec, err := testClient(srv.URL).FetchProduct(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.HasDate())
	assert.Equal(t, 42, rec.DateID)
}
