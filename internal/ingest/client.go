package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/marketboard/marketboard/internal/domain"
)

const (
	productEndpoint = "/logProduits"
	saleEndpoint    = "/logAccordsVente"
)

// errNotFound marks a log id the API has no record for. Gaps in the id
// space are expected and are skipped, not reported.
var errNotFound = errors.New("log not found")

// ClientConfig configures the log API client.
type ClientConfig struct {
	BaseURL        string
	RPS            float64
	Burst          int
	RequestTimeout time.Duration
	MaxRetries     int
}

// Client fetches raw per-id log records from the remote log API and
// normalizes them into domain records. Requests are rate limited and pass
// through a circuit breaker, so a dead API trips fast instead of being
// hammered for the rest of a million-id import.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
}

// NewClient creates a log API client.
func NewClient(cfg ClientConfig) *Client {
	settings := gobreaker.Settings{
		Name:     "log-api",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		maxRetries: cfg.MaxRetries,
	}
}

// rawLog mirrors the API's upper-camel field names before normalization.
type rawLog struct {
	LogID  int64 `json:"logID"`
	ProdID int   `json:"prodID"`
	CatID  int   `json:"catID"`
	FabID  int   `json:"fabID"`
	MagID  int   `json:"magID"`
	DateID int   `json:"dateID"`
}

// FetchProduct retrieves one product log. Returns (nil, nil) when the id
// does not exist.
func (c *Client) FetchProduct(ctx context.Context, logID int64) (*domain.ProductLog, error) {
	raw, err := c.fetch(ctx, productEndpoint, logID)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := productFromRaw(*raw)
	return &rec, nil
}

// FetchSale retrieves one sale agreement log. Returns (nil, nil) when the
// id does not exist.
func (c *Client) FetchSale(ctx context.Context, logID int64) (*domain.SaleLog, error) {
	raw, err := c.fetch(ctx, saleEndpoint, logID)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := saleFromRaw(*raw)
	return &rec, nil
}

// FetchProductRange retrieves product logs for [startID, endID], skipping
// ids the API does not know.
func (c *Client) FetchProductRange(ctx context.Context, startID, endID int64) ([]domain.ProductLog, error) {
	var out []domain.ProductLog
	for id := startID; id <= endID; id++ {
		rec, err := c.FetchProduct(ctx, id)
		if err != nil {
			return out, fmt.Errorf("fetching product log %d: %w", id, err)
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// FetchSaleRange retrieves sale logs for [startID, endID], skipping ids
// the API does not know.
func (c *Client) FetchSaleRange(ctx context.Context, startID, endID int64) ([]domain.SaleLog, error) {
	var out []domain.SaleLog
	for id := startID; id <= endID; id++ {
		rec, err := c.FetchSale(ctx, id)
		if err != nil {
			return out, fmt.Errorf("fetching sale log %d: %w", id, err)
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, logID int64) (*rawLog, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s/%d", c.baseURL, endpoint, logID)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := c.breaker.Execute(func() (any, error) {
			return c.doRequest(ctx, url)
		})
		if err == nil {
			// Missing ids come back as a nil record so the breaker does
			// not count expected gaps as API failures.
			if result.(*rawLog) == nil {
				return nil, errNotFound
			}
			return result.(*rawLog), nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, fmt.Errorf("log API circuit open: %w", err)
		}
		lastErr = err
		log.Warn().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("log API request failed")
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, url string) (*rawLog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// The legacy API answers 200 with a "NOT FOUND" body for missing ids.
	if bytes.Contains(body, []byte("NOT FOUND")) {
		return nil, nil
	}

	var raw rawLog
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode log payload: %w", err)
	}
	return &raw, nil
}
