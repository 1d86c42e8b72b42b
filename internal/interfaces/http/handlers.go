package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marketboard/marketboard/internal/cache"
	"github.com/marketboard/marketboard/internal/kpi"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeQueryError(w http.ResponseWriter, op string, err error) {
	s.metrics.QueryErrors.WithLabelValues(op).Inc()
	if errors.Is(err, kpi.ErrNoSnapshot) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no snapshot loaded"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// --- param helpers ---

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter %q", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer", name)
	}
	return v, nil
}

func intParamDefault(r *http.Request, name string, def int) (int, error) {
	if r.URL.Query().Get(name) == "" {
		return def, nil
	}
	return intParam(r, name)
}

func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing required parameter %q", name)
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parameter %q must be a YYYY-MM-DD date", name)
	}
	return t, nil
}

// optionalRange reads from/to; both present yields a range, both absent
// yields nil, one alone is an error.
func optionalRange(r *http.Request) (*kpi.DateRange, error) {
	fromRaw, toRaw := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		return nil, nil
	}
	if fromRaw == "" || toRaw == "" {
		return nil, fmt.Errorf("parameters from and to must be given together")
	}
	from, err := dateParam(r, "from")
	if err != nil {
		return nil, err
	}
	to, err := dateParam(r, "to")
	if err != nil {
		return nil, err
	}
	return &kpi.DateRange{From: from, To: to}, nil
}

func granularityParam(r *http.Request) (kpi.Granularity, error) {
	raw := r.URL.Query().Get("granularity")
	if raw == "" {
		return kpi.Monthly, nil
	}
	return kpi.ParseGranularity(raw)
}

func winterParam(r *http.Request) bool {
	return r.URL.Query().Get("season") != "summer"
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]any{"status": "ok", "snapshot_loaded": s.engine.Snapshot() != nil}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMarketActors(w http.ResponseWriter, r *http.Request) {
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	dr, err := optionalRange(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	actors, err := s.engine.MarketActors(category, dr)
	if err != nil {
		s.writeQueryError(w, "market_actors", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"actor_count": actors})
}

func (s *Server) handleAvgProducts(w http.ResponseWriter, r *http.Request) {
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	dr, err := optionalRange(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	avg, err := s.engine.AvgProductsPerManufacturer(category, dr)
	if err != nil {
		s.writeQueryError(w, "avg_products", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"avg_products": avg})
}

func (s *Server) handleTopStores(w http.ResponseWriter, r *http.Request) {
	n, err := intParamDefault(r, "n", 10)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	stores, err := s.engine.TopStores(n)
	if err != nil {
		s.writeQueryError(w, "top_stores", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	manufacturer, err := intParam(r, "manufacturer")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	topN, err := intParamDefault(r, "top", 10)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	dr, err := optionalRange(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	score, err := s.engine.ManufacturerHealthScore(manufacturer, category, dr, topN)
	if err != nil {
		s.writeQueryError(w, "health_score", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"health_score": score})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	manufacturer, err := intParam(r, "manufacturer")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	dr, err := optionalRange(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	share, err := s.engine.ManufacturerShare(manufacturer, category, dr)
	if err != nil {
		s.writeQueryError(w, "share", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"share": share})
}

func (s *Server) handleProductCount(w http.ResponseWriter, r *http.Request) {
	manufacturer, err := intParam(r, "manufacturer")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	dr, err := optionalRange(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	count, err := s.engine.ManufacturerProductCount(manufacturer, category, dr)
	if err != nil {
		s.writeQueryError(w, "product_count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"product_count": count})
}

func (s *Server) handleMarketActorsSeries(w http.ResponseWriter, r *http.Request) {
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	from, err := dateParam(r, "from")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	g, err := granularityParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	key := cache.Key("actors-series", strconv.Itoa(category),
		from.Format("20060102"), to.Format("20060102"), string(g))
	var series []kpi.ActorsPoint
	if s.cacheGet(r, key, &series) {
		writeJSON(w, http.StatusOK, map[string]any{"series": series})
		return
	}

	series, err = s.engine.MarketActorsOverTime(category, from, to, g)
	if err != nil {
		s.writeQueryError(w, "market_actors_series", err)
		return
	}
	s.cacheSet(r, key, series)
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

func (s *Server) handleHealthScoreSeries(w http.ResponseWriter, r *http.Request) {
	manufacturer, err := intParam(r, "manufacturer")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	topN, err := intParamDefault(r, "top", 10)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	from, err := dateParam(r, "from")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	to, err := dateParam(r, "to")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	g, err := granularityParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	key := cache.Key("score-series", strconv.Itoa(manufacturer), strconv.Itoa(category),
		strconv.Itoa(topN), from.Format("20060102"), to.Format("20060102"), string(g))
	var series []kpi.ScorePoint
	if s.cacheGet(r, key, &series) {
		writeJSON(w, http.StatusOK, map[string]any{"series": series})
		return
	}

	series, err = s.engine.ManufacturerHealthScoreOverTime(manufacturer, category, from, to, topN, g)
	if err != nil {
		s.writeQueryError(w, "health_score_series", err)
		return
	}
	s.cacheSet(r, key, series)
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

func (s *Server) handleDiscountAvgProducts(w http.ResponseWriter, r *http.Request) {
	category, err := intParam(r, "category")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	year, err := intParamDefault(r, "year", time.Now().UTC().Year())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	avg, err := s.engine.AvgProductsInDiscountPeriod(category, winterParam(r), year)
	if err != nil {
		s.writeQueryError(w, "discount_avg_products", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"avg_products": avg})
}

func (s *Server) handleDiscountTopStores(w http.ResponseWriter, r *http.Request) {
	// category is optional here: 0 ranks across all categories.
	category, err := intParamDefault(r, "category", 0)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	n, err := intParamDefault(r, "n", 10)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	year, err := intParamDefault(r, "year", time.Now().UTC().Year())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	stores, err := s.engine.TopStoresInDiscountPeriod(category, n, winterParam(r), year)
	if err != nil {
		s.writeQueryError(w, "discount_top_stores", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

// --- cache helpers ---

func (s *Server) cacheGet(r *http.Request, key string, v any) bool {
	if s.cache == nil {
		return false
	}
	if s.cache.Get(r.Context(), key, v) {
		s.metrics.CacheHits.Inc()
		return true
	}
	s.metrics.CacheMisses.Inc()
	return false
}

func (s *Server) cacheSet(r *http.Request, key string, v any) {
	if s.cache != nil {
		s.cache.Set(r.Context(), key, v)
	}
}
