package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/marketboard/marketboard/internal/cache"
	"github.com/marketboard/marketboard/internal/kpi"
)

// ServerConfig holds the read-only API server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server exposes the KPI engine as a read-only JSON API. The interactive
// dashboard consuming it lives elsewhere; this is the boundary.
type Server struct {
	router  *mux.Router
	server  *http.Server
	engine  *kpi.Engine
	cache   *cache.KPICache
	metrics *Metrics
}

// NewServer wires routes, middleware and metrics. cache may be nil.
func NewServer(cfg ServerConfig, engine *kpi.Engine, kpiCache *cache.KPICache, metrics *Metrics) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		engine:  engine,
		cache:   kpiCache,
		metrics: metrics,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/kpi").Subrouter()
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/market-actors", s.handleMarketActors).Methods("GET")
	api.HandleFunc("/market-actors/series", s.handleMarketActorsSeries).Methods("GET")
	api.HandleFunc("/avg-products", s.handleAvgProducts).Methods("GET")
	api.HandleFunc("/top-stores", s.handleTopStores).Methods("GET")
	api.HandleFunc("/health-score", s.handleHealthScore).Methods("GET")
	api.HandleFunc("/health-score/series", s.handleHealthScoreSeries).Methods("GET")
	api.HandleFunc("/share", s.handleShare).Methods("GET")
	api.HandleFunc("/product-count", s.handleProductCount).Methods("GET")
	api.HandleFunc("/discount/avg-products", s.handleDiscountAvgProducts).Methods("GET")
	api.HandleFunc("/discount/top-stores", s.handleDiscountTopStores).Methods("GET")
}

// Router returns the configured handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("kpi api listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		s.metrics.RequestDuration.
			WithLabelValues(r.URL.Path, fmt.Sprintf("%d", sw.status)).
			Observe(duration.Seconds())
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", duration).
			Msg("http request")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
