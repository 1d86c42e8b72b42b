package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketboard/marketboard/internal/cache"
	httpapi "github.com/marketboard/marketboard/internal/interfaces/http"
	"github.com/marketboard/marketboard/internal/kpi"
	"github.com/marketboard/marketboard/internal/persistence"
	"github.com/marketboard/marketboard/internal/persistence/sqlstore"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only KPI API",
		Long: `Load both event tables into an in-memory snapshot and serve KPI queries
over HTTP until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlstore.NewStore(db, time.Duration(cfg.DB.TimeoutSeconds)*time.Second)

	engine, snap, err := buildEngine(ctx, store)
	if err != nil {
		return err
	}

	metrics := httpapi.NewMetrics()
	skippedProducts, skippedSales := snap.SkippedDates()
	metrics.ObserveSnapshot(len(snap.Products()), len(snap.Sales()), skippedProducts, skippedSales)

	var kpiCache *cache.KPICache
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr})
		kpiCache = cache.New(rdb, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		log.Info().Str("addr", cfg.Cache.Addr).Msg("kpi cache enabled")
	}

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}, engine, kpiCache, metrics)

	return srv.Start(ctx)
}

// buildEngine loads both tables and swaps a fresh snapshot into a new
// engine. Shared by serve and the one-shot kpi subcommands.
func buildEngine(ctx context.Context, store persistence.Store) (*kpi.Engine, *kpi.Snapshot, error) {
	start := time.Now()
	products, err := store.Products.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	sales, err := store.Sales.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}

	snap := kpi.NewSnapshot(products, sales)
	skippedProducts, skippedSales := snap.SkippedDates()
	log.Info().
		Int("products", len(snap.Products())).
		Int("sales", len(snap.Sales())).
		Int("skipped_product_dates", skippedProducts).
		Int("skipped_sale_dates", skippedSales).
		Dur("elapsed", time.Since(start)).
		Msg("snapshot loaded")

	engine := kpi.NewEngine()
	engine.SetTracer(func(op string, fields map[string]any) {
		log.Debug().Fields(fields).Msg(op)
	})
	engine.SetSnapshot(snap)
	return engine, snap, nil
}
