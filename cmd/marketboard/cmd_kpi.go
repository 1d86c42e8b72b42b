package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketboard/marketboard/internal/kpi"
	"github.com/marketboard/marketboard/internal/persistence/sqlstore"
)

func newKPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Run one-shot KPI queries against the store",
		Long: `Load the current snapshot and answer a single KPI query on stdout as
JSON. Useful for scripting and for checking numbers without the API server.`,
	}

	cmd.PersistentFlags().String("from", "", "Window start (YYYY-MM-DD)")
	cmd.PersistentFlags().String("to", "", "Window end (YYYY-MM-DD)")

	actorsCmd := &cobra.Command{
		Use:   "actors",
		Short: "Count distinct manufacturers in a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return kpiQuery(cmd, func(ctx context.Context, engine *kpi.Engine, dr *kpi.DateRange) (any, error) {
				category, _ := cmd.Flags().GetInt("category")
				return engine.MarketActors(category, dr)
			})
		},
	}
	actorsCmd.Flags().Int("category", 0, "Category id")
	_ = actorsCmd.MarkFlagRequired("category")

	avgCmd := &cobra.Command{
		Use:   "avg-products",
		Short: "Average distinct products per manufacturer in a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return kpiQuery(cmd, func(ctx context.Context, engine *kpi.Engine, dr *kpi.DateRange) (any, error) {
				category, _ := cmd.Flags().GetInt("category")
				return engine.AvgProductsPerManufacturer(category, dr)
			})
		},
	}
	avgCmd.Flags().Int("category", 0, "Category id")
	_ = avgCmd.MarkFlagRequired("category")

	topStoresCmd := &cobra.Command{
		Use:   "top-stores",
		Short: "Rank stores by sale agreement count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return kpiQuery(cmd, func(ctx context.Context, engine *kpi.Engine, dr *kpi.DateRange) (any, error) {
				n, _ := cmd.Flags().GetInt("n")
				return engine.TopStores(n)
			})
		},
	}
	topStoresCmd.Flags().Int("n", 10, "Number of stores to return")

	scoreCmd := &cobra.Command{
		Use:   "health-score",
		Short: "Compute a manufacturer's health score in a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return kpiQuery(cmd, func(ctx context.Context, engine *kpi.Engine, dr *kpi.DateRange) (any, error) {
				manufacturer, _ := cmd.Flags().GetInt("manufacturer")
				category, _ := cmd.Flags().GetInt("category")
				topN, _ := cmd.Flags().GetInt("top")
				return engine.ManufacturerHealthScore(manufacturer, category, dr, topN)
			})
		},
	}
	scoreCmd.Flags().Int("manufacturer", 0, "Manufacturer id")
	scoreCmd.Flags().Int("category", 0, "Category id")
	scoreCmd.Flags().Int("top", 10, "Stores to rank for the score")
	_ = scoreCmd.MarkFlagRequired("manufacturer")
	_ = scoreCmd.MarkFlagRequired("category")

	shareCmd := &cobra.Command{
		Use:   "share",
		Short: "Compute a manufacturer's share of a category's catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return kpiQuery(cmd, func(ctx context.Context, engine *kpi.Engine, dr *kpi.DateRange) (any, error) {
				manufacturer, _ := cmd.Flags().GetInt("manufacturer")
				category, _ := cmd.Flags().GetInt("category")
				return engine.ManufacturerShare(manufacturer, category, dr)
			})
		},
	}
	shareCmd.Flags().Int("manufacturer", 0, "Manufacturer id")
	shareCmd.Flags().Int("category", 0, "Category id")
	_ = shareCmd.MarkFlagRequired("manufacturer")
	_ = shareCmd.MarkFlagRequired("category")

	cmd.AddCommand(actorsCmd, avgCmd, topStoresCmd, scoreCmd, shareCmd)
	return cmd
}

// kpiQuery handles the shared open-store/build-engine/print-JSON plumbing
// around a single engine call.
func kpiQuery(cmd *cobra.Command, query func(context.Context, *kpi.Engine, *kpi.DateRange) (any, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dr, err := rangeFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqlstore.NewStore(db, time.Duration(cfg.DB.TimeoutSeconds)*time.Second)

	engine, _, err := buildEngine(ctx, store)
	if err != nil {
		return err
	}

	result, err := query(ctx, engine, dr)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func rangeFromFlags(cmd *cobra.Command) (*kpi.DateRange, error) {
	fromRaw, _ := cmd.Flags().GetString("from")
	toRaw, _ := cmd.Flags().GetString("to")
	if fromRaw == "" && toRaw == "" {
		return nil, nil
	}
	if fromRaw == "" || toRaw == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}

	from, err := time.ParseInLocation("2006-01-02", fromRaw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", toRaw, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid --to: %w", err)
	}
	return &kpi.DateRange{From: from, To: to}, nil
}
