package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marketboard/marketboard/internal/config"
	"github.com/marketboard/marketboard/internal/domain"
	"github.com/marketboard/marketboard/internal/ingest"
	mblog "github.com/marketboard/marketboard/internal/log"
	"github.com/marketboard/marketboard/internal/persistence"
	"github.com/marketboard/marketboard/internal/persistence/sqlstore"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import log records into the store",
		Long: `Import product listing and sale agreement logs, either by crawling the
remote log API id space or from local JSONL dumps. Imports are idempotent:
records already present (by log_id) are skipped, so interrupted runs can
simply be re-run.`,
		RunE: runImport,
	}

	cmd.Flags().String("table", "both", "Which table to import (products|sales|both)")
	cmd.Flags().String("product-file", "", "JSONL file with product logs (skips the API)")
	cmd.Flags().String("sale-file", "", "JSONL file with sale agreement logs (skips the API)")
	cmd.Flags().Int64("start-id", 1, "First log id to fetch from the API")
	cmd.Flags().Int64("end-id", 0, "Last log id to fetch from the API (required in API mode)")
	cmd.Flags().Int("batch-size", 500, "Records per database batch")
	cmd.Flags().Int("max-records", 0, "Stop each table after this many fetched records (0 = no limit)")
	cmd.Flags().Bool("resume", false, "Start after the highest log_id already stored")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	table, _ := cmd.Flags().GetString("table")
	productFile, _ := cmd.Flags().GetString("product-file")
	saleFile, _ := cmd.Flags().GetString("sale-file")
	startID, _ := cmd.Flags().GetInt64("start-id")
	endID, _ := cmd.Flags().GetInt64("end-id")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	maxRecords, _ := cmd.Flags().GetInt("max-records")
	resume, _ := cmd.Flags().GetBool("resume")

	if table != "products" && table != "sales" && table != "both" {
		return fmt.Errorf("invalid --table %q: want products, sales or both", table)
	}
	if batchSize <= 0 {
		return fmt.Errorf("--batch-size must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := sqlstore.InitSchema(ctx, db); err != nil {
		return err
	}
	store := sqlstore.NewStore(db, time.Duration(cfg.DB.TimeoutSeconds)*time.Second)

	fileMode := productFile != "" || saleFile != ""
	if fileMode {
		return importFromFiles(ctx, store, productFile, saleFile, batchSize)
	}

	if endID < startID {
		return fmt.Errorf("--end-id is required in API mode and must be >= --start-id")
	}
	return importFromAPI(ctx, cfg, store, table, startID, endID, batchSize, maxRecords, resume)
}

func importFromFiles(ctx context.Context, store persistence.Store, productFile, saleFile string, batchSize int) error {
	if productFile != "" {
		records, skipped, err := ingest.LoadProductFile(productFile)
		if err != nil {
			return err
		}
		log.Info().Str("file", productFile).Int("records", len(records)).Int("skipped", skipped).Msg("product file loaded")
		if err := insertProductBatches(ctx, store.Products, records, batchSize); err != nil {
			return err
		}
	}
	if saleFile != "" {
		records, skipped, err := ingest.LoadSaleFile(saleFile)
		if err != nil {
			return err
		}
		log.Info().Str("file", saleFile).Int("records", len(records)).Int("skipped", skipped).Msg("sale file loaded")
		if err := insertSaleBatches(ctx, store.Sales, records, batchSize); err != nil {
			return err
		}
	}
	return nil
}

func importFromAPI(ctx context.Context, cfg config.Config, store persistence.Store, table string, startID, endID int64, batchSize, maxRecords int, resume bool) error {
	client := ingest.NewClient(ingest.ClientConfig{
		BaseURL:        cfg.API.BaseURL,
		RPS:            cfg.API.RPS,
		Burst:          cfg.API.Burst,
		RequestTimeout: time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		MaxRetries:     cfg.API.MaxRetries,
	})

	if table == "products" || table == "both" {
		start := startID
		if resume {
			maxID, err := store.Products.MaxLogID(ctx)
			if err != nil {
				return err
			}
			if maxID >= start {
				start = maxID + 1
			}
		}
		if err := crawlProducts(ctx, client, store.Products, start, endID, batchSize, maxRecords); err != nil {
			return err
		}
	}

	if table == "sales" || table == "both" {
		start := startID
		if resume {
			maxID, err := store.Sales.MaxLogID(ctx)
			if err != nil {
				return err
			}
			if maxID >= start {
				start = maxID + 1
			}
		}
		if err := crawlSales(ctx, client, store.Sales, start, endID, batchSize, maxRecords); err != nil {
			return err
		}
	}
	return nil
}

func crawlProducts(ctx context.Context, client *ingest.Client, repo persistence.ProductsRepo, startID, endID int64, batchSize, maxRecords int) error {
	if startID > endID {
		log.Info().Int64("start_id", startID).Int64("end_id", endID).Msg("products already up to date")
		return nil
	}
	progress := mblog.NewBatchProgress("import-products", int(endID-startID+1))
	defer progress.Done()

	fetched := 0
	for lo := startID; lo <= endID; lo += int64(batchSize) {
		hi := lo + int64(batchSize) - 1
		if hi > endID {
			hi = endID
		}
		records, err := client.FetchProductRange(ctx, lo, hi)
		if err != nil {
			return err
		}
		if _, err := repo.InsertBatch(ctx, records); err != nil {
			return err
		}
		progress.Add(int(hi - lo + 1))

		fetched += len(records)
		if maxRecords > 0 && fetched >= maxRecords {
			log.Info().Int("fetched", fetched).Msg("product record limit reached")
			return nil
		}
	}
	return nil
}

func crawlSales(ctx context.Context, client *ingest.Client, repo persistence.SalesRepo, startID, endID int64, batchSize, maxRecords int) error {
	if startID > endID {
		log.Info().Int64("start_id", startID).Int64("end_id", endID).Msg("sales already up to date")
		return nil
	}
	progress := mblog.NewBatchProgress("import-sales", int(endID-startID+1))
	defer progress.Done()

	fetched := 0
	for lo := startID; lo <= endID; lo += int64(batchSize) {
		hi := lo + int64(batchSize) - 1
		if hi > endID {
			hi = endID
		}
		records, err := client.FetchSaleRange(ctx, lo, hi)
		if err != nil {
			return err
		}
		if _, err := repo.InsertBatch(ctx, records); err != nil {
			return err
		}
		progress.Add(int(hi - lo + 1))

		fetched += len(records)
		if maxRecords > 0 && fetched >= maxRecords {
			log.Info().Int("fetched", fetched).Msg("sale record limit reached")
			return nil
		}
	}
	return nil
}

func insertProductBatches(ctx context.Context, repo persistence.ProductsRepo, records []domain.ProductLog, batchSize int) error {
	progress := mblog.NewBatchProgress("load-products", len(records))
	defer progress.Done()

	inserted := 0
	for lo := 0; lo < len(records); lo += batchSize {
		hi := lo + batchSize
		if hi > len(records) {
			hi = len(records)
		}
		n, err := repo.InsertBatch(ctx, records[lo:hi])
		if err != nil {
			return err
		}
		inserted += n
		progress.Add(hi - lo)
	}
	log.Info().Int("inserted", inserted).Int("duplicates", len(records)-inserted).Msg("product import complete")
	return nil
}

func insertSaleBatches(ctx context.Context, repo persistence.SalesRepo, records []domain.SaleLog, batchSize int) error {
	progress := mblog.NewBatchProgress("load-sales", len(records))
	defer progress.Done()

	inserted := 0
	for lo := 0; lo < len(records); lo += batchSize {
		hi := lo + batchSize
		if hi > len(records) {
			hi = len(records)
		}
		n, err := repo.InsertBatch(ctx, records[lo:hi])
		if err != nil {
			return err
		}
		inserted += n
		progress.Add(hi - lo)
	}
	log.Info().Int("inserted", inserted).Int("duplicates", len(records)-inserted).Msg("sale import complete")
	return nil
}
