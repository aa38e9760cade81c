// Command etl drives the price warehouse: loading files, bulk runs, retrying
// failures, refreshing the gold view and inspecting warehouse state.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"stockwarehouse/config"
	"stockwarehouse/internal/database"
	"stockwarehouse/internal/loader"
	"stockwarehouse/internal/pipeline"
	"stockwarehouse/internal/quality"
	"stockwarehouse/internal/refresh"
	"stockwarehouse/internal/repository"
	"stockwarehouse/internal/staging"
)

const goldView = "price_gold"

const usage = `usage: etl <command> [flags]

commands:
  load      load one CSV file
  bulk      load every CSV file in a directory
  retry     reload files whose last batch failed
  refresh   rebuild the gold materialized view
  validate  score a CSV file without writing anything
  status    show warehouse and view status
  sources   list configured data sources
  init      apply the warehouse schema
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	// validate is the only command that runs without a database.
	if cmd == "validate" {
		runValidate(args)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	config.SetupLogging(cfg.LogLevel)

	ctx := context.Background()
	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	app := newApp(cfg, db)

	switch cmd {
	case "load":
		err = app.runLoad(ctx, args)
	case "bulk":
		err = app.runBulk(ctx, args)
	case "retry":
		err = app.runRetry(ctx, args)
	case "refresh":
		err = app.runRefresh(ctx, args)
	case "status":
		err = app.runStatus(ctx, args)
	case "sources":
		err = app.runSources(ctx)
	case "init":
		err = app.runInit(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

// app wires the repositories and pipeline once for every DB-backed command.
type app struct {
	cfg         *config.Config
	db          *database.DB
	sources     *repository.SourceRepository
	assets      *repository.AssetRepository
	batches     *repository.BatchRepository
	pipeline    *pipeline.Pipeline
	coordinator *refresh.Coordinator
}

func newApp(cfg *config.Config, db *database.DB) *app {
	sourceRepo := repository.NewSourceRepository(db.Pool)
	assetRepo := repository.NewAssetRepository(db.Pool)
	batchRepo := repository.NewBatchRepository(db.Pool)
	priceRepo := repository.NewPriceRepository(db.Pool)
	stagingStore := staging.NewStore(db.Pool)

	priceLoader := loader.New(priceRepo, cfg.ChunkSize)
	p := pipeline.New(cfg, stagingStore, sourceRepo, assetRepo, batchRepo, priceLoader)
	coordinator := refresh.NewCoordinator(refresh.NewPostgresViewStore(db.Pool))

	return &app{
		cfg:         cfg,
		db:          db,
		sources:     sourceRepo,
		assets:      assetRepo,
		batches:     batchRepo,
		pipeline:    p,
		coordinator: coordinator,
	}
}

func (a *app) runLoad(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	file := fs.String("file", "", "CSV file to load")
	source := fs.String("source", "yahoo", "data source name")
	noRefresh := fs.Bool("no-refresh", false, "skip the gold view refresh")
	fs.Parse(args)
	if *file == "" {
		return errors.New("-file is required")
	}

	result, err := a.pipeline.LoadFile(ctx, *file, *source)
	if err != nil {
		return err
	}
	printJSON(result)

	if *noRefresh {
		return nil
	}
	return a.coordinator.Refresh(ctx, goldView, true)
}

func (a *app) runBulk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of CSV files")
	source := fs.String("source", "yahoo", "data source name")
	resume := fs.Bool("resume", false, "skip symbols already loaded for this source")
	workers := fs.Int("workers", a.cfg.MaxWorkers, "parallel file loads")
	fs.Parse(args)
	if *dir == "" {
		return errors.New("-dir is required")
	}

	tracker := refresh.NewTracker(a.cfg.RefreshEvery)
	d := pipeline.NewDispatcher(a.pipeline, a.assets, a.coordinator, tracker, goldView, *workers, *resume)
	summary, err := d.Run(ctx, *dir, *source)
	if summary != nil {
		printJSON(summary)
	}
	return err
}

func (a *app) runRetry(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	source := fs.String("source", "yahoo", "data source name")
	fs.Parse(args)

	files, err := a.batches.FailedFiles(ctx, *source)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Info("no failed files to retry")
		return nil
	}
	log.Infof("retrying %d failed files", len(files))

	retried, failed := 0, 0
	for _, file := range files {
		if _, err := a.pipeline.LoadFile(ctx, file, *source); err != nil {
			log.Errorf("retry of %s failed: %v", file, err)
			failed++
			continue
		}
		retried++
	}
	log.Infof("retry complete: %d succeeded, %d failed", retried, failed)

	if retried > 0 {
		return a.coordinator.Refresh(ctx, goldView, true)
	}
	return nil
}

func (a *app) runRefresh(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	blocking := fs.Bool("blocking", false, "force a blocking refresh")
	fs.Parse(args)

	return a.coordinator.Refresh(ctx, goldView, !*blocking)
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	file := fs.String("file", "", "CSV file to score")
	fs.Parse(args)
	if *file == "" {
		log.Fatal("-file is required")
	}

	rows, err := staging.NormalizeFile(*file)
	if err != nil {
		log.Fatalf("validate failed: %v", err)
	}
	printJSON(quality.Report(rows, *file))
}

func (a *app) runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	batchID := fs.Int64("batch", 0, "show one batch instead of warehouse status")
	fs.Parse(args)

	if *batchID > 0 {
		batch, err := a.batches.Get(ctx, *batchID)
		if err != nil {
			return err
		}
		printJSON(batch)
		return nil
	}

	stats, err := refresh.Stats(ctx, a.db.Pool, goldView)
	if err != nil {
		return err
	}
	freshness, err := refresh.Freshness(ctx, a.db.Pool, goldView, time.Hour)
	if err != nil {
		return err
	}
	staged, err := staging.NewStore(a.db.Pool).Fetch(ctx)
	if err != nil {
		return err
	}
	printJSON(map[string]any{
		"view":      stats,
		"freshness": freshness,
		"staging":   staging.Summarize(staged),
	})
	return nil
}

func (a *app) runSources(ctx context.Context) error {
	sources, err := a.sources.List(ctx)
	if err != nil {
		return err
	}
	printJSON(sources)
	return nil
}

func (a *app) runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	schema := fs.String("schema", "schema.sql", "path to the schema file")
	fs.Parse(args)

	ddl, err := os.ReadFile(*schema)
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := a.db.Pool.Exec(ctx, string(ddl)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Infof("applied schema from %s", *schema)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
	fmt.Println(string(out))
}
