package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/clickhouse"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/config"
	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

// Validates snapshot CSV files and stages them into ClickHouse.

func main() {
	configPath := flag.String("config", "", "YAML config (ClickHouse section)")
	step := flag.Int64("step-ms", 100, "expected snapshot cadence for gap checks, 0 disables")
	batch := flag.Int("batch", clickhouse.DefaultBatchSize, "rows per insert batch")
	validateOnly := flag.Bool("validate", false, "run the validation suite without inserting")
	strict := flag.Bool("strict", false, "refuse to insert when any check fails")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] <snapshots.csv>...")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	suite := NewValidationSuite(*step, logger)
	var src *clickhouse.Source
	if !*validateOnly {
		if !cfg.ClickHouse.Enabled() {
			logger.Fatal("ClickHouse is not configured; set clickhouse.addr or LOBALPHA_CLICKHOUSE_DSN")
		}
		src, err = clickhouse.Open(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
		}
		defer src.Close()
		if err := src.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to create schema", zap.Error(err))
		}
	}

	failed := false
	for _, path := range files {
		n, violations, err := ingestFile(ctx, path, suite, src, *batch, *strict)
		fields := []zap.Field{zap.String("file", path), zap.Int("inserted", n), zap.Int("violations", len(violations))}
		for i, v := range violations {
			if i == 20 {
				logger.Warn("Further violations suppressed", zap.String("file", path))
				break
			}
			logger.Warn("Validation failed", zap.String("check", v.Check), zap.String("detail", v.String()))
		}
		if err != nil {
			failed = true
			logger.Error("Ingest failed", append(fields, zap.Error(err))...)
			continue
		}
		logger.Info("Ingested file", fields...)
	}
	if failed {
		os.Exit(1)
	}
}

func ingestFile(ctx context.Context, path string, suite *ValidationSuite, src *clickhouse.Source, batch int, strict bool) (int, []Violation, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	snaps, err := lob.ParseCSV(f)
	f.Close()
	if err != nil {
		return 0, nil, err
	}
	violations := suite.RunAllValidations(snaps)
	if strict && len(violations) > 0 {
		return 0, violations, fmt.Errorf("%d validation failures", len(violations))
	}
	if src == nil {
		return 0, violations, nil
	}
	n, err := src.InsertSnapshots(ctx, snaps, batch)
	return n, violations, err
}
