package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/export"
	repo "github.com/joseph-ayodele/workorder-intake/internal/repository"
)

func main() {
	var (
		out      = flag.String("out", "review-queue.xlsx", "output XLSX file path")
		sinceStr = flag.String("since", "", "only items queued on or after this date (YYYY-MM-DD)")
		orders   = flag.Bool("orders", false, "export work orders instead of the review queue")
		status   = flag.String("status", "", "work order status filter for --orders (OPEN, MATCHED)")
	)
	flag.Parse()

	var since *time.Time
	if *sinceStr != "" {
		parsed, err := time.Parse("2006-01-02", *sinceStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --since date format, use YYYY-MM-DD: %v\n", err)
			os.Exit(2)
		}
		since = &parsed
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	common.LoadDotEnv()
	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("missing DB_URL environment variable")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := repo.Open(ctx, repo.Config{
		DSN:         cfg.Database.DSN,
		MaxConns:    2,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}

	svc := export.NewService(repo.NewWorkOrderRepository(db, logger), repo.NewReviewRepository(db, logger), logger)
	var xlsx []byte
	if *orders {
		xlsx, err = svc.ExportWorkOrdersXLSX(ctx, constants.WorkOrderStatus(*status))
	} else {
		xlsx, err = svc.ExportReviewQueueXLSX(ctx, since)
	}
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}
	logger.Info("export written", "output", *out, "bytes", len(xlsx))
}
