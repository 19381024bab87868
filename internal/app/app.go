// Package app wires configuration into a running intake pipeline. Both the daemon
// and the CLI build through here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/workorder-intake/internal/artifacts"
	"github.com/joseph-ayodele/workorder-intake/internal/command"
	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/decision"
	"github.com/joseph-ayodele/workorder-intake/internal/export"
	"github.com/joseph-ayodele/workorder-intake/internal/issuer"
	"github.com/joseph-ayodele/workorder-intake/internal/ocr"
	"github.com/joseph-ayodele/workorder-intake/internal/ocr/tesseract"
	"github.com/joseph-ayodele/workorder-intake/internal/pipeline"
	"github.com/joseph-ayodele/workorder-intake/internal/records"
	"github.com/joseph-ayodele/workorder-intake/internal/render"
	"github.com/joseph-ayodele/workorder-intake/internal/render/poppler"
	"github.com/joseph-ayodele/workorder-intake/internal/repository"
	"github.com/joseph-ayodele/workorder-intake/internal/server"
)

// App holds the long-lived collaborators of one process.
type App struct {
	DB        *repository.DB
	Orders    repository.WorkOrderRepository
	Reviews   repository.ReviewRepository
	Store     *artifacts.FSStore
	Matcher   *issuer.Matcher
	Engine    render.Engine
	Lookup    decision.Lookup
	Processor *pipeline.Processor
	Exporter  *export.Service
	cfg       *common.Config
	logger    *slog.Logger
}

// Build opens the database, migrates it and assembles the pipeline described by
// cfg. Callers own the returned App and must Close it.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	profiles, err := issuer.LoadProfiles(cfg.Issuers.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("load issuer profiles: %w", err)
	}
	logger.Info("issuer profiles loaded", "path", cfg.Issuers.ProfilesPath, "count", len(profiles))

	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store, err := artifacts.NewFSStore(cfg.Storage.ArtifactDir, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	runner := command.NewExecRunner(logger)
	engine := poppler.NewEngine(poppler.Config{
		Pdfinfo:  cfg.Render.PdfinfoBin,
		Pdftoppm: cfg.Render.PdftoppmBin,
	}, runner, logger)

	orders := repository.NewWorkOrderRepository(db, logger)
	reviews := repository.NewReviewRepository(db, logger)
	matcher := issuer.NewMatcher(profiles, logger)
	lookup := records.NewExistenceLookup(orders)

	proc := pipeline.NewProcessor(pipeline.Deps{
		Matcher: matcher,
		Engine:  engine,
		Rasterizer: render.NewRasterizer(render.Options{
			MaxWidthPx:   cfg.Render.MaxWidthPx,
			DefaultScale: cfg.Render.DefaultScale,
			TolerancePx:  cfg.Render.TolerancePx,
		}, logger),
		Recognizer: newRecognizer(cfg.OCR, runner, logger),
		Decider:    decision.NewEngine(logger),
		Lookup:     lookup,
		Writer:     records.NewWriter(orders, reviews, store, logger),
	}, pipeline.Config{
		CropDPI:        cfg.Render.CropDPI,
		Labeler:        ocr.NewLabeler(cfg.Decision.HighThreshold, cfg.Decision.MediumThreshold),
		LookupAttempts: cfg.Decision.LookupAttempts,
		LookupBackoff:  cfg.Decision.LookupBackoff,
		Parallelism:    cfg.Pipeline.Parallelism,
	}, logger)

	return &App{
		DB:        db,
		Orders:    orders,
		Reviews:   reviews,
		Store:     store,
		Matcher:   matcher,
		Engine:    engine,
		Lookup:    lookup,
		Processor: proc,
		Exporter:  export.NewService(orders, reviews, logger),
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// IntakeService exposes the app over gRPC.
func (a *App) IntakeService() *server.IntakeService {
	return server.NewIntakeService(server.Deps{
		Matcher:   a.Matcher,
		Processor: a.Processor,
		Lookup:    a.Lookup,
		Engine:    a.Engine,
		Reviews:   a.Reviews,
		Exporter:  a.Exporter,
		CropDPI:   a.cfg.Render.CropDPI,
	}, a.logger)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func newRecognizer(cfg common.OCRConfig, runner command.Runner, logger *slog.Logger) ocr.Recognizer {
	oc := ocr.Config{
		Tesseract:     cfg.TesseractBin,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		PSM:           cfg.PSM,
	}
	if cfg.Engine == "gosseract" {
		return tesseract.NewRecognizer(oc, logger)
	}
	return ocr.NewCLIRecognizer(oc, runner, logger)
}
