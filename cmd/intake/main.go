package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joseph-ayodele/workorder-intake/internal/app"
	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/ingest"
	"github.com/joseph-ayodele/workorder-intake/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// summary is the line printed per document.
type summary struct {
	File       string   `json:"file"`
	DocHash    string   `json:"doc_hash"`
	Issuer     string   `json:"issuer,omitempty"`
	Status     string   `json:"status"`
	Reason     string   `json:"reason"`
	Identifier string   `json:"identifier,omitempty"`
	Key        string   `json:"work_order_key,omitempty"`
	Artifact   string   `json:"artifact_path,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func main() {
	var (
		inmem    = flag.Bool("inmem", false, "use in-memory SQLite database")
		file     = flag.String("file", "", "single PDF to process")
		eml      = flag.String("eml", "", "RFC 822 email whose PDF attachments are processed")
		dir      = flag.String("dir", "", "directory of PDFs to process")
		sender   = flag.String("sender", "", "sender address used for issuer matching (-file, -dir)")
		issuer   = flag.String("issuer", "", "issuer key; skips sender matching")
		override = flag.String("override", "", "human-read identifier; reprocesses -file with it")
		out      = flag.String("out", "", "write the review queue to this XLSX after processing")
	)
	flag.Parse()

	inputs := 0
	for _, s := range []string{*file, *eml, *dir} {
		if s != "" {
			inputs++
		}
	}
	if inputs != 1 {
		printError("Error: exactly one of --file, --eml or --dir is required\n")
		os.Exit(2)
	}
	if *override != "" && *file == "" {
		printError("Error: --override only applies to --file\n")
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	common.LoadDotEnv()
	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.DSN = ":memory:"
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	opts := pipeline.Options{IssuerKey: *issuer}
	enc := json.NewEncoder(os.Stdout)
	emit := func(res *pipeline.Result) {
		if res == nil {
			return
		}
		sum := summary{
			File:       res.Filename,
			DocHash:    res.DocHash,
			Issuer:     res.Issuer,
			Status:     string(res.Record.Status),
			Reason:     string(res.Record.Reason),
			Identifier: res.Outcome.Identifier,
			Key:        string(res.Record.Key),
			Artifact:   res.Record.ArtifactPath,
			Detail:     res.Outcome.Detail,
			Warnings:   res.Warnings,
		}
		if res.Err != nil {
			sum.Error = res.Err.Error()
		}
		_ = enc.Encode(sum)
	}

	failures := 0
	switch {
	case *file != "":
		doc, err := ingest.FromPath(*file, *sender)
		if err != nil {
			logger.Error("failed to read file", "file", *file, "error", err)
			os.Exit(1)
		}
		var res *pipeline.Result
		if *override != "" {
			res, err = a.Processor.Reprocess(ctx, doc, *override, opts)
		} else {
			res, err = a.Processor.Process(ctx, doc, opts)
		}
		if err != nil {
			logger.Error("failed to process file", "file", *file, "error", err)
			failures++
		}
		emit(res)

	case *eml != "":
		f, err := os.Open(*eml)
		if err != nil {
			logger.Error("failed to open email", "file", *eml, "error", err)
			os.Exit(1)
		}
		msg, err := ingest.ParseEmail(f)
		_ = f.Close()
		if err != nil {
			logger.Error("failed to parse email", "file", *eml, "error", err)
			os.Exit(1)
		}
		logger.Info("email parsed", "from", msg.From, "subject", msg.Subject, "attachments", len(msg.Documents))
		results, err := a.Processor.ProcessAll(ctx, msg.Documents, opts)
		if err != nil {
			logger.Error("some attachments could not be persisted", "error", err)
			failures++
		}
		for _, res := range results {
			emit(res)
		}

	case *dir != "":
		root, _ := filepath.Abs(*dir)
		_, stats, err := ingest.WalkDirectory(ctx, root, *sender, true, func(ctx context.Context, doc ingest.Document) error {
			res, err := a.Processor.Process(ctx, doc, opts)
			emit(res)
			return err
		})
		if err != nil {
			logger.Error("failed to walk directory", "dir", root, "error", err)
			os.Exit(1)
		}
		failures += int(stats.Failed)
		logger.Info("directory processed",
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"succeeded", stats.Succeeded,
			"failed", stats.Failed,
			"deduplicated", stats.Deduplicated)
	}

	if *out != "" {
		xlsx, err := a.Exporter.ExportReviewQueueXLSX(ctx, nil)
		if err != nil {
			logger.Error("failed to export review queue", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
			logger.Error("failed to write output file", "error", err)
			os.Exit(1)
		}
		logger.Info("review queue exported", "output", *out, "bytes", len(xlsx))
	}

	if failures > 0 {
		os.Exit(1)
	}
}
