package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/workorder-intake/internal/app"
	"github.com/joseph-ayodele/workorder-intake/internal/common"
	"github.com/joseph-ayodele/workorder-intake/internal/ingest"
	"github.com/joseph-ayodele/workorder-intake/internal/pipeline"
	"github.com/joseph-ayodele/workorder-intake/internal/server"
)

func main() {
	watch := flag.String("watch", "", "drop folder to watch for PDFs (overrides WATCH_DIR)")
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	common.LoadDotEnv(*envFile)
	cfg := common.LoadConfig()
	if *watch != "" {
		cfg.Pipeline.WatchDir = *watch
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.LoggingInterceptor(logger)))
	server.RegisterIntakeServer(grpcServer, a.IntakeService())

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(server.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	if cfg.Pipeline.WatchDir != "" {
		go watchDropFolder(ctx, a, cfg.Pipeline, logger)
	}

	logger.Info("workorderd listening", "addr", cfg.Server.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
}

// watchDropFolder processes PDFs dropped into the configured folder, one at a time.
func watchDropFolder(ctx context.Context, a *app.App, cfg common.PipelineConfig, logger *slog.Logger) {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.WatchDir},
		InitialScan: true,
		Debounce:    cfg.Debounce,
	}, logger)
	if err != nil {
		logger.Error("watcher.start.failed", "dir", cfg.WatchDir, "error", err)
		return
	}
	logger.Info("watcher.started", "dir", cfg.WatchDir)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher.error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return
			}
			doc, err := ingest.FromPath(path, "")
			if err != nil {
				logger.Warn("watcher.file.skipped", "path", path, "error", err)
				continue
			}
			// dropped files carry no sender; the folder name selects the issuer
			opts := pipeline.Options{IssuerKey: ingest.IssuerFromPath(cfg.WatchDir, path)}
			if _, err := a.Processor.Process(ctx, doc, opts); err != nil {
				logger.Error("watcher.process.failed", "path", path, "error", err)
			}
		}
	}
}
