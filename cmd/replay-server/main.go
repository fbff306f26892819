// Long-running replay server: loads the ESZ4 one-minute bar files and serves
// the progressively assembled chart over HTTP (JSON + SSE) and gRPC.
//
// Usage:
//
//	go build -o bin/replay-server ./cmd/replay-server/
//	REPLAY_CONFIG=config/replaychart.yaml bin/replay-server
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"replaychart/internal/api"
	"replaychart/internal/barset"
	"replaychart/internal/chart"
	"replaychart/internal/config"
	"replaychart/internal/domain"
	"replaychart/internal/gather"
	"replaychart/internal/gather/ndjson"
	"replaychart/internal/httpapi"
	"replaychart/internal/store"
	"replaychart/internal/trace"
	"replaychart/internal/util"
)

const version = "0.1.0"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	w, closeLog, err := util.LogOutput(cfg.Logging.File)
	if err != nil {
		log.Fatalf("setting up logging: %v", err)
	}
	defer closeLog()
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	util.SetDefault(logger)

	if err := trace.Init(cfg.Tracing.Enabled, os.Stderr, version); err != nil {
		log.Fatalf("initializing tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := trace.Shutdown(ctx); err != nil {
			logger.Error("flushing traces", "error", err)
		}
	}()

	norm, err := chart.NewNormalizer(domain.DisplayTimezone)
	if err != nil {
		log.Fatalf("loading display timezone: %v", err)
	}
	book := barset.NewBook(norm, chart.DefaultStyle, logger)

	observers := gather.Observers{book}
	if cfg.Audit.SQLitePath != "" {
		rec, err := store.NewSQLiteRecorder(cfg.Audit.SQLitePath, logger)
		if err != nil {
			log.Fatalf("opening audit db: %v", err)
		}
		defer rec.Close()
		observers = append(observers, rec)
	}

	source, err := newSource(cfg)
	if err != nil {
		log.Fatalf("creating source: %v", err)
	}
	loader := ndjson.NewLoader(source, ndjson.DefaultFiles, observers).WithLogger(logger)

	grpcAddr := ""
	if cfg.Server.GRPCPort > 0 {
		grpcAddr = cfg.GRPCAddr()
	}
	srv := api.NewServer(
		cfg.HTTPAddr(),
		grpcAddr,
		httpapi.NewChartServer(book, cfg.Storage.DataDir, logger).Handler(),
		barset.NewServer(book, logger),
		logger,
	)
	// Bind before loading so an http source may point at our own /data.
	if err := srv.Listen(); err != nil {
		log.Fatalf("starting server: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("replay-server starting",
		"version", version,
		"http", srv.HTTPAddr(),
		"grpc", srv.GRPCAddr(),
		"source", source.String(),
		"symbol", domain.TargetSymbol,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		sum, err := loader.Load(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("replay: %w", err)
		}
		logger.Info("replay finished, serving until interrupted", "records", sum.Records, "bars", book.Status().Bars)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("replay-server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("replay-server stopped")
}

func newSource(cfg *config.Config) (gather.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceDir:
		return ndjson.NewDirSource(cfg.Storage.DataDir), nil
	case config.SourceHTTP:
		return ndjson.NewHTTPSource(cfg.Source.BaseURL, ndjson.WithTimeout(cfg.Source.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
