// One-shot tool: replay every bar file once and write the assembled ESZ4
// series to disk as json, csv, parquet or msgpack.
//
// Usage:
//
//	go build -o bin/replay-export ./cmd/replay-export/
//	bin/replay-export [-format parquet] [-out export/esz4-bars]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"replaychart/internal/barset"
	"replaychart/internal/chart"
	"replaychart/internal/config"
	"replaychart/internal/domain"
	"replaychart/internal/gather"
	"replaychart/internal/gather/ndjson"
	"replaychart/internal/store"
	"replaychart/internal/trace"
	"replaychart/internal/util"
)

const version = "0.1.0"

func main() {
	format := flag.String("format", "", "output format: json, csv, parquet or msgpack (default from config)")
	out := flag.String("out", "", "output path without extension (default from config)")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *format != "" {
		cfg.Export.Format = *format
	}
	if *out != "" {
		cfg.Export.Path = *out
	}

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
		trace.Shutdown(ctx)
	}()

	sink, err := store.NewSink(cfg.Export.Format)
	if err != nil {
		log.Fatalf("export format: %v", err)
	}

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sum, err := ndjson.NewLoader(source, ndjson.DefaultFiles, observers).WithLogger(logger).Load(ctx)
	if err != nil {
		log.Fatalf("replay interrupted: %v", err)
	}

	records := store.Records(book.Snapshot().Series)
	path := cfg.Export.Path + "." + sink.Extension()
	if err := sink.Save(records, path); err != nil {
		log.Fatalf("writing export: %v", err)
	}

	logger.Info("export written",
		"path", path,
		"format", sink.Extension(),
		"bars", len(records),
		"dropped", book.Status().Dropped,
		"files_loaded", sum.Loaded,
		"files_skipped", sum.Skipped,
	)
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
