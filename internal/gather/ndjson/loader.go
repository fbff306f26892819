package ndjson

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"replaychart/internal/barset"
	"replaychart/internal/domain"
	"replaychart/internal/gather"
	"replaychart/internal/trace"
)

var _ gather.Gatherer = (*Loader)(nil)

// Loader replays a fixed list of NDJSON files, one at a time and in sorted
// order, into a fresh accumulator per run. Progress goes to the observer.
type Loader struct {
	source gather.Source
	files  []string
	obs    gather.Observer
	log    *slog.Logger
}

// NewLoader creates a loader reading files from source. A nil observer
// discards events.
func NewLoader(source gather.Source, files []string, obs gather.Observer) *Loader {
	if obs == nil {
		obs = gather.NopObserver{}
	}
	return &Loader{
		source: source,
		files:  SortedFiles(files),
		obs:    obs,
		log:    slog.Default().With("gatherer", "ndjson-replay"),
	}
}

// WithLogger replaces the loader's logger.
func (l *Loader) WithLogger(log *slog.Logger) *Loader {
	l.log = log.With("gatherer", l.Name())
	return l
}

// Name returns the gatherer identifier.
func (l *Loader) Name() string { return "ndjson-replay" }

// Files returns the files in the order they are read.
func (l *Loader) Files() []string {
	out := make([]string, len(l.files))
	copy(out, l.files)
	return out
}

// Run performs one replay pass.
func (l *Loader) Run(ctx context.Context) error {
	_, err := l.Load(ctx)
	return err
}

// Load reads every file, skipping ones that fail to fetch and lines that
// fail to parse. The only error returned is ctx's, when the run is
// cancelled before all files are read.
func (l *Loader) Load(ctx context.Context) (gather.Summary, error) {
	runID := uuid.NewString()
	ctx, span := trace.StartSpan(ctx, "ndjson.Load", oteltrace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("files", len(l.files)),
	))
	defer span.End()

	log := l.log.With("run", runID)
	if traceID, _, ok := trace.TraceFields(ctx); ok {
		log = log.With("trace_id", traceID)
	}

	start := time.Now()
	sum := gather.Summary{RunID: runID, Files: len(l.files)}
	acc := barset.NewAccumulator()

	l.obs.Started(runID, l.Files())
	log.Info("replay started", "source", l.source.String(), "files", len(l.files))

	var runErr error
	for _, name := range l.files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		body, err := l.fetch(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			sum.Skipped++
			l.obs.FileSkipped(name, err)
			log.Error("failed to fetch bar file", "file", name, "error", err)
			continue
		}
		if len(body) == 0 {
			sum.Empty++
			log.Debug("empty bar file", "file", name)
			continue
		}

		stats := l.ingest(name, body, acc, log)
		sum.Loaded++
		sum.Malformed += stats.Malformed
		l.obs.FileLoaded(name, stats)
		log.Info("bar file loaded",
			"file", name,
			"lines", stats.Lines,
			"matched", stats.Matched,
			"added", stats.Added,
			"malformed", stats.Malformed,
		)

		if stats.Added > 0 {
			l.obs.Changed(acc.Snapshot())
		}
	}

	sum.Records = acc.Len()
	sum.Elapsed = time.Since(start)
	if runErr != nil {
		sum.Err = runErr.Error()
		span.SetStatus(codes.Error, runErr.Error())
		log.Warn("replay cancelled", "error", runErr, "loaded", sum.Loaded)
	}
	span.SetAttributes(attribute.Int("records", sum.Records))

	l.obs.Finished(sum)
	log.Info("parsed records",
		"records", sum.Records,
		"loaded", sum.Loaded,
		"skipped", sum.Skipped,
		"empty", sum.Empty,
		"malformed", sum.Malformed,
		"elapsed", sum.Elapsed,
	)
	return sum, runErr
}

func (l *Loader) fetch(ctx context.Context, name string) ([]byte, error) {
	ctx, span := trace.StartSpan(ctx, "ndjson.fetch", oteltrace.WithAttributes(attribute.String("file", name)))
	defer span.End()

	body, err := l.source.Fetch(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", len(body)))
	return body, nil
}

func (l *Loader) ingest(name string, body []byte, acc *barset.Accumulator, log *slog.Logger) gather.FileStats {
	stats := gather.FileStats{Bytes: len(body)}
	stats.Lines = ParseLines(body,
		func(_ int, bar domain.RawBar) {
			stats.Parsed++
			if !acc.Matches(bar) {
				return
			}
			stats.Matched++
			if acc.Insert(bar) {
				stats.Added++
			}
		},
		func(lineNo int, line string, err error) {
			stats.Malformed++
			l.obs.LineMalformed(name, lineNo, line, err)
			log.Warn("malformed line in bar file", "file", name, "line", lineNo, "text", excerpt(line), "error", err)
		},
	)
	return stats
}

// excerpt shortens a line for logging.
func excerpt(line string) string {
	const limit = 120
	if len(line) <= limit {
		return line
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "..."
}
