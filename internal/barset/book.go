package barset

import (
	"log/slog"
	"sync"
	"time"

	"replaychart/internal/chart"
	"replaychart/internal/domain"
	"replaychart/internal/gather"
)

var _ gather.Observer = (*Book)(nil)

// Update is emitted to subscribers whenever the published series changes
// or the run finishes. Series is shared and must be treated as read-only.
type Update struct {
	Version int64
	Done    bool
	Series  chart.Series
}

// Status reports ingest progress for the current run.
type Status struct {
	RunID      string    `json:"run_id"`
	Symbol     string    `json:"symbol"`
	Files      int       `json:"files"`
	Loaded     int       `json:"loaded"`
	Skipped    int       `json:"skipped"`
	Malformed  int       `json:"malformed"`
	Records    int       `json:"records"`
	Bars       int       `json:"bars"`
	Dropped    int       `json:"dropped"`
	Version    int64     `json:"version"`
	Done       bool      `json:"done"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Book is the consumer side of a replay run: it assembles every changed
// record set into a sorted chart series, replaces its published series
// wholesale, and fans updates out to subscribers.
type Book struct {
	norm  *chart.Normalizer
	style chart.Style
	log   *slog.Logger

	mu      sync.RWMutex
	series  chart.Series
	version int64
	status  Status

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Update
}

// NewBook creates an empty book that normalizes times with norm.
func NewBook(norm *chart.Normalizer, style chart.Style, log *slog.Logger) *Book {
	if log == nil {
		log = slog.Default()
	}
	return &Book{
		norm:   norm,
		style:  style,
		log:    log.With("component", "book"),
		status: Status{Symbol: domain.TargetSymbol},
		subs:   make(map[int]chan Update),
	}
}

// Style returns the chart colors the book was built with.
func (b *Book) Style() chart.Style { return b.style }

// Timezone returns the display zone name.
func (b *Book) Timezone() string { return b.norm.Location().String() }

// ---------------------------------------------------------------------------
// gather.Observer
// ---------------------------------------------------------------------------

// Started resets the status for a new run. The published series is kept
// until the new run delivers its first change.
func (b *Book) Started(runID string, files []string) {
	b.mu.Lock()
	b.status = Status{
		RunID:     runID,
		Symbol:    domain.TargetSymbol,
		Files:     len(files),
		Version:   b.version,
		StartedAt: time.Now(),
	}
	b.mu.Unlock()
}

func (b *Book) FileSkipped(string, error) {
	b.mu.Lock()
	b.status.Skipped++
	b.mu.Unlock()
}

func (b *Book) LineMalformed(string, int, string, error) {
	b.mu.Lock()
	b.status.Malformed++
	b.mu.Unlock()
}

func (b *Book) FileLoaded(string, gather.FileStats) {
	b.mu.Lock()
	b.status.Loaded++
	b.mu.Unlock()
}

// Changed assembles records and publishes the result as the new series.
func (b *Book) Changed(records []domain.RawBar) {
	series := chart.Assemble(records, b.norm, b.style)

	b.mu.Lock()
	b.version++
	b.series = series
	b.status.Records = len(records)
	b.status.Bars = series.Len()
	b.status.Dropped = series.Dropped
	b.status.Version = b.version
	upd := Update{Version: b.version, Done: b.status.Done, Series: series}
	b.mu.Unlock()

	b.log.Debug("series replaced", "version", upd.Version, "bars", series.Len(), "dropped", series.Dropped)
	b.publish(upd)
}

// Finished marks the run done and notifies subscribers.
func (b *Book) Finished(sum gather.Summary) {
	b.mu.Lock()
	b.status.Done = true
	b.status.FinishedAt = time.Now()
	b.status.Error = sum.Err
	upd := Update{Version: b.version, Done: true, Series: b.series}
	b.mu.Unlock()

	b.publish(upd)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// Snapshot returns the current published state.
func (b *Book) Snapshot() Update {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Update{Version: b.version, Done: b.status.Done, Series: b.series}
}

// Range returns the published bars with from <= time <= to (zero is open).
func (b *Book) Range(from, to int64) chart.Series {
	b.mu.RLock()
	s := b.series
	b.mu.RUnlock()
	return s.Range(from, to)
}

// Status returns a copy of the ingest status.
func (b *Book) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// ---------------------------------------------------------------------------
// Pub/sub
// ---------------------------------------------------------------------------

// Subscribe returns a channel that receives every subsequent update. A slow
// subscriber loses its oldest queued updates, never the newest; each update
// carries the full series, so the final done update is always delivered.
func (b *Book) Subscribe(bufSize int) (int, <-chan Update) {
	ch := make(chan Update, bufSize)
	b.subsMu.Lock()
	id := b.nextSubID
	b.nextSubID++
	b.subs[id] = ch
	b.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Book) Unsubscribe(id int) {
	b.subsMu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.subsMu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (b *Book) Subscribers() int {
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	return len(b.subs)
}

func (b *Book) publish(upd Update) {
	b.subsMu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- upd:
			continue
		default:
		}
		// Buffer full: discard the oldest update to make room. Sends only
		// happen under subsMu, so the second send cannot block.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- upd:
		default:
		}
	}
	b.subsMu.Unlock()
}
