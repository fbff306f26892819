package gather

import (
	"context"
	"time"

	"replaychart/internal/domain"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}

// Source fetches the complete body of a named input file.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	String() string
}

// ---------------------------------------------------------------------------
// Run events
// ---------------------------------------------------------------------------

// FileStats summarises how one file contributed to a run.
type FileStats struct {
	Bytes     int `json:"bytes"`
	Lines     int `json:"lines"`
	Parsed    int `json:"parsed"`
	Malformed int `json:"malformed"`
	Matched   int `json:"matched"`
	Added     int `json:"added"`
}

// Summary describes a finished (or cancelled) run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Files     int           `json:"files"`
	Loaded    int           `json:"loaded"`
	Skipped   int           `json:"skipped"`
	Empty     int           `json:"empty"`
	Malformed int           `json:"malformed"`
	Records   int           `json:"records"`
	Elapsed   time.Duration `json:"elapsed"`
	Err       string        `json:"error,omitempty"`
}

// Observer receives progress events from a run. Calls arrive sequentially
// from the loading goroutine.
type Observer interface {
	Started(runID string, files []string)
	FileSkipped(name string, err error)
	LineMalformed(name string, lineNo int, line string, err error)
	FileLoaded(name string, stats FileStats)
	// Changed delivers the full deduplicated record set, in first-seen
	// order, after a file added at least one new record. The slice is a
	// private copy owned by the callee.
	Changed(records []domain.RawBar)
	Finished(sum Summary)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) Started(string, []string)                {}
func (NopObserver) FileSkipped(string, error)               {}
func (NopObserver) LineMalformed(string, int, string, error) {}
func (NopObserver) FileLoaded(string, FileStats)            {}
func (NopObserver) Changed([]domain.RawBar)                 {}
func (NopObserver) Finished(Summary)                        {}

// Observers fans each event out to every member in order.
type Observers []Observer

var _ Observer = Observers(nil)
var _ Observer = NopObserver{}

func (o Observers) Started(runID string, files []string) {
	for _, obs := range o {
		obs.Started(runID, files)
	}
}

func (o Observers) FileSkipped(name string, err error) {
	for _, obs := range o {
		obs.FileSkipped(name, err)
	}
}

func (o Observers) LineMalformed(name string, lineNo int, line string, err error) {
	for _, obs := range o {
		obs.LineMalformed(name, lineNo, line, err)
	}
}

func (o Observers) FileLoaded(name string, stats FileStats) {
	for _, obs := range o {
		obs.FileLoaded(name, stats)
	}
}

// Changed hands each observer its own copy of records.
func (o Observers) Changed(records []domain.RawBar) {
	for i, obs := range o {
		if i == len(o)-1 {
			obs.Changed(records)
			return
		}
		cp := make([]domain.RawBar, len(records))
		copy(cp, records)
		obs.Changed(cp)
	}
}

func (o Observers) Finished(sum Summary) {
	for _, obs := range o {
		obs.Finished(sum)
	}
}
