// Package barset holds the deduplicated bar set of a replay run and the
// published chart book built from it, with pub/sub for HTTP and gRPC
// streaming.
package barset

import "replaychart/internal/domain"

// Accumulator keeps the first record seen for every event time of the
// target symbol. It is owned by a single loading goroutine and is not safe
// for concurrent use.
type Accumulator struct {
	symbol string
	seen   map[string]struct{}
	order  []domain.RawBar
}

// NewAccumulator creates an empty accumulator for domain.TargetSymbol.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		symbol: domain.TargetSymbol,
		seen:   make(map[string]struct{}),
	}
}

// Matches reports whether bar belongs to the target instrument.
func (a *Accumulator) Matches(bar domain.RawBar) bool {
	return bar.Symbol == a.symbol
}

// Insert adds bar if it matches the target symbol and its raw event time has
// not been seen. An existing entry is never overwritten. Returns true if the
// bar was added.
func (a *Accumulator) Insert(bar domain.RawBar) bool {
	if !a.Matches(bar) || bar.Hd == nil {
		return false
	}
	key := bar.Hd.TsEvent
	if _, ok := a.seen[key]; ok {
		return false
	}
	a.seen[key] = struct{}{}
	a.order = append(a.order, bar)
	return true
}

// Len returns the number of distinct event times held.
func (a *Accumulator) Len() int { return len(a.order) }

// Snapshot returns a copy of the held records in first-seen order.
func (a *Accumulator) Snapshot() []domain.RawBar {
	out := make([]domain.RawBar, len(a.order))
	copy(out, a.order)
	return out
}
