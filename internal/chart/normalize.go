// Package chart turns deduplicated raw bars into the time-sorted candlestick
// and volume series a UTC-only chart renderer can display.
package chart

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone rules must not depend on the host's zoneinfo
)

// ErrEmptyTimestamp is returned when an event time string is blank.
var ErrEmptyTimestamp = errors.New("empty event time")

// eventTimeLayouts are tried in order after the epoch-nanosecond form.
// Zone-less layouts are read as UTC.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseEventTime parses a raw ts_event value into an absolute instant.
// An all-digit string is taken as nanoseconds since the Unix epoch.
func ParseEventTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyTimestamp
	}

	if isDigits(s) {
		ns, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing epoch nanoseconds %q: %w", s, err)
		}
		return time.Unix(0, ns).UTC(), nil
	}

	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised event time %q", s)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Normalizer maps instants onto "wall clock as UTC" epoch seconds for a
// fixed display zone.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer loads the named IANA zone.
func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading zone %q: %w", zone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// Location returns the display zone.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Shift renders t in the display zone and returns that wall clock read as
// a UTC instant, in epoch seconds. Sub-second precision is truncated.
func (n *Normalizer) Shift(t time.Time) int64 {
	wall := t.In(n.loc)
	_, off := wall.Zone()
	return wall.Unix() + int64(off)
}

// Normalize parses a raw event time and shifts it into display seconds.
func (n *Normalizer) Normalize(eventTime string) (int64, error) {
	t, err := ParseEventTime(eventTime)
	if err != nil {
		return 0, err
	}
	return n.Shift(t), nil
}
