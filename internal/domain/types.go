// Package domain defines the record types shared by the replay pipeline:
// raw NDJSON bars as they appear on disk and the normalized bars handed to
// the chart.
package domain

// TargetSymbol is the only instrument the replay keeps. Records for any
// other symbol are discarded before deduplication.
const TargetSymbol = "ESZ4"

// DisplayTimezone is the IANA zone whose wall clock the chart displays.
const DisplayTimezone = "America/Chicago"

// ---------------------------------------------------------------------------
// Raw records (one NDJSON line each)
// ---------------------------------------------------------------------------

// Header is the record header of a Databento-style OHLCV line. Only TsEvent
// is interpreted; the rest is carried through untouched.
type Header struct {
	TsEvent      string `json:"ts_event"`
	RType        int    `json:"rtype"`
	PublisherID  int    `json:"publisher_id"`
	InstrumentID int    `json:"instrument_id"`
}

// RawBar is one decoded NDJSON line. Prices and volume stay as decimal
// strings until the bar is assembled for display.
type RawBar struct {
	Hd     *Header `json:"hd"`
	Open   string  `json:"open"`
	High   string  `json:"high"`
	Low    string  `json:"low"`
	Close  string  `json:"close"`
	Volume string  `json:"volume"`
	Symbol string  `json:"symbol"`
}

// EventTime returns the raw event timestamp string used as the
// deduplication key, or "" when the header is missing.
func (r RawBar) EventTime() string {
	if r.Hd == nil {
		return ""
	}
	return r.Hd.TsEvent
}

// ---------------------------------------------------------------------------
// Display records
// ---------------------------------------------------------------------------

// Bar is a normalized candlestick. Time is the America/Chicago wall clock
// re-anchored as UTC, in epoch seconds.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Up reports whether the bar closed above its open.
func (b Bar) Up() bool { return b.Close > b.Open }

// VolumePoint is one entry of the volume histogram.
type VolumePoint struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}
