// Package store writes replayed chart series to handoff files and keeps an
// optional SQLite audit log of ingest runs.
package store

import (
	"errors"
	"fmt"
	"strings"

	"replaychart/internal/chart"
)

// ErrUnknownFormat is returned by NewSink for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Sink writes a complete series to a single file.
type Sink interface {
	// Save writes records to path, replacing any existing file.
	Save(records []BarRecord, path string) error
	// Extension returns the file extension without the dot.
	Extension() string
}

// BarRecord is the on-disk row shape shared by every export format.
type BarRecord struct {
	Time   int64   `json:"time" parquet:"time" msgpack:"time"`
	Open   float64 `json:"open" parquet:"open" msgpack:"open"`
	High   float64 `json:"high" parquet:"high" msgpack:"high"`
	Low    float64 `json:"low" parquet:"low" msgpack:"low"`
	Close  float64 `json:"close" parquet:"close" msgpack:"close"`
	Volume float64 `json:"volume" parquet:"volume" msgpack:"volume"`
	Color  string  `json:"color" parquet:"color,dict" msgpack:"color"`
}

// Records flattens a series into export rows, pairing each bar with its
// volume color.
func Records(s chart.Series) []BarRecord {
	out := make([]BarRecord, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = BarRecord{
			Time:   b.Time,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
		if i < len(s.Volume) {
			out[i].Color = s.Volume[i].Color
		}
	}
	return out
}

// NewSink returns the sink for format: json, csv, parquet or msgpack.
func NewSink(format string) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return JSONSink{}, nil
	case "csv":
		return CSVSink{}, nil
	case "parquet":
		return ParquetSink{}, nil
	case "msgpack":
		return MsgpackSink{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (use json, csv, parquet or msgpack)", ErrUnknownFormat, format)
	}
}
