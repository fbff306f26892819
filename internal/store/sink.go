package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ Sink = JSONSink{}
	_ Sink = CSVSink{}
	_ Sink = MsgpackSink{}
	_ Sink = ParquetSink{}
)

// JSONSink writes records as one JSON array.
type JSONSink struct{}

func (JSONSink) Extension() string { return "json" }

func (JSONSink) Save(records []BarRecord, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if records == nil {
		records = []BarRecord{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return f.Close()
}

// CSVSink writes records with a time,open,high,low,close,volume,color header.
type CSVSink struct{}

func (CSVSink) Extension() string { return "csv" }

func (CSVSink) Save(records []BarRecord, path string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume", "color"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{
			strconv.FormatInt(r.Time, 10),
			floatStr(r.Open),
			floatStr(r.High),
			floatStr(r.Low),
			floatStr(r.Close),
			floatStr(r.Volume),
			r.Color,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return f.Close()
}

// MsgpackSink writes records as one msgpack array.
type MsgpackSink struct{}

func (MsgpackSink) Extension() string { return "msgpack" }

func (MsgpackSink) Save(records []BarRecord, path string) error {
	data, err := msgpack.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding msgpack: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadMsgpack reads a file written by MsgpackSink.
func LoadMsgpack(path string) ([]BarRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []BarRecord
	if err := msgpack.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding msgpack: %w", err)
	}
	return records, nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
