package store

import (
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// ParquetSink writes records as a single Parquet file.
type ParquetSink struct{}

func (ParquetSink) Extension() string { return "parquet" }

// Save writes records to path.
func (ParquetSink) Save(records []BarRecord, path string) error {
	return writeParquetFile(path, records)
}

// Load reads a file written by Save.
func (ParquetSink) Load(path string) ([]BarRecord, error) {
	return readParquetFile[BarRecord](path)
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
