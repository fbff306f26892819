package util

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRetryPermanent(t *testing.T) {
	sentinel := errors.New("bad request")
	attempts := 0

	err := Backoff{Attempts: 5}.Retry(context.Background(), func(int) error {
		attempts++
		return Permanent(sentinel)
	})

	if !errors.Is(err, sentinel) {
		t.Errorf("Retry error = %v, want %v", err, sentinel)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Backoff{Attempts: 3, Base: time.Hour}.Retry(ctx, func(int) error {
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("info", "json", &buf).Info("hello", "k", 1)
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json logger output = %q", buf.String())
	}

	buf.Reset()
	logger := NewLogger("warn", "text", &buf)
	logger.Info("dropped")
	logger.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "msg=kept") {
		t.Errorf("text logger output = %q", buf.String())
	}
}

func TestLogOutput(t *testing.T) {
	w, closeFn, err := LogOutput("")
	if err != nil || w != os.Stdout {
		t.Fatalf("LogOutput(\"\") = %v, %v", w, err)
	}
	closeFn()

	path := filepath.Join(t.TempDir(), "logs", "replay.log")
	w, closeFn, err = LogOutput(path)
	if err != nil {
		t.Fatalf("LogOutput(%q) returned error: %v", path, err)
	}
	NewLogger("info", "text", w).Info("to file")
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}
