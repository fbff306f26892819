package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"REPLAY_SOURCE", "REPLAY_BASE_URL", "REPLAY_TIMEOUT", "DATA_DIR", "SQLITE_PATH",
	"LOG_LEVEL", "LOG_FORMAT", "REPLAY_HTTP_PORT", "REPLAY_GRPC_PORT", "TRACING_ENABLED",
}

// clearEnv unsets every override for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replaychart.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
source:
  kind: http
  base_url: "http://replay.local/data"
  timeout: 30s
storage:
  data_dir: "/tmp/replay/data"
server:
  host: "127.0.0.1"
  port: 8181
  grpc_port: 9191
logging:
  level: "debug"
  format: "json"
  file: "/tmp/replay.log"
export:
  format: "parquet"
  path: "/tmp/replay/out"
audit:
  sqlite_path: "/tmp/replay/audit.db"
tracing:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Source --
	if cfg.Source.Kind != SourceHTTP {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceHTTP)
	}
	if cfg.Source.BaseURL != "http://replay.local/data" {
		t.Errorf("Source.BaseURL = %q, want %q", cfg.Source.BaseURL, "http://replay.local/data")
	}
	if cfg.Source.Timeout != 30*time.Second {
		t.Errorf("Source.Timeout = %v, want %v", cfg.Source.Timeout, 30*time.Second)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/replay/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/replay/data")
	}

	// -- Server --
	if cfg.HTTPAddr() != "127.0.0.1:8181" {
		t.Errorf("HTTPAddr() = %q, want %q", cfg.HTTPAddr(), "127.0.0.1:8181")
	}
	if cfg.GRPCAddr() != "127.0.0.1:9191" {
		t.Errorf("GRPCAddr() = %q, want %q", cfg.GRPCAddr(), "127.0.0.1:9191")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.File != "/tmp/replay.log" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	// -- Export / Audit / Tracing --
	if cfg.Export.Format != "parquet" || cfg.Export.Path != "/tmp/replay/out" {
		t.Errorf("Export = %+v", cfg.Export)
	}
	if cfg.Audit.SQLitePath != "/tmp/replay/audit.db" {
		t.Errorf("Audit.SQLitePath = %q", cfg.Audit.SQLitePath)
	}
	if !cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled = false, want true")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	def := Default()
	if cfg.Source.Kind != SourceDir {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceDir)
	}
	if cfg.Storage.DataDir != def.Storage.DataDir {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, def.Storage.DataDir)
	}
	if cfg.Server.Port != 8080 || cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Source.Timeout != 0 {
		t.Errorf("Source.Timeout = %v, want no timeout", cfg.Source.Timeout)
	}
	if cfg.Audit.SQLitePath != "" {
		t.Errorf("Audit.SQLitePath = %q, want disabled", cfg.Audit.SQLitePath)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "logging:\n  level: warn\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "warn")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, "text")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "storage:\n  data_dir: /from/file\n")

	t.Setenv("REPLAY_SOURCE", "HTTP")
	t.Setenv("REPLAY_BASE_URL", "http://env.local/data")
	t.Setenv("REPLAY_TIMEOUT", "5s")
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("SQLITE_PATH", "/from/env/audit.db")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("REPLAY_HTTP_PORT", "18080")
	t.Setenv("REPLAY_GRPC_PORT", "not-a-number")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Source.Kind != SourceHTTP {
		t.Errorf("Source.Kind = %q, want %q", cfg.Source.Kind, SourceHTTP)
	}
	if cfg.Source.BaseURL != "http://env.local/data" {
		t.Errorf("Source.BaseURL = %q", cfg.Source.BaseURL)
	}
	if cfg.Source.Timeout != 5*time.Second {
		t.Errorf("Source.Timeout = %v, want 5s", cfg.Source.Timeout)
	}
	if cfg.Storage.DataDir != "/from/env" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/from/env")
	}
	if cfg.Audit.SQLitePath != "/from/env/audit.db" {
		t.Errorf("Audit.SQLitePath = %q", cfg.Audit.SQLitePath)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "error")
	}
	if cfg.Server.Port != 18080 {
		t.Errorf("Server.Port = %d, want 18080", cfg.Server.Port)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server.GRPCPort = %d, want unchanged 9090", cfg.Server.GRPCPort)
	}
	if !cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled = false, want true")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad kind", "source:\n  kind: s3\n", "source.kind"},
		{"http without url", "source:\n  kind: http\n  base_url: \"\"\n", "base_url"},
		{"dir without data dir", "storage:\n  data_dir: \"\"\n", "data_dir"},
		{"negative timeout", "source:\n  timeout: -1s\n", "timeout"},
		{"port range", "server:\n  port: 70000\n", "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatalf("Load() returned nil error, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	clearEnv(t)
	if _, err := Load(writeConfig(t, "server: [unclosed\n")); err == nil {
		t.Error("Load() returned nil error for malformed YAML")
	}
}

func TestPath(t *testing.T) {
	t.Setenv("REPLAY_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("REPLAY_CONFIG", "/etc/replay.yaml")
	if got := Path(); got != "/etc/replay.yaml" {
		t.Errorf("Path() = %q, want %q", got, "/etc/replay.yaml")
	}
}
