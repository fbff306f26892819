package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the replay tools.
type Config struct {
	Source  Source  `yaml:"source"`
	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Export  Export  `yaml:"export"`
	Audit   Audit   `yaml:"audit"`
	Tracing Tracing `yaml:"tracing"`
}

// Source selects where bar files are read from.
type Source struct {
	// Kind is "dir" (read Storage.DataDir) or "http" (GET BaseURL/<file>).
	Kind    string        `yaml:"kind"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Storage holds paths for input data.
type Storage struct {
	DataDir string `yaml:"data_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, if set, receives a copy of every log line.
	File string `yaml:"file"`
}

// Export configures replay-export output.
type Export struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// Audit configures the optional SQLite ingest audit log.
type Audit struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Tracing toggles OpenTelemetry span export.
type Tracing struct {
	Enabled bool `yaml:"enabled"`
}

const (
	SourceDir  = "dir"
	SourceHTTP = "http"
)

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Source: Source{
			Kind:    SourceDir,
			BaseURL: "http://localhost:8080/data",
		},
		Storage: Storage{DataDir: "data"},
		Server: Server{
			Host:     "0.0.0.0",
			Port:     8080,
			GRPCPort: 9090,
		},
		Logging: Logging{Level: "info", Format: "text"},
		Export:  Export{Format: "json", Path: "export/esz4-bars"},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults, then applies environment variable overrides. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	switch c.Source.Kind {
	case SourceDir:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required for source kind dir")
		}
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return errors.New("source.base_url is required for source kind http")
		}
	default:
		return fmt.Errorf("source.kind %q: want %q or %q", c.Source.Kind, SourceDir, SourceHTTP)
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative, got %s", c.Source.Timeout)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	return nil
}

// HTTPAddr returns host:port for the HTTP listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GRPCAddr returns host:port for the gRPC listener.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPLAY_SOURCE"); v != "" {
		cfg.Source.Kind = v
	}

	if v := os.Getenv("REPLAY_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}

	if v := os.Getenv("REPLAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.Timeout = d
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Audit.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("REPLAY_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("REPLAY_GRPC_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = n
		}
	}

	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}
