package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

// DefaultPath is used when REPLAY_CONFIG is unset.
const DefaultPath = "config/replaychart.yaml"

var dotenvOnce sync.Once

// LoadDotenv loads ENV_FILE, or .env from the working directory, into the
// process environment once. Existing variables win; NO_DOTENV=1 skips it.
func LoadDotenv() {
	dotenvOnce.Do(func() {
		if os.Getenv("NO_DOTENV") == "1" {
			return
		}
		path := ".env"
		if p := os.Getenv("ENV_FILE"); p != "" {
			path = p
		}
		_ = godotenv.Load(path)
	})
}

// Path returns the configuration file path from REPLAY_CONFIG, falling back
// to DefaultPath.
func Path() string {
	if p := os.Getenv("REPLAY_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadFromEnv loads .env, then the configuration file named by Path.
func LoadFromEnv() (*Config, error) {
	LoadDotenv()
	return Load(Path())
}
