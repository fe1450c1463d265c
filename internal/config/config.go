// Package config loads process configuration from the environment. Entry
// points call Load once at startup and pass the result down.
package config

import (
	"log/slog"
	"os"
	"strings"
)

const (
	DefaultModel      = "gemini-2.5-flash-lite"
	DefaultListenAddr = ":8888"
	// DefaultEnvFile is what the dev server loads unless ENV_FILE is set.
	DefaultEnvFile = ".env"
)

// Config holds relay settings.
type Config struct {
	// APIKey is the static upstream key (GEMINI_API_KEY, then GOOGLE_API_KEY).
	APIKey string
	// APIKeyParam names an SSM parameter holding the key. When set it takes
	// precedence over APIKey.
	APIKeyParam string
	Model       string
	// BaseURL overrides the upstream endpoint; empty means the client default.
	BaseURL  string
	LogLevel slog.Level

	// ListenAddr is used by the dev server only.
	ListenAddr string
}

// Load reads configuration from the process environment.
func Load() Config {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv.
func LoadFrom(getenv func(string) string) Config {
	return Config{
		APIKey:      firstEnv(getenv, "GEMINI_API_KEY", "GOOGLE_API_KEY"),
		APIKeyParam: firstEnv(getenv, "GEMINI_API_KEY_PARAM"),
		Model:       envOr(getenv, "GEMINI_MODEL", DefaultModel),
		BaseURL:     firstEnv(getenv, "GEMINI_BASE_URL"),
		LogLevel:    parseLevel(getenv("LOG_LEVEL")),
		ListenAddr:  envOr(getenv, "LISTEN_ADDR", DefaultListenAddr),
	}
}

// HasKeySource reports whether any key source is configured.
func (c Config) HasKeySource() bool {
	return c.APIKey != "" || c.APIKeyParam != ""
}

func firstEnv(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envOr(getenv func(string) string, key, def string) string {
	if v := firstEnv(getenv, key); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
