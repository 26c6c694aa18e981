// Package config loads the server settings from environment variables.
// Command line flags in main override what is loaded here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultOutputDir      = "./media"
	DefaultCodeDir        = "./code"
	DefaultDataDir        = "./data"
	DefaultTimeoutSeconds = 300
	DefaultBinary         = "manim"
	DefaultLogLevel       = "info"
	DefaultPort           = 8081

	// Render timeout bounds, in seconds
	MinTimeoutSeconds = 10
	MaxTimeoutSeconds = 3600

	// Environment variable names
	EnvOutputDir   = "MANIM_MCP_OUTPUT_DIR"
	EnvCodeDir     = "MANIM_MCP_CODE_DIR"
	EnvDataDir     = "MANIM_MCP_DATA_DIR"
	EnvTimeout     = "MANIM_MCP_TIMEOUT"
	EnvBinary      = "MANIM_MCP_BIN"
	EnvLogLevel    = "MANIM_MCP_LOG_LEVEL"
	EnvPort        = "MANIM_MCP_PORT"
	EnvBearerToken = "MANIM_MCP_BEARER_TOKEN"
)

// Config holds all runtime configuration.
type Config struct {
	OutputDir      string // renderer media dir; videos/ and images/ are created inside
	CodeDir        string // assembled scene sources
	DataDir        string // render journal database
	TimeoutSeconds int    // default render timeout, clamped to [MinTimeoutSeconds, MaxTimeoutSeconds]
	Binary         string // renderer executable
	LogLevel       string
	Port           int    // http transport only
	BearerToken    string // http transport only; empty disables auth
}

// New reads configuration from the environment with defaults.
func New() (*Config, error) {
	cfg := &Config{
		OutputDir:      envStr(EnvOutputDir, DefaultOutputDir),
		CodeDir:        envStr(EnvCodeDir, DefaultCodeDir),
		DataDir:        envStr(EnvDataDir, DefaultDataDir),
		TimeoutSeconds: DefaultTimeoutSeconds,
		Binary:         envStr(EnvBinary, DefaultBinary),
		LogLevel:       envStr(EnvLogLevel, DefaultLogLevel),
		Port:           DefaultPort,
		BearerToken:    os.Getenv(EnvBearerToken),
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.TimeoutSeconds = n
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.Port = port
	}

	cfg.TimeoutSeconds = ClampTimeout(cfg.TimeoutSeconds)
	return cfg, nil
}

// Timeout returns the default render timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(ClampTimeout(c.TimeoutSeconds)) * time.Second
}

// ClampTimeout limits seconds to [MinTimeoutSeconds, MaxTimeoutSeconds].
func ClampTimeout(seconds int) int {
	return min(max(seconds, MinTimeoutSeconds), MaxTimeoutSeconds)
}

// ValidTimeout reports whether seconds is within the allowed bounds.
func ValidTimeout(seconds int) bool {
	return seconds >= MinTimeoutSeconds && seconds <= MaxTimeoutSeconds
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Version information (set at build time via ldflags)
var Version = "0.1.0"
