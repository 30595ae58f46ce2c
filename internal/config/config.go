// Package config provides configuration management for the Clipforge agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8790
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort     = "CLIPFORGE_PORT"
	EnvLogLevel = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir  = "CLIPFORGE_DATA_DIR"

	// Cloud backend environment variable names
	EnvCloudBaseURL = "CLIPFORGE_CLOUD_BASE_URL"
	EnvCloudToken   = "CLIPFORGE_CLOUD_TOKEN"

	// Database filename
	DBFilename = "clipforge.db"

	// Clip constraints
	DefaultMinClipSeconds = 1.0
	DefaultMaxClipSeconds = 45.0
	DefaultMaxHighlights  = 10

	// Polling defaults
	DefaultPollIntervalMs          = 2500
	DefaultRetryAttempts           = 3
	DefaultRetryDelayMs            = 1000
	DefaultNetworkFailureLimit     = 8
	DefaultDiscoveryTimeoutMinutes = 45

	EnvMinClipSeconds = "CLIPFORGE_MIN_CLIP_SECONDS"
	EnvMaxClipSeconds = "CLIPFORGE_MAX_CLIP_SECONDS"
	EnvMaxHighlights  = "CLIPFORGE_MAX_HIGHLIGHTS"

	EnvPollIntervalMs          = "CLIPFORGE_POLL_INTERVAL_MS"
	EnvRetryAttempts           = "CLIPFORGE_RETRY_ATTEMPTS"
	EnvRetryDelayMs            = "CLIPFORGE_RETRY_DELAY_MS"
	EnvNetworkFailureLimit     = "CLIPFORGE_NETWORK_FAILURE_LIMIT"
	EnvDiscoveryTimeoutMinutes = "CLIPFORGE_DISCOVERY_TIMEOUT_MIN"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	CloudBaseURL() string
	CloudToken() string
	MinClipSeconds() float64
	MaxClipSeconds() float64
	MaxHighlights() int
	PollInterval() time.Duration
	RetryAttempts() int
	RetryDelay() time.Duration
	NetworkFailureLimit() int
	DiscoveryTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	cloudBaseURL string
	cloudToken   string

	minClipSeconds float64
	maxClipSeconds float64
	maxHighlights  int

	pollIntervalMs      int
	retryAttempts       int
	retryDelayMs        int
	networkFailureLimit int
	discoveryTimeoutMin int
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		minClipSeconds: DefaultMinClipSeconds,
		maxClipSeconds: DefaultMaxClipSeconds,
		maxHighlights:  DefaultMaxHighlights,

		pollIntervalMs:      DefaultPollIntervalMs,
		retryAttempts:       DefaultRetryAttempts,
		retryDelayMs:        DefaultRetryDelayMs,
		networkFailureLimit: DefaultNetworkFailureLimit,
		discoveryTimeoutMin: DefaultDiscoveryTimeoutMinutes,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.cloudBaseURL = os.Getenv(EnvCloudBaseURL)
	cfg.cloudToken = os.Getenv(EnvCloudToken)

	if v := os.Getenv(EnvMinClipSeconds); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number", EnvMinClipSeconds)
		}
		cfg.minClipSeconds = f
	}

	if v := os.Getenv(EnvMaxClipSeconds); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive number", EnvMaxClipSeconds)
		}
		cfg.maxClipSeconds = f
	}

	if cfg.maxClipSeconds < cfg.minClipSeconds {
		return nil, fmt.Errorf("%s must not be smaller than %s", EnvMaxClipSeconds, EnvMinClipSeconds)
	}

	if v := os.Getenv(EnvMaxHighlights); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvMaxHighlights)
		}
		cfg.maxHighlights = n
	}

	if err := overridePositiveInt(EnvPollIntervalMs, &cfg.pollIntervalMs); err != nil {
		return nil, err
	}
	if err := overridePositiveInt(EnvRetryAttempts, &cfg.retryAttempts); err != nil {
		return nil, err
	}
	if err := overridePositiveInt(EnvRetryDelayMs, &cfg.retryDelayMs); err != nil {
		return nil, err
	}
	if err := overridePositiveInt(EnvNetworkFailureLimit, &cfg.networkFailureLimit); err != nil {
		return nil, err
	}
	if err := overridePositiveInt(EnvDiscoveryTimeoutMinutes, &cfg.discoveryTimeoutMin); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overridePositiveInt(env string, dst *int) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid %s: must be a positive integer", env)
	}
	*dst = n
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CloudBaseURL returns the highlight backend base URL. Empty means the agent
// runs against the built-in stub backend.
func (c *EnvConfig) CloudBaseURL() string {
	return c.cloudBaseURL
}

func (c *EnvConfig) CloudToken() string {
	return c.cloudToken
}

func (c *EnvConfig) MinClipSeconds() float64 {
	return c.minClipSeconds
}

func (c *EnvConfig) MaxClipSeconds() float64 {
	return c.maxClipSeconds
}

func (c *EnvConfig) MaxHighlights() int {
	return c.maxHighlights
}

func (c *EnvConfig) PollInterval() time.Duration {
	return time.Duration(c.pollIntervalMs) * time.Millisecond
}

func (c *EnvConfig) RetryAttempts() int {
	return c.retryAttempts
}

func (c *EnvConfig) RetryDelay() time.Duration {
	return time.Duration(c.retryDelayMs) * time.Millisecond
}

func (c *EnvConfig) NetworkFailureLimit() int {
	return c.networkFailureLimit
}

// DiscoveryTimeout bounds how long a single discovery run may poll the
// transcription job before it is abandoned.
func (c *EnvConfig) DiscoveryTimeout() time.Duration {
	return time.Duration(c.discoveryTimeoutMin) * time.Minute
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
