// Package config holds all tunable settings for the browser bridge.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the values callers most often leave alone.
const (
	// DefaultPort is the local port the bridge listens on.
	DefaultPort = 18791
	// DefaultUserAgent identifies bridge-created browsing contexts.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

// Config captures all tunable settings for the bridge process.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Idle    IdleConfig    `yaml:"idle"`
}

// ServerConfig configures the local HTTP surface and process markers.
type ServerConfig struct {
	// Listen port for the request bridge. The listener binds loopback only.
	Port int `yaml:"port"`
	// Optional pid-marker file written at startup, removed on clean shutdown.
	PidFile string `yaml:"pid_file"`
	// Optional log file; empty means stderr.
	LogFile string `yaml:"log_file"`
	// Hard outer ceiling for one request (e.g. "120s"). The in-flight
	// engine action is not cancelled when it expires.
	RequestTimeout string `yaml:"request_timeout"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). When empty the
	// bridge launches its own browser.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command (binary plus extra flags) overriding the
	// default launcher.
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// User agent applied to every new browsing context.
	UserAgent string `yaml:"user_agent"`
	// Viewport width for new tabs (default: 1920).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new tabs (default: 1080).
	ViewportHeight int `yaml:"viewport_height"`
}

// IdleConfig controls self-termination on inactivity.
type IdleConfig struct {
	// Idle threshold after which the bridge shuts itself down (e.g. "30m").
	Timeout string `yaml:"timeout"`
	// Watchdog tick interval (e.g. "60s").
	Tick string `yaml:"tick"`
}

// DefaultConfig provides the settings the bridge ships with.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           DefaultPort,
			RequestTimeout: "120s",
		},
		Browser: BrowserConfig{
			ViewportWidth:  1920,
			ViewportHeight: 1080,
		},
		Idle: IdleConfig{
			Timeout: "30m",
			Tick:    "60s",
		},
	}
}

// Load reads YAML config from disk and overlays defaults. An empty path
// yields the defaults; the bridge normally runs without a config file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the bridge cannot run with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.Server.RequestTimeout); c.Server.RequestTimeout != "" && err != nil {
		return fmt.Errorf("server.request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Idle.Timeout); c.Idle.Timeout != "" && err != nil {
		return fmt.Errorf("idle.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Idle.Tick); c.Idle.Tick != "" && err != nil {
		return fmt.Errorf("idle.tick: %w", err)
	}
	return nil
}

// GetRequestTimeout parses the outer request ceiling, defaulting to 120s.
func (s ServerConfig) GetRequestTimeout() time.Duration {
	return parseDurationOr(s.RequestTimeout, 120*time.Second)
}

// IsHeadless reports whether Chrome should run headless (default true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetUserAgent returns the configured user agent, or the bridge default.
func (b BrowserConfig) GetUserAgent() string {
	if b.UserAgent == "" {
		return DefaultUserAgent
	}
	return b.UserAgent
}

// GetViewportWidth returns the viewport width with default fallback.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with default fallback.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// GetTimeout parses the idle threshold, defaulting to 30 minutes.
func (i IdleConfig) GetTimeout() time.Duration {
	return parseDurationOr(i.Timeout, 30*time.Minute)
}

// GetTick parses the watchdog interval, defaulting to one minute.
func (i IdleConfig) GetTick() time.Duration {
	return parseDurationOr(i.Tick, time.Minute)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
