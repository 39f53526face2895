// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "TILES_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the relay configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// State configures the local state database.
	State StateConfig `yaml:"state"`

	// Upload configures the collector and upload schedule.
	Upload UploadConfig `yaml:"upload"`

	// Queue configures the in-memory event queue.
	Queue QueueConfig `yaml:"queue"`

	// Listen configures the local producer endpoint.
	Listen ListenConfig `yaml:"listen"`

	// Debug enables goroutine affinity checks and panics on
	// serialization contract violations.
	Debug bool `yaml:"debug"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per
// environment. Nil pointers and empty strings leave the base value.
type ConfigOverrides struct {
	State  *StateConfig     `yaml:"state,omitempty"`
	Upload *UploadOverrides `yaml:"upload,omitempty"`
	Queue  *QueueConfig     `yaml:"queue,omitempty"`
	Listen *ListenConfig    `yaml:"listen,omitempty"`
	Debug  *bool            `yaml:"debug,omitempty"`
}

// UploadOverrides mirrors UploadConfig with optional fields.
type UploadOverrides struct {
	URL         string         `yaml:"url,omitempty"`
	Interval    *time.Duration `yaml:"interval,omitempty"`
	Timeout     *time.Duration `yaml:"timeout,omitempty"`
	UserAgent   string         `yaml:"user_agent,omitempty"`
	Compression string         `yaml:"compression,omitempty"`
	Backoff     *BackoffConfig `yaml:"backoff,omitempty"`
}

// StateConfig configures the local state database.
type StateConfig struct {
	// Path is the SQLite database file. Empty keeps all state in
	// memory.
	Path string `yaml:"path"`

	// Durable fsyncs every commit so spooled events survive power
	// loss. Default: false
	Durable bool `yaml:"durable"`
}

// UploadConfig configures uploads.
type UploadConfig struct {
	// URL is the collector endpoint.
	URL string `yaml:"url"`

	// Interval is the time between scheduled upload cycles.
	// Default: 1h
	Interval time.Duration `yaml:"interval"`

	// Timeout bounds each upload request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent with every upload.
	UserAgent string `yaml:"user_agent"`

	// Compression is the request body encoding: none, gzip, or zstd.
	// Default: none
	Compression string `yaml:"compression"`

	// Backoff delays scheduled uploads after consecutive failures.
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig configures failure backoff. Initial 0 disables it.
type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

// QueueConfig configures the event queue.
type QueueConfig struct {
	// MaxEvents caps the queue; the oldest events are dropped beyond
	// it. 0 means unbounded.
	MaxEvents int `yaml:"max_events"`
}

// ListenConfig configures the local producer endpoint.
type ListenConfig struct {
	// Address is the TCP host:port the relay serves on.
	// Default: 127.0.0.1:7070
	Address string `yaml:"address"`
}

// Compression values accepted in upload.compression.
var compressionValues = []string{"none", "gzip", "zstd"}

// Default returns the default configuration. Load and LoadFile start
// from it before reading the file.
func Default() *Config {
	return &Config{
		Environment: Development,
		State: StateConfig{
			Path: filepath.Join("${HOME}", ".cache", "tiles", "tiles.db"),
		},
		Upload: UploadConfig{
			Interval:    time.Hour,
			Timeout:     30 * time.Second,
			UserAgent:   "tiles-relay",
			Compression: "none",
		},
		Listen: ListenConfig{
			Address: "127.0.0.1:7070",
		},
	}
}

// Load loads configuration from the file named by TILES_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your tiles.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment overrides, and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section for c.Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			debug := false
			overrides = &ConfigOverrides{
				Debug: &debug,
				Upload: &UploadOverrides{
					Backoff: &BackoffConfig{Initial: 5 * time.Minute, Max: 6 * time.Hour},
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.State != nil && overrides.State.Path != "" {
		c.State.Path = overrides.State.Path
	}
	if overrides.State != nil && overrides.State.Durable {
		c.State.Durable = true
	}

	if upload := overrides.Upload; upload != nil {
		if upload.URL != "" {
			c.Upload.URL = upload.URL
		}
		if upload.Interval != nil {
			c.Upload.Interval = *upload.Interval
		}
		if upload.Timeout != nil {
			c.Upload.Timeout = *upload.Timeout
		}
		if upload.UserAgent != "" {
			c.Upload.UserAgent = upload.UserAgent
		}
		if upload.Compression != "" {
			c.Upload.Compression = upload.Compression
		}
		if upload.Backoff != nil {
			c.Upload.Backoff = *upload.Backoff
		}
	}

	if overrides.Queue != nil {
		c.Queue.MaxEvents = overrides.Queue.MaxEvents
	}

	if overrides.Listen != nil && overrides.Listen.Address != "" {
		c.Listen.Address = overrides.Listen.Address
	}

	if overrides.Debug != nil {
		c.Debug = *overrides.Debug
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// and URL fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.State.Path = expandVars(c.State.Path, vars)
	vars["TILES_STATE_DIR"] = filepath.Dir(c.State.Path)

	c.Upload.URL = expandVars(c.Upload.URL, vars)
	c.Listen.Address = expandVars(c.Listen.Address, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the process environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Upload.URL == "" {
		errs = append(errs, fmt.Errorf("upload.url is required"))
	} else if parsed, err := url.Parse(c.Upload.URL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("upload.url must be an absolute http(s) URL: %q", c.Upload.URL))
	}

	if c.Upload.Interval <= 0 {
		errs = append(errs, fmt.Errorf("upload.interval must be positive"))
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upload.timeout must be positive"))
	}
	if !slices.Contains(compressionValues, c.Upload.Compression) {
		errs = append(errs, fmt.Errorf("upload.compression must be one of: %v", compressionValues))
	}
	if c.Upload.Backoff.Initial < 0 || c.Upload.Backoff.Max < 0 {
		errs = append(errs, fmt.Errorf("upload.backoff durations must not be negative"))
	}
	if c.Upload.Backoff.Max > 0 && c.Upload.Backoff.Max < c.Upload.Backoff.Initial {
		errs = append(errs, fmt.Errorf("upload.backoff.max must be at least upload.backoff.initial"))
	}

	if c.Queue.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("queue.max_events must not be negative"))
	}

	if _, _, err := net.SplitHostPort(c.Listen.Address); err != nil {
		errs = append(errs, fmt.Errorf("listen.address: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the state directory if it does not exist.
func (c *Config) EnsurePaths() error {
	if c.State.Path == "" {
		return nil
	}
	directory := filepath.Dir(c.State.Path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}
