package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/replikat/dirsyncd/internal/fstree"
)

const (
	// MinIntervalSeconds is the smallest allowed synchronization interval.
	MinIntervalSeconds = 5

	// DefaultIntervalSeconds is used when no interval is configured.
	DefaultIntervalSeconds = 30

	// DefaultWorkers caps hashing and copy/delete concurrency per cycle.
	DefaultWorkers = 20
)

// Config represents the complete dirsyncd configuration
type Config struct {
	Paths PathsConfig `yaml:"paths"`
	Sync  SyncConfig  `yaml:"sync"`
	Log   LogConfig   `yaml:"log"`
	Serve ServeConfig `yaml:"serve"`
}

// PathsConfig configures the two directory trees
type PathsConfig struct {
	Source  string `yaml:"source"`
	Replica string `yaml:"replica"`
}

// SyncConfig configures sync behavior
type SyncConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Workers         int    `yaml:"workers"`
	Hash            string `yaml:"hash"`
}

// LogConfig configures the optional log file
type LogConfig struct {
	File string `yaml:"file"`
}

// ServeConfig configures the sync trigger endpoint
type ServeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	TokenFile  string `yaml:"token_file"`
}

// Default returns a configuration with defaults applied, for callers that
// assemble the rest from command-line flags.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. The result is not yet
// validated: callers apply flag overrides first, then call Validate.
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Paths.Source = os.ExpandEnv(c.Paths.Source)
	c.Paths.Replica = os.ExpandEnv(c.Paths.Replica)
	c.Log.File = os.ExpandEnv(c.Log.File)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.TokenFile = os.ExpandEnv(c.Serve.TokenFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Sync.IntervalSeconds == 0 {
		c.Sync.IntervalSeconds = DefaultIntervalSeconds
	}
	if c.Sync.Workers == 0 {
		c.Sync.Workers = DefaultWorkers
	}
	if c.Sync.Hash == "" {
		c.Sync.Hash = fstree.HashBlake2b
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	srcInfo, err := statDir("paths.source", c.Paths.Source)
	if err != nil {
		return err
	}
	repInfo, err := statDir("paths.replica", c.Paths.Replica)
	if err != nil {
		return err
	}

	// The two trees must be distinct directories; mirroring a directory
	// into itself would delete the source contents.
	if os.SameFile(srcInfo, repInfo) {
		return fmt.Errorf("paths.source and paths.replica cannot be the same directory")
	}

	if c.Sync.IntervalSeconds < MinIntervalSeconds {
		return fmt.Errorf("sync.interval_seconds must be at least %d, got %d", MinIntervalSeconds, c.Sync.IntervalSeconds)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers)
	}

	switch c.Sync.Hash {
	case fstree.HashBlake2b, fstree.HashSHA256:
		// valid
	default:
		return fmt.Errorf("invalid sync.hash: %s (must be %s or %s)", c.Sync.Hash, fstree.HashBlake2b, fstree.HashSHA256)
	}

	if c.Serve.Enabled {
		if c.Serve.ListenAddr == "" {
			return fmt.Errorf("serve.listen_addr is required when serve is enabled")
		}
		if c.Serve.TokenFile == "" {
			return fmt.Errorf("serve.token_file is required when serve is enabled")
		}
	}

	return nil
}

// Interval returns the synchronization interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

func statDir(field, path string) (os.FileInfo, error) {
	if path == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%s must be an absolute path: %s", field, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s is not an existing directory: %s", field, path)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %s", field, path)
	}
	return info, nil
}
