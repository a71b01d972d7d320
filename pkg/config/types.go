// Package config provides configuration management for treewatch.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Flags are applied by the command after Load returns.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Watch.Root = "/srv/share"
//	if err := cfg.ValidateWatch(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/source"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Watch.Root is set before the service starts
// - Server.Port is in 1..65535
// - timeouts, intervals and sizes are > 0.
type Config struct {
	// Watched tree settings
	Watch WatchConfig `yaml:"watch"`

	// Subscriber endpoint settings
	Server ServerConfig `yaml:"server"`

	// Event statistics settings
	Stats StatsConfig `yaml:"stats"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig contains watch tree settings.
type WatchConfig struct {
	// Directory to monitor
	Root string `yaml:"root"`

	// Substring patterns of directories to leave unwatched
	Exclude []string `yaml:"exclude"`

	// Event source backend (inotify, fsnotify); empty selects the platform default
	Backend string `yaml:"backend"`

	// Capacity of the raw event channel
	BufferSize int `yaml:"buffer_size"`
}

// ServerConfig contains subscriber endpoint settings.
type ServerConfig struct {
	// TCP address of the listening interface
	Address string `yaml:"address"`

	// TCP port
	Port int `yaml:"port"`

	// Bound on writing one message to a subscriber
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Bound on draining HTTP connections at shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Largest accepted subscriber command
	MaxMessageSize int64 `yaml:"max_message_size"`

	// Origins allowed to open a session; empty allows any
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StatsConfig contains event statistics settings.
type StatsConfig struct {
	// Persist counters across restarts
	Enabled bool `yaml:"enabled"`

	// Path to the bbolt database file
	DBPath string `yaml:"db_path"`

	// How often counters are written to the database
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Track message size percentiles
	TrackPercentiles bool `yaml:"track_percentiles"`

	// Directories counted individually
	MaxDirectories int `yaml:"max_directories"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (trace, debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Validate checks every setting except the watched root, which only the
// serve command needs.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if !source.ValidBackend(c.Watch.Backend) {
		return ErrInvalidBackend
	}
	if c.Watch.BufferSize <= 0 {
		return ErrInvalidBufferSize
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Server.WriteTimeout <= 0 {
		return ErrInvalidWriteTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}
	if c.Server.MaxMessageSize <= 0 {
		return ErrInvalidMessageSize
	}

	if c.Stats.Enabled && c.Stats.DBPath == "" {
		return ErrNoDBPath
	}
	if c.Stats.FlushInterval <= 0 {
		return ErrInvalidFlushInterval
	}
	if c.Stats.MaxDirectories <= 0 {
		return ErrInvalidMaxDirectories
	}

	if !logger.ValidLevel(c.Logging.Level) {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// ValidateWatch checks that a root is set, then validates the rest.
func (c *Config) ValidateWatch() error {
	if c.Watch.Root == "" {
		return ErrNoRoot
	}
	return c.Validate()
}

// Default returns a configuration with default values and no root.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			BufferSize: 1024,
		},
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            8080,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxMessageSize:  4096,
		},
		Stats: StatsConfig{
			Enabled:        true,
			DBPath:         defaultDBPath(),
			FlushInterval:  30 * time.Second,
			MaxDirectories: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
