package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfig   = "TREEWATCH_CONFIG"
	EnvRoot     = "TREEWATCH_ROOT"
	EnvExclude  = "TREEWATCH_EXCLUDE"
	EnvAddress  = "TREEWATCH_ADDRESS"
	EnvPort     = "TREEWATCH_PORT"
	EnvBackend  = "TREEWATCH_BACKEND"
	EnvDB       = "TREEWATCH_DB"
	EnvLogLevel = "TREEWATCH_LOG_LEVEL"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file. Settings
	// missing from the file keep their default values.
	LoadFromFile(path string) (*Config, error)

	// Path returns the configuration file Load reads, or "" if none.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, TREEWATCH_CONFIG is used, and failing that the
// loader searches for a config file in:
// 1. ./treewatch.yaml (current directory)
// 2. ~/.config/treewatch/config.yaml.
func NewLoader(configPath string) Loader {
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if configPath := l.Path(); configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// A file found by searching may vanish; a named one must load.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding over the defaults keeps every setting the file omits.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return findConfigFile()
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	candidates := []string{
		"./treewatch.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - TREEWATCH_ROOT: Directory to monitor
//   - TREEWATCH_EXCLUDE: Comma-separated exclude patterns
//   - TREEWATCH_ADDRESS: Listen address
//   - TREEWATCH_PORT: Listen port
//   - TREEWATCH_BACKEND: Event source backend
//   - TREEWATCH_DB: Path to statistics database
//   - TREEWATCH_LOG_LEVEL: Log level
func applyEnvVars(cfg *Config) error {
	if root := os.Getenv(EnvRoot); root != "" {
		cfg.Watch.Root = root
	}

	if exclude := os.Getenv(EnvExclude); exclude != "" {
		cfg.Watch.Exclude = SplitList(exclude)
	}

	if address := os.Getenv(EnvAddress); address != "" {
		cfg.Server.Address = address
	}

	if port := os.Getenv(EnvPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, EnvPort, port)
		}
		cfg.Server.Port = n
	}

	if backend := os.Getenv(EnvBackend); backend != "" {
		cfg.Watch.Backend = strings.ToLower(backend)
	}

	if dbPath := os.Getenv(EnvDB); dbPath != "" {
		cfg.Stats.DBPath = dbPath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}

	return nil
}

// SplitList splits a comma-separated list, dropping blank items.
func SplitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
