package config

import (
	"os"
	"path/filepath"
)

// defaultDBPath returns the default statistics database path.
//
// Returns: ~/.local/state/treewatch/stats.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./stats.db"
	}

	return filepath.Join(homeDir, ".local", "state", "treewatch", "stats.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/treewatch/config.yaml.
func defaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./treewatch.yaml"
	}

	return filepath.Join(homeDir, ".config", "treewatch", "config.yaml")
}

// DefaultPath returns the per-user configuration file path.
func DefaultPath() string {
	return defaultConfigPath()
}
