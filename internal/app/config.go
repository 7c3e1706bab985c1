package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/vceo/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vceo"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# vceo configuration
# Run: vceo --help

# Optional: override the SQLite database location.
# Can also be set via VCEO_DB_PATH or --db-path.
# db_path: ~/.config/vceo/vceo.db

# Runtime loop defaults (per-run flags take precedence).
# max_iterations: 100
# poll_interval_ms: 5000
# enable_budget_enforcement: true
# enable_truth_layer: true
# mode: development
`
