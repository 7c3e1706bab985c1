package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath                  string `yaml:"db_path"`
	MaxIterations           int    `yaml:"max_iterations"`
	PollIntervalMs          int    `yaml:"poll_interval_ms"`
	EnableBudgetEnforcement *bool  `yaml:"enable_budget_enforcement"`
	EnableTruthLayer        *bool  `yaml:"enable_truth_layer"`
	Mode                    string `yaml:"mode"`
}

// Runtime configuration defaults.
const (
	DefaultMaxIterations  = 100
	DefaultPollIntervalMs = 5000
)

// RuntimeSettings are the effective runtime loop values after applying
// defaults. Booleans default to true; explicit false in config.yaml is
// honored (hence the pointer fields on Settings).
type RuntimeSettings struct {
	MaxIterations  int    `json:"max_iterations"`
	PollIntervalMs int    `json:"poll_interval_ms"`
	EnforceBudget  bool   `json:"enable_budget_enforcement"`
	TruthLayer     bool   `json:"enable_truth_layer"`
	Mode           string `json:"mode"`
}

// EffectiveRuntimeSettings returns validated runtime settings with
// defaults. Invalid or missing config values fall back to defaults.
func EffectiveRuntimeSettings() RuntimeSettings {
	cfg := RuntimeSettings{
		MaxIterations:  DefaultMaxIterations,
		PollIntervalMs: DefaultPollIntervalMs,
		EnforceBudget:  true,
		TruthLayer:     true,
		Mode:           "development",
	}

	s, err := LoadSettings()
	if err != nil {
		return cfg
	}

	if s.MaxIterations > 0 {
		cfg.MaxIterations = s.MaxIterations
	}
	if s.PollIntervalMs > 0 {
		cfg.PollIntervalMs = s.PollIntervalMs
	}
	if s.EnableBudgetEnforcement != nil {
		cfg.EnforceBudget = *s.EnableBudgetEnforcement
	}
	if s.EnableTruthLayer != nil {
		cfg.TruthLayer = *s.EnableTruthLayer
	}
	if s.Mode != "" {
		cfg.Mode = s.Mode
	}
	return cfg
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load
// singleton for config. dbPathOverrideMu and dbPathOverride implement a
// mutex-protected process-wide override for CLI --db-path.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/vceo/config.yaml
// 2) /etc/vceo/config.yaml
// 3) ./config.yaml (lowest priority)
// Environment variables are handled separately.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		// 1) User config (~/.config/vceo/config.yaml)
		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		if s, err := loadSettingsFile(filepath.Join(dir, "config.yaml")); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		// 2) /etc
		if s, err := loadSettingsFile(filepath.Join(string(os.PathSeparator), "etc", "vceo", "config.yaml")); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}

		// 3) Local ./config.yaml (lowest priority)
		if s, err := loadSettingsFile("config.yaml"); err == nil {
			settings = s
			return
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			settingsErr = err
			return
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
