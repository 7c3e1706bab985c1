package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeUserConfig(t *testing.T, home, content string) {
	t.Helper()
	userConfigPath := filepath.Join(home, ".config", "vceo", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte(content), 0o600))
}

func TestLoadSettings_PrefersUserConfigOverLocal(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workdir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	writeUserConfig(t, home, "db_path: /tmp/from-user.db\n")
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("db_path: /tmp/from-local.db\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-user.db", s.DBPath)
}

func TestLoadSettings_InvalidYAMLReturnsError(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	writeUserConfig(t, home, "db_path: [")

	_, err := LoadSettings()
	require.Error(t, err)
}

func TestEffectiveRuntimeSettings_Defaults(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := EffectiveRuntimeSettings()
	require.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	require.Equal(t, DefaultPollIntervalMs, cfg.PollIntervalMs)
	require.True(t, cfg.EnforceBudget)
	require.True(t, cfg.TruthLayer)
	require.Equal(t, "development", cfg.Mode)
}

func TestEffectiveRuntimeSettings_ExplicitFalseHonored(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	writeUserConfig(t, home, "enable_budget_enforcement: false\nenable_truth_layer: false\nmode: staging\n")

	cfg := EffectiveRuntimeSettings()
	require.False(t, cfg.EnforceBudget, "explicit false must not be replaced by the true default")
	require.False(t, cfg.TruthLayer)
	require.Equal(t, "staging", cfg.Mode)
}

func TestEffectiveRuntimeSettings_ConfigOverrides(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	writeUserConfig(t, home, "max_iterations: 10\npoll_interval_ms: 250\n")

	cfg := EffectiveRuntimeSettings()
	require.Equal(t, 10, cfg.MaxIterations)
	require.Equal(t, 250, cfg.PollIntervalMs)
}

func TestLoadSettingsFile_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /tmp/read.db\nmax_iterations: 7\n"), 0o600))

	s, err := loadSettingsFile(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/read.db", s.DBPath)
	require.Equal(t, 7, s.MaxIterations)
}

func TestEnsureConfigDir_WritesDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())

	data, err := os.ReadFile(filepath.Join(home, ".config", "vceo", "config.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "vceo configuration")

	// A second call leaves the existing file alone.
	require.NoError(t, os.WriteFile(filepath.Join(home, ".config", "vceo", "config.yaml"), []byte("db_path: /tmp/x.db\n"), 0o600))
	require.NoError(t, EnsureConfigDir())
	data, err = os.ReadFile(filepath.Join(home, ".config", "vceo", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "db_path: /tmp/x.db\n", string(data))
}
