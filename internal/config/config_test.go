package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaults and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config gets defaults.
	settings := new(Config)

	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultStateDir, settings.StateDir)
	require.Equal(t, DefaultCommandTimeout, settings.CommandTimeout)
	require.Equal(t, DefaultMinPleskVersion, settings.MinPleskVersion)

	// Relative path.
	settings = &Config{
		StateDir: "relative/dir",
	}

	require.Error(t, Validate(settings))

	// Bad version.
	settings = &Config{
		MinPleskVersion: "not-a-version",
	}

	require.Error(t, Validate(settings))

	require.Error(t, Validate(nil))
}

// TestLoad_MissingFileReturnsDefaults ensures the settings file is optional.
func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		StateDir:       filepath.Join(dir, "state"),
		CommandTimeout: 10 * time.Minute,
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.StateDir, loaded.StateDir)
	require.Equal(t, settings.CommandTimeout, loaded.CommandTimeout)
	require.Equal(t, filepath.Join(dir, "state", "progress.json"), loaded.StateFile())

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_InvalidYAML verifies that malformed settings are rejected.
func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_dir: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
