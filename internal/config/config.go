package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config holds the paths and tunables used by the upgrader across all phases.
type Config struct {
	// StateDir keeps the progress file between reboots.
	StateDir string `yaml:"state_dir"`
	// LogFile is the upgrade log, appended to on every run.
	LogFile string `yaml:"log_file"`
	// LogLevel is the minimum level written to console and log file.
	LogLevel string `yaml:"log_level"`
	// StatusFlagPath is created while a conversion is in progress.
	StatusFlagPath string `yaml:"status_flag_path"`
	// CompletionFlagPath is created once the conversion finished successfully.
	CompletionFlagPath string `yaml:"completion_flag_path"`
	// MotdPath is the SSH login message file the upgrader writes progress notes to.
	MotdPath string `yaml:"motd_path"`
	// InstallPath is where the upgrader binary is installed so systemd can resume after reboot.
	InstallPath string `yaml:"install_path"`
	// UnitPath is the systemd unit file that resumes the upgrade on boot.
	UnitPath string `yaml:"unit_path"`
	// ProgressSocket is the unix socket serving the progress API while a flow runs.
	ProgressSocket string `yaml:"progress_socket"`
	// CommandTimeout bounds a single external command (apt, plesk installer).
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// MinPleskVersion is the oldest Plesk release the upgrade supports.
	MinPleskVersion string `yaml:"min_plesk_version"`
	// MinPHPVersion is the oldest Plesk PHP handler allowed to be installed.
	MinPHPVersion string `yaml:"min_php_version"`
}

const (
	// DefaultConfigFilename is the default location of the upgrader settings.
	DefaultConfigFilename = "/etc/plesk/debian11to12.yaml"

	// DefaultStateDir keeps progress between reboots.
	DefaultStateDir = "/usr/local/psa/var/debian11to12"

	// DefaultLogFile is the upgrade log location.
	DefaultLogFile = "/var/log/plesk/distupgrader.log"

	// DefaultStatusFlagPath marks an in-progress conversion.
	DefaultStatusFlagPath = "/tmp/distupgrader.flag"

	// DefaultCompletionFlagPath marks a finished conversion.
	DefaultCompletionFlagPath = "/tmp/distupgrader.completed"

	// DefaultMotdPath is where login messages are written.
	DefaultMotdPath = "/etc/motd"

	// DefaultInstallPath is the stable binary location used by the resume unit.
	DefaultInstallPath = "/usr/local/bin/debian11to12"

	// DefaultUnitPath is the resume unit file.
	DefaultUnitPath = "/etc/systemd/system/plesk-distupgrader.service"

	// DefaultProgressSocket is the progress API socket.
	DefaultProgressSocket = "/run/debian11to12.sock"

	// DefaultCommandTimeout bounds long package operations.
	DefaultCommandTimeout = 2 * time.Hour

	// DefaultMinPleskVersion is the oldest supported Plesk release.
	DefaultMinPleskVersion = "18.0.57"

	// DefaultMinPHPVersion is the oldest allowed Plesk PHP handler.
	DefaultMinPHPVersion = "7.4"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRelativePath is returned when a configured path is not absolute.
	errRelativePath = errors.New("path must be absolute")
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file is not an error: the defaults are returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks formatting of the provided settings.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	setDefault(&settings.StateDir, DefaultStateDir)
	setDefault(&settings.LogFile, DefaultLogFile)
	setDefault(&settings.LogLevel, DefaultLogLevel)
	setDefault(&settings.StatusFlagPath, DefaultStatusFlagPath)
	setDefault(&settings.CompletionFlagPath, DefaultCompletionFlagPath)
	setDefault(&settings.MotdPath, DefaultMotdPath)
	setDefault(&settings.InstallPath, DefaultInstallPath)
	setDefault(&settings.UnitPath, DefaultUnitPath)
	setDefault(&settings.ProgressSocket, DefaultProgressSocket)
	setDefault(&settings.MinPleskVersion, DefaultMinPleskVersion)
	setDefault(&settings.MinPHPVersion, DefaultMinPHPVersion)

	if settings.CommandTimeout <= 0 {
		settings.CommandTimeout = DefaultCommandTimeout
	}

	paths := map[string]string{
		"state_dir":            settings.StateDir,
		"log_file":             settings.LogFile,
		"status_flag_path":     settings.StatusFlagPath,
		"completion_flag_path": settings.CompletionFlagPath,
		"motd_path":            settings.MotdPath,
		"install_path":         settings.InstallPath,
		"unit_path":            settings.UnitPath,
		"progress_socket":      settings.ProgressSocket,
	}

	for name, value := range paths {
		if !filepath.IsAbs(value) {
			return fmt.Errorf("%s %q: %w", name, value, errRelativePath)
		}
	}

	if _, err := semver.NewVersion(settings.MinPleskVersion); err != nil {
		return fmt.Errorf("invalid min_plesk_version: %w", err)
	}

	if _, err := semver.NewVersion(settings.MinPHPVersion); err != nil {
		return fmt.Errorf("invalid min_php_version: %w", err)
	}

	return nil
}

// StateFile returns the progress file location inside StateDir.
func (c *Config) StateFile() string {
	return filepath.Join(c.StateDir, "progress.json")
}

// MarkerFile returns the single-run marker location inside StateDir.
func (c *Config) MarkerFile() string {
	return filepath.Join(c.StateDir, "running.marker")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
