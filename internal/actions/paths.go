package actions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Paths lists the host files the actions read and modify.
type Paths struct {
	// AptSourcesList is the main apt sources file.
	AptSourcesList string
	// AptSourcesDir holds additional apt sources.
	AptSourcesDir string
	// MariaDBConfig is the server configuration file Plesk manages.
	MariaDBConfig string
	// PleskVersionFile holds the installed Plesk version.
	PleskVersionFile string
	// PleskBanner enables the Plesk banner on SSH login when present.
	PleskBanner string
	// DpkgLocks are the lock files apt and dpkg hold while working.
	DpkgLocks []string
	// Root is the filesystem root used for container markers.
	Root string
	// ProcRoot is the procfs mount point.
	ProcRoot string
}

// DefaultPaths returns the locations used on a real Debian host.
func DefaultPaths() Paths {
	return Paths{
		AptSourcesList:   "/etc/apt/sources.list",
		AptSourcesDir:    "/etc/apt/sources.list.d",
		MariaDBConfig:    "/etc/mysql/my.cnf",
		PleskVersionFile: "/usr/local/psa/version",
		PleskBanner:      "/root/.plesk_banner",
		DpkgLocks:        []string{"/var/lib/dpkg/lock-frontend", "/var/lib/dpkg/lock"},
		Root:             "/",
		ProcRoot:         "/proc",
	}
}

// backupSuffix is appended to files saved before modification.
const backupSuffix = ".distupgrade-backup"

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// backupFile copies path next to itself unless a backup already exists,
// so a retried action never overwrites the pristine copy.
func backupFile(path string) error {
	backup := path + backupSuffix
	if exists(backup) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err = os.WriteFile(backup, contents, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write backup of %s: %w", path, err)
	}

	return nil
}

// restoreFile moves the backup of path back in place. A missing backup is not an error.
func restoreFile(path string) error {
	backup := path + backupSuffix
	if !exists(backup) {
		return nil
	}

	if err := os.Rename(backup, path); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}

	return nil
}

// dropBackup removes the backup of path once it is no longer needed.
func dropBackup(path string) error {
	if err := os.Remove(path + backupSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup of %s: %w", path, err)
	}

	return nil
}

// writeKeepingMode replaces the contents of path and keeps its permissions.
func writeKeepingMode(path string, contents []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.WriteFile(filepath.Clean(path), contents, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// removeIfExists deletes path, ignoring a missing file.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}
