package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAddUpgradeSystemdService installs the binary, writes the unit and removes both on finish.
func TestAddUpgradeSystemdService(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bin := filepath.Join(dir, "build", "debian11to12")
	install := filepath.Join(dir, "usr", "local", "bin", "debian11to12")
	unit := filepath.Join(dir, "systemd", "plesk-distupgrader.service")

	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho upgrader\n"), 0o755))

	runner := newRecordingRunner()
	a := NewAddUpgradeSystemdService(runner, bin, install, unit, []string{"--config", "/etc/my conf.yaml"})
	ctx := context.Background()

	require.NoError(t, a.Prepare(ctx))

	installed, err := os.ReadFile(install)
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho upgrader\n", string(installed))

	info, err := os.Stat(install)
	require.NoError(t, err)
	require.Equal(t, DefaultFileMode, info.Mode().Perm())

	unitContents := readFile(t, unit)
	require.Contains(t, unitContents, "ExecStart="+install+" --resume --config '/etc/my conf.yaml'\n")
	require.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable plesk-distupgrader.service",
	}, runner.commands)

	sum, err := fileChecksum(install)
	require.NoError(t, err)
	require.Len(t, sum, DefaultChecksumFunction.Size())

	// A retry keeps the installed copy and its ownership.
	require.NoError(t, a.Prepare(ctx))
	require.FileExists(t, install+".distupgrade-installed")

	require.NoError(t, a.Finish(ctx))
	require.NoFileExists(t, unit)
	require.NoFileExists(t, install)
	require.FileExists(t, bin)
	require.Contains(t, runner.commands, "systemctl disable plesk-distupgrader.service")
}

// TestAddUpgradeSystemdService_KeepsForeignCopy leaves an identical binary it did not install.
func TestAddUpgradeSystemdService_KeepsForeignCopy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bin := filepath.Join(dir, "debian11to12")
	install := filepath.Join(dir, "installed", "debian11to12")
	unit := filepath.Join(dir, "plesk-distupgrader.service")
	contents := []byte("#!/bin/sh\necho upgrader\n")

	require.NoError(t, os.WriteFile(bin, contents, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(install), 0o755))
	require.NoError(t, os.WriteFile(install, contents, 0o755))

	a := NewAddUpgradeSystemdService(newRecordingRunner(), bin, install, unit, nil)
	ctx := context.Background()

	require.NoError(t, a.Prepare(ctx))
	require.NoFileExists(t, install+".distupgrade-installed")

	require.NoError(t, a.Revert(ctx))
	require.NoFileExists(t, unit)
	require.FileExists(t, install)
}
