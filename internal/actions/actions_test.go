package actions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
)

// TestHandleConversionStatus walks the flag files through prepare, finish and revert.
func TestHandleConversionStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	status := filepath.Join(dir, "status.flag")
	completion := filepath.Join(dir, "completed.flag")

	a := NewHandleConversionStatus(status, completion)
	ctx := context.Background()

	require.NoError(t, a.Prepare(ctx))
	require.FileExists(t, status)
	require.NoFileExists(t, completion)

	require.NoError(t, a.Finish(ctx))
	require.NoFileExists(t, status)
	require.FileExists(t, completion)

	require.NoError(t, a.Prepare(ctx))
	require.NoFileExists(t, completion)
	require.NoError(t, a.Revert(ctx))
	require.NoFileExists(t, status)
}

// TestSSHLoginMessages verifies both message blocks are independent of execution order
// and that the administrator's own motd text survives.
func TestSSHLoginMessages(t *testing.T) {
	t.Parallel()

	motd := filepath.Join(t.TempDir(), "motd")
	require.NoError(t, os.WriteFile(motd, []byte("Welcome to the server\n"), 0o644))

	ctx := context.Background()
	inProgress := NewAddInProgressSSHLoginMessage(motd, "Debian 12", "/var/log/plesk/distupgrader.log")
	finished := NewAddFinishSSHLoginMessage(motd, "Debian 12")

	require.NoError(t, finished.Prepare(ctx))
	require.NoError(t, inProgress.Prepare(ctx))
	require.NoError(t, inProgress.Prepare(ctx))

	contents, err := os.ReadFile(motd)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(contents), "is being upgraded to Debian 12"))

	// Finish in plan order: the finish message first, then in-progress removal.
	require.NoError(t, finished.Finish(ctx))
	require.NoError(t, inProgress.Finish(ctx))

	contents, err = os.ReadFile(motd)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(contents), "Welcome to the server\n"))
	require.Contains(t, string(contents), "has been upgraded to Debian 12")
	require.NotContains(t, string(contents), "is being upgraded")

	require.NoError(t, finished.Revert(ctx))

	contents, err = os.ReadFile(motd)
	require.NoError(t, err)
	require.Equal(t, "Welcome to the server\n", string(contents))
}

// TestDisablePleskSSHBanner checks the banner file is moved aside and restored.
func TestDisablePleskSSHBanner(t *testing.T) {
	t.Parallel()

	banner := filepath.Join(t.TempDir(), ".plesk_banner")
	a := NewDisablePleskSSHBanner(banner)
	ctx := context.Background()

	require.False(t, a.IsRequired(ctx))

	require.NoError(t, os.WriteFile(banner, []byte("true"), 0o600))
	require.True(t, a.IsRequired(ctx))

	require.NoError(t, a.Prepare(ctx))
	require.NoFileExists(t, banner)
	require.True(t, a.IsRequired(ctx))

	require.NoError(t, a.Finish(ctx))
	require.FileExists(t, banner)
}

// TestPackageActions verifies the apt and plesk commands each action runs.
func TestPackageActions(t *testing.T) {
	t.Parallel()

	runner := newRecordingRunner()
	ctx := context.Background()

	require.NoError(t, NewUpgradePackages(runner).Prepare(ctx))
	require.NoError(t, NewInstallPackages(runner, []string{"base-files", "libc6"}).Prepare(ctx))
	require.NoError(t, NewDoDistupgrade(runner).Prepare(ctx))
	require.NoError(t, NewUpdatePlesk(runner, "--skip-cleanup").Prepare(ctx))
	require.NoError(t, NewRepairPleskInstallation(runner).Finish(ctx))

	opts := "-o Dpkg::Options::=--force-confdef -o Dpkg::Options::=--force-confold -y"
	require.Equal(t, []string{
		"apt-get " + opts + " update",
		"apt-get " + opts + " upgrade",
		"apt-get " + opts + " update",
		"apt-get " + opts + " install base-files libc6",
		"apt-get " + opts + " update",
		"apt-get " + opts + " dist-upgrade",
		"apt-get " + opts + " autoremove",
		"plesk installer update --skip-cleanup",
		"plesk repair installation -y",
	}, runner.commands)

	require.Equal(t, "update Plesk (--skip-cleanup)", NewUpdatePlesk(runner, "--skip-cleanup").Name())
	require.False(t, NewInstallPackages(runner, nil).IsRequired(ctx))

	runner.failures["apt-get"] = true
	require.ErrorIs(t, NewDoDistupgrade(runner).Prepare(ctx), errTestCommand)
}

// TestUpdatePleskExtensions ensures only installed extensions are upgraded.
func TestUpdatePleskExtensions(t *testing.T) {
	t.Parallel()

	runner := newRecordingRunner()
	runner.outputs["plesk bin extension --list"] = "docker              Docker\ngrafana             Grafana\n\n"

	a := NewUpdatePleskExtensions(runner, []string{"panel-migrator", "docker", "grafana"})
	require.NoError(t, a.Prepare(context.Background()))

	require.Equal(t, []string{
		"plesk bin extension --list",
		"plesk bin extension --upgrade docker",
		"plesk bin extension --upgrade grafana",
	}, runner.commands)
}

// TestReboot covers default and customized reboot requests.
func TestReboot(t *testing.T) {
	t.Parallel()

	r := NewReboot()
	require.Equal(t, "reboot", r.Name())
	require.Equal(t, domain.RebootAfterCurrentStage, r.RebootAfter())

	_, changes := r.NextPhase()
	require.False(t, changes)

	r = NewReboot(
		WithRebootName("reboot and perform finishing actions"),
		WithNextPhase(domain.PhaseFinish),
	)
	phase, changes := r.NextPhase()
	require.True(t, changes)
	require.Equal(t, domain.PhaseFinish, phase)

	r = NewReboot(WithRebootName("final reboot"), WithRebootAfter(domain.RebootAfterLastStage))
	require.Equal(t, domain.RebootAfterLastStage, r.RebootAfter())
}

// fakeProcess implements ps.Process.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

func listing(names ...string) ProcessLister {
	return func() ([]ps.Process, error) {
		result := make([]ps.Process, 0, len(names))
		for i, name := range names {
			result = append(result, fakeProcess{pid: 100000 + i, name: name})
		}

		return result, nil
	}
}

// TestProcessChecks verifies installer and package manager detection.
func TestProcessChecks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ok, err := NewAssertPleskInstallerNotInProgress(listing("sshd", "nginx")).Do(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = NewAssertPleskInstallerNotInProgress(listing("sshd", "autoinstaller")).Do(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	lock := filepath.Join(t.TempDir(), "lock-frontend")
	require.NoError(t, os.WriteFile(lock, nil, 0o600))

	ok, err = NewAssertDpkgNotLocked([]string{lock, lock + "-missing"}, listing("bash")).Do(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = NewAssertDpkgNotLocked(nil, listing("unattended-upgr")).Do(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestAssertMinPleskVersion compares the version file against the minimum.
func TestAssertMinPleskVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "version")
	ctx := context.Background()

	require.NoError(t, os.WriteFile(path, []byte("18.0.57 Debian 11.0 1800231130.12\n"), 0o600))

	ok, err := NewAssertMinPleskVersion("18.0.57", path).Do(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = NewAssertMinPleskVersion("18.0.58", path).Do(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err = NewAssertMinPleskVersion("18.0.57", path).Do(ctx)
	require.ErrorIs(t, err, errEmptyVersionFile)
}

// TestAssertMinPhpVersion reports installed handlers older than the minimum.
func TestAssertMinPhpVersion(t *testing.T) {
	t.Parallel()

	runner := newRecordingRunner()
	runner.outputs["dpkg-query"] = "plesk-php56 installed\nplesk-php56-cli installed\n" +
		"plesk-php73 not-installed\nplesk-php74 installed\nplesk-php82 installed\n"

	check := NewAssertMinPhpVersion(runner, "7.4")

	ok, err := check.Do(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, check.Description(), "PHP 5.6")
	require.NotContains(t, check.Description(), "PHP 7.3")

	runner.outputs["dpkg-query"] = "plesk-php74 installed\nplesk-php81 installed\n"

	ok, err = check.Do(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

// TestAssertNotInContainer detects docker markers and container environment variables.
func TestAssertNotInContainer(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	proc := filepath.Join(root, "proc")
	require.NoError(t, os.MkdirAll(filepath.Join(proc, "1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(proc, "1", "environ"), []byte("PATH=/bin\x00HOME=/\x00"), 0o600))

	check := NewAssertNotInContainer(Paths{Root: root, ProcRoot: proc})
	ctx := context.Background()

	ok, err := check.Do(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(proc, "1", "environ"), []byte("container=lxc\x00"), 0o600))

	ok, err = check.Do(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(proc, "1", "environ"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".dockerenv"), nil, 0o600))

	ok, err = check.Do(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestAssertRoot compares the effective user with root.
func TestAssertRoot(t *testing.T) {
	t.Parallel()

	check := &AssertRoot{euid: func() int { return 1000 }}
	ok, err := check.Do(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	check.euid = func() int { return 0 }
	ok, err = check.Do(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}
