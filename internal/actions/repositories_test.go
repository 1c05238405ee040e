package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const bullseyeSources = `# main
deb http://deb.debian.org/debian bullseye main contrib non-free
deb http://security.debian.org/debian-security bullseye-security main
deb http://security.debian.org bullseye/updates main
# deb http://deb.debian.org/debian bullseye-backports main
`

const pleskSources = `deb [arch=amd64] http://autoinstall.plesk.com/PSA_18.0.57/ bullseye all
deb http://autoinstall.plesk.com/pool/PSA_18.0.57_12345/dist-deb-Debian-11.0-x86_64/ bullseye all
`

func writeSources(t *testing.T) Paths {
	t.Helper()

	dir := t.TempDir()
	sourcesDir := filepath.Join(dir, "sources.list.d")
	require.NoError(t, os.MkdirAll(sourcesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources.list"), []byte(bullseyeSources), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sourcesDir, "plesk.list"), []byte(pleskSources), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sourcesDir, "other.list"), []byte("deb http://example.com/ bullseye main\n"), 0o644))

	return Paths{
		AptSourcesList: filepath.Join(dir, "sources.list"),
		AptSourcesDir:  sourcesDir,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(contents)
}

// TestSetupDebianRepositories switches codenames, fixes security suites and leaves Plesk sources alone.
func TestSetupDebianRepositories(t *testing.T) {
	t.Parallel()

	paths := writeSources(t)
	a := NewSetupDebianRepositories(paths, "bullseye", "bookworm")
	ctx := context.Background()

	require.NoError(t, a.Prepare(ctx))

	require.Equal(t, `# main
deb http://deb.debian.org/debian bookworm main contrib non-free non-free-firmware
deb http://security.debian.org/debian-security bookworm-security main
deb http://security.debian.org bookworm-security main
# deb http://deb.debian.org/debian bullseye-backports main
`, readFile(t, paths.AptSourcesList))
	require.Equal(t, "deb http://example.com/ bookworm main\n", readFile(t, filepath.Join(paths.AptSourcesDir, "other.list")))
	require.Equal(t, pleskSources, readFile(t, filepath.Join(paths.AptSourcesDir, "plesk.list")))

	// Retrying keeps the pristine backup.
	require.NoError(t, a.Prepare(ctx))
	require.Equal(t, bullseyeSources, readFile(t, paths.AptSourcesList+backupSuffix))

	require.NoError(t, a.Revert(ctx))
	require.Equal(t, bullseyeSources, readFile(t, paths.AptSourcesList))
	require.NoFileExists(t, paths.AptSourcesList+backupSuffix)
}

// TestSetupDebianRepositories_RevertAfterPartialFailure restores files rewritten
// before a later source file could not be read.
func TestSetupDebianRepositories_RevertAfterPartialFailure(t *testing.T) {
	t.Parallel()

	paths := writeSources(t)
	// A directory matching the glob cannot be read as a file.
	require.NoError(t, os.Mkdir(filepath.Join(paths.AptSourcesDir, "zz.list"), 0o755))

	a := NewSetupDebianRepositories(paths, "bullseye", "bookworm")
	ctx := context.Background()

	require.Error(t, a.Prepare(ctx))
	require.Contains(t, readFile(t, paths.AptSourcesList), "bookworm")
	require.FileExists(t, paths.AptSourcesList+backupSuffix)

	require.NoError(t, a.Revert(ctx))
	require.Equal(t, bullseyeSources, readFile(t, paths.AptSourcesList))
	require.NoFileExists(t, paths.AptSourcesList+backupSuffix)
	require.Equal(t, "deb http://example.com/ bullseye main\n", readFile(t, filepath.Join(paths.AptSourcesDir, "other.list")))
}

// TestSwitchPleskRepositories rewrites Plesk sources only and drops backups on finish.
func TestSwitchPleskRepositories(t *testing.T) {
	t.Parallel()

	paths := writeSources(t)
	a := NewSwitchPleskRepositories(paths, "bullseye", "bookworm", "11", "12")
	ctx := context.Background()

	require.NoError(t, a.Prepare(ctx))

	plesk := filepath.Join(paths.AptSourcesDir, "plesk.list")
	require.Equal(t, `deb [arch=amd64] http://autoinstall.plesk.com/PSA_18.0.57/ bookworm all
deb http://autoinstall.plesk.com/pool/PSA_18.0.57_12345/dist-deb-Debian-12.0-x86_64/ bookworm all
`, readFile(t, plesk))
	require.Equal(t, bullseyeSources, readFile(t, paths.AptSourcesList))

	require.NoError(t, a.Finish(ctx))
	require.NoFileExists(t, plesk+backupSuffix)
}
