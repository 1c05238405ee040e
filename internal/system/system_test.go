package system

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const debian11OSRelease = `PRETTY_NAME="Debian GNU/Linux 11 (bullseye)"
NAME="Debian GNU/Linux"
VERSION_ID="11"
VERSION="11 (bullseye)"
VERSION_CODENAME=bullseye
ID=debian
HOME_URL='https://www.debian.org/'
`

// TestDetectSystem parses a Debian 11 os-release file.
func TestDetectSystem(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "os-release")
	require.NoError(t, os.WriteFile(path, []byte(debian11OSRelease), 0o600))

	release, err := ReadOSRelease(path)
	require.NoError(t, err)
	require.Equal(t, "bullseye", release.Codename())
	require.Equal(t, "https://www.debian.org/", release["HOME_URL"])

	system, err := DetectSystem(path)
	require.NoError(t, err)
	require.Equal(t, "Debian", system.OSName)
	require.Equal(t, "11", system.OSVersion)
}

// TestDetectSystem_Errors covers missing files and files without NAME.
func TestDetectSystem_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := DetectSystem(filepath.Join(dir, "missing"))
	require.Error(t, err)

	path := filepath.Join(dir, "os-release")
	require.NoError(t, os.WriteFile(path, []byte("ID=debian\n"), 0o600))

	_, err = DetectSystem(path)
	require.ErrorIs(t, err, errNoOSName)
}

// TestQuoteArgs verifies that arguments with spaces and quotes are shell-safe.
func TestQuoteArgs(t *testing.T) {
	t.Parallel()

	line, err := QuoteArgs("/usr/local/bin/debian11to12", "--resume", "--config", "/etc/my conf.yaml")
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/debian11to12 --resume --config '/etc/my conf.yaml'", line)
}

// TestExecRunner runs real commands and checks output and error wrapping.
func TestExecRunner(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	runner := NewExecRunner(5 * time.Second)

	out, err := runner.Run(context.Background(), "sh", "-c", "echo $DEBIAN_FRONTEND")
	require.NoError(t, err)
	require.Equal(t, "noninteractive\n", string(out))

	_, err = runner.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
}
