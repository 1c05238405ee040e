package distupgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/plesk/debian11to12/internal/logger"
)

// ErrAlreadyRunning is returned when another upgrader process holds the marker.
var ErrAlreadyRunning = errors.New("another upgrader process is running")

// acquireMarker makes sure only one upgrader changes the system at a time.
// The marker holds the owner pid; a marker whose owner is gone is stale and
// taken over. The returned function removes the marker.
func acquireMarker(
	ctx context.Context,
	path string,
	findProcess func(pid int) (ps.Process, error),
) (func(), error) {
	self := os.Getpid()

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(contents)))
		if parseErr == nil && pid != self && alive(findProcess, pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}

		logger.WarnKV(ctx, "Taking over a stale run marker", "path", path, "owner", strings.TrimSpace(string(contents)))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read run marker: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	if err = os.WriteFile(path, []byte(strconv.Itoa(self)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	release := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Remove run marker", "error", err)
		}
	}

	return release, nil
}

// alive reports whether a process with the pid exists. Lookup errors count as
// alive so a marker is never taken over by mistake.
func alive(findProcess func(pid int) (ps.Process, error), pid int) bool {
	process, err := findProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
