package system

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupportedOS indicates the current OS cannot be rebooted by the upgrader.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Reboot asks systemd to restart the machine. The command returns as soon as
// the request is queued; the OS takes over the rest.
func Reboot(ctx context.Context, runner Runner) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("reboot on %s: %w", runtime.GOOS, ErrUnsupportedOS)
	}

	if _, err := runner.Run(ctx, "systemctl", "reboot"); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}

	return nil
}
