package system

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/plesk/debian11to12/internal/logger"
)

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// outputTailSize is how much of a failed command's output is kept in the error.
const outputTailSize = 2048

// nonInteractiveEnv keeps apt, dpkg and debconf from waiting for input.
//
//nolint:gochecknoglobals // Constant environment shared by every command.
var nonInteractiveEnv = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"APT_LISTCHANGES_FRONTEND=none",
	"NEEDRESTART_MODE=a",
	"LC_ALL=C",
}

// ExecRunner runs commands on the local host.
type ExecRunner struct {
	// Timeout bounds every command; zero means no limit beyond the context.
	Timeout time.Duration
}

// NewExecRunner creates a runner with the given per-command timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		Timeout: timeout,
	}
}

// Run executes the command and returns its combined output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	commandLine := strings.Join(append([]string{name}, args...), " ")
	logger.DebugKV(ctx, "Running command", "command", commandLine)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), nonInteractiveEnv...)

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	started := time.Now()
	err := cmd.Run()

	logger.DebugKV(ctx, "Command finished",
		"command", commandLine,
		"duration", time.Since(started).String(),
		"output", output.String(),
	)

	if err != nil {
		return output.Bytes(), fmt.Errorf("%s: %w: %s", commandLine, err, tail(output.Bytes()))
	}

	return output.Bytes(), nil
}

// tail returns the last outputTailSize bytes of output, trimmed.
func tail(output []byte) string {
	if len(output) > outputTailSize {
		output = output[len(output)-outputTailSize:]
	}

	return strings.TrimSpace(string(output))
}
