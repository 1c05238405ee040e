package actions

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errTestCommand = errors.New("test command failed")

// recordingRunner records commands and returns canned output keyed by the command line prefix.
type recordingRunner struct {
	mu       sync.Mutex
	commands []string
	outputs  map[string]string
	failures map[string]bool
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{
		outputs:  make(map[string]string),
		failures: make(map[string]bool),
	}
}

// Run implements system.Runner.
func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := strings.Join(append([]string{name}, args...), " ")
	r.commands = append(r.commands, line)

	for prefix, failed := range r.failures {
		if failed && strings.HasPrefix(line, prefix) {
			return []byte(r.outputs[prefix]), errTestCommand
		}
	}

	for prefix, output := range r.outputs {
		if strings.HasPrefix(line, prefix) {
			return []byte(output), nil
		}
	}

	return nil, nil
}
