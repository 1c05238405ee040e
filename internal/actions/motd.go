package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plesk/debian11to12/internal/action"
)

const (
	inProgressBlock = "in-progress"
	finishedBlock   = "finished"
)

// motdBlock returns the begin and end markers of a named message block.
func motdBlock(name string) (string, string) {
	return "# debian11to12 " + name + " begin", "# debian11to12 " + name + " end"
}

// addMotdBlock appends a marked message block, replacing an older one with the same name.
func addMotdBlock(path, name, message string) error {
	current, err := readOptional(path)
	if err != nil {
		return err
	}

	current = stripMotdBlock(current, name)

	begin, end := motdBlock(name)

	var builder strings.Builder

	builder.WriteString(current)

	if current != "" && !strings.HasSuffix(current, "\n") {
		builder.WriteString("\n")
	}

	builder.WriteString(begin + "\n")
	builder.WriteString(strings.TrimRight(message, "\n") + "\n")
	builder.WriteString(end + "\n")

	return writeKeepingMode(path, []byte(builder.String()))
}

// removeMotdBlock deletes a marked message block, leaving the rest of the file intact.
func removeMotdBlock(path, name string) error {
	current, err := readOptional(path)
	if err != nil {
		return err
	}

	stripped := stripMotdBlock(current, name)
	if stripped == current {
		return nil
	}

	return writeKeepingMode(path, []byte(stripped))
}

func stripMotdBlock(contents, name string) string {
	begin, end := motdBlock(name)

	var (
		kept    []string
		inBlock bool
	)

	for line := range strings.SplitAfterSeq(contents, "\n") {
		trimmed := strings.TrimRight(line, "\n")

		switch {
		case trimmed == begin:
			inBlock = true
		case trimmed == end && inBlock:
			inBlock = false
		case !inBlock:
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "")
}

func readOptional(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return string(contents), nil
}

// AddInProgressSSHLoginMessage warns administrators logging in over SSH that
// the upgrade is running.
type AddInProgressSSHLoginMessage struct {
	action.Base

	motdPath string
	newOS    string
	logFile  string
}

// NewAddInProgressSSHLoginMessage creates the action.
func NewAddInProgressSSHLoginMessage(motdPath, newOS, logFile string) *AddInProgressSSHLoginMessage {
	return &AddInProgressSSHLoginMessage{
		Base:     action.Base{ActionName: "add in-progress SSH login message"},
		motdPath: motdPath,
		newOS:    newOS,
		logFile:  logFile,
	}
}

// Prepare adds the message.
func (a *AddInProgressSSHLoginMessage) Prepare(context.Context) error {
	message := fmt.Sprintf(`===============================================================================
Message from the Plesk dist-upgrade tool:
The server is being upgraded to %s. Please wait.
To see the current conversion status, run the tool with the --status flag.
To monitor the progress, run the tool with the --monitor flag.
The log is available in %s.
===============================================================================`, a.newOS, a.logFile)

	return addMotdBlock(a.motdPath, inProgressBlock, message)
}

// Finish removes the message.
func (a *AddInProgressSSHLoginMessage) Finish(context.Context) error {
	return removeMotdBlock(a.motdPath, inProgressBlock)
}

// Revert removes the message.
func (a *AddInProgressSSHLoginMessage) Revert(context.Context) error {
	return removeMotdBlock(a.motdPath, inProgressBlock)
}

// AddFinishSSHLoginMessage tells administrators the upgrade has completed.
// It only acts in the finish phase.
type AddFinishSSHLoginMessage struct {
	action.Base

	motdPath string
	newOS    string
}

// NewAddFinishSSHLoginMessage creates the action.
func NewAddFinishSSHLoginMessage(motdPath, newOS string) *AddFinishSSHLoginMessage {
	return &AddFinishSSHLoginMessage{
		Base:     action.Base{ActionName: "add finish SSH login message"},
		motdPath: motdPath,
		newOS:    newOS,
	}
}

// Finish adds the message.
func (a *AddFinishSSHLoginMessage) Finish(context.Context) error {
	message := fmt.Sprintf(`===============================================================================
Message from the Plesk dist-upgrade tool:
The server has been upgraded to %s.
You can remove this message from the %s file.
===============================================================================`, a.newOS, a.motdPath)

	return addMotdBlock(a.motdPath, finishedBlock, message)
}

// Revert removes the message in case it was left by an earlier attempt.
func (a *AddFinishSSHLoginMessage) Revert(context.Context) error {
	return removeMotdBlock(a.motdPath, finishedBlock)
}
