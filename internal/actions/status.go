package actions

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/plesk/debian11to12/internal/action"
)

// HandleConversionStatus maintains the in-progress and completion flag files
// other tools (and the --status flag) look at.
type HandleConversionStatus struct {
	action.Base

	statusFlagPath     string
	completionFlagPath string
	now                func() time.Time
}

// NewHandleConversionStatus creates the action for the given flag files.
func NewHandleConversionStatus(statusFlagPath, completionFlagPath string) *HandleConversionStatus {
	return &HandleConversionStatus{
		Base:               action.Base{ActionName: "prepare and send conversion status"},
		statusFlagPath:     statusFlagPath,
		completionFlagPath: completionFlagPath,
		now:                time.Now,
	}
}

// Prepare writes the in-progress flag and drops a stale completion flag.
func (a *HandleConversionStatus) Prepare(context.Context) error {
	if err := removeIfExists(a.completionFlagPath); err != nil {
		return err
	}

	return a.writeFlag(a.statusFlagPath)
}

// Finish replaces the in-progress flag with the completion flag.
func (a *HandleConversionStatus) Finish(context.Context) error {
	if err := removeIfExists(a.statusFlagPath); err != nil {
		return err
	}

	return a.writeFlag(a.completionFlagPath)
}

// Revert removes the in-progress flag.
func (a *HandleConversionStatus) Revert(context.Context) error {
	return removeIfExists(a.statusFlagPath)
}

func (a *HandleConversionStatus) writeFlag(path string) error {
	contents := a.now().UTC().Format(time.RFC3339) + "\n"

	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		return fmt.Errorf("write flag %s: %w", path, err)
	}

	return nil
}
