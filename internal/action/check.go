package action

import (
	"context"
	"fmt"

	"github.com/plesk/debian11to12/internal/logger"
)

// FailedCheck describes a precondition that does not hold.
type FailedCheck struct {
	// Name of the check.
	Name string
	// Description tells the user how to fix it.
	Description string
	// Err is set when the check itself could not be evaluated.
	Err error
}

// String implements fmt.Stringer.
func (f FailedCheck) String() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v\n%s", f.Name, f.Err, f.Description)
	}

	return fmt.Sprintf("%s:\n%s", f.Name, f.Description)
}

// RunChecks evaluates every check and returns the failed ones.
// A check that returns an error counts as failed.
func RunChecks(ctx context.Context, checks []CheckAction) []FailedCheck {
	var failed []FailedCheck

	for _, check := range checks {
		logger.DebugKV(ctx, "Running check", "check", check.Name())

		ok, err := check.Do(ctx)
		if err == nil && ok {
			continue
		}

		logger.WarnKV(ctx, "Check failed", "check", check.Name(), "error", err)

		failed = append(failed, FailedCheck{
			Name:        check.Name(),
			Description: check.Description(),
			Err:         err,
		})
	}

	return failed
}
