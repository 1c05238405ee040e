package action

import (
	"context"
	"time"

	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
)

// Action is one reversible step of a dist-upgrade.
type Action interface {
	// Name is unique within a plan and is what the progress records.
	Name() string
	// Prepare does the work of the convert phase.
	Prepare(ctx context.Context) error
	// Finish completes the work after the system was converted.
	Finish(ctx context.Context) error
	// Revert undoes Prepare.
	Revert(ctx context.Context) error
	// EstimatePrepareTime is a rough duration of Prepare, used by plans.
	EstimatePrepareTime() time.Duration
	// IsRequired reports whether the action applies to this host at all.
	IsRequired(ctx context.Context) bool
}

// Rebooter is implemented by actions that need the host restarted.
type Rebooter interface {
	// RebootAfter tells when the reboot must happen.
	RebootAfter() domain.RebootType
	// NextPhase reports the phase the host boots into, if it changes.
	NextPhase() (domain.Phase, bool)
}

// CheckAction is a precondition evaluated before the conversion starts.
type CheckAction interface {
	// Name identifies the check in logs.
	Name() string
	// Description tells the user how to fix a failed check.
	Description() string
	// Do reports whether the precondition holds.
	Do(ctx context.Context) (bool, error)
}

// Base provides no-op implementations for actions that only need some steps.
type Base struct {
	// ActionName is returned by Name.
	ActionName string
	// Estimate is returned by EstimatePrepareTime.
	Estimate time.Duration
}

// Name implements Action.
func (b *Base) Name() string { return b.ActionName }

// Prepare implements Action.
func (b *Base) Prepare(context.Context) error { return nil }

// Finish implements Action.
func (b *Base) Finish(context.Context) error { return nil }

// Revert implements Action.
func (b *Base) Revert(context.Context) error { return nil }

// EstimatePrepareTime implements Action.
func (b *Base) EstimatePrepareTime() time.Duration {
	if b.Estimate <= 0 {
		return time.Second
	}

	return b.Estimate
}

// IsRequired implements Action.
func (b *Base) IsRequired(context.Context) bool { return true }

// rebootOf returns the reboot request of an action, if any.
func rebootOf(a Action) (domain.RebootType, domain.Phase, bool) {
	r, ok := a.(Rebooter)
	if !ok {
		return domain.RebootNone, "", false
	}

	phase, changes := r.NextPhase()

	return r.RebootAfter(), phase, changes
}
