package actions

import (
	"time"

	"github.com/plesk/debian11to12/internal/action"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
)

// Reboot asks the flow to restart the host. The reboot itself is performed by
// the engine once the flow returns.
type Reboot struct {
	action.Base

	after     domain.RebootType
	nextPhase domain.Phase
}

// RebootOption configures a Reboot action.
type RebootOption func(*Reboot)

// WithRebootName overrides the default action name.
func WithRebootName(name string) RebootOption {
	return func(r *Reboot) {
		r.ActionName = name
	}
}

// WithRebootAfter sets when the reboot happens.
func WithRebootAfter(after domain.RebootType) RebootOption {
	return func(r *Reboot) {
		r.after = after
	}
}

// WithNextPhase makes the host boot into a different phase.
func WithNextPhase(phase domain.Phase) RebootOption {
	return func(r *Reboot) {
		r.nextPhase = phase
	}
}

// NewReboot creates a reboot after the current stage unless configured otherwise.
func NewReboot(opts ...RebootOption) *Reboot {
	r := &Reboot{
		Base:  action.Base{ActionName: "reboot", Estimate: 2 * time.Minute},
		after: domain.RebootAfterCurrentStage,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RebootAfter implements action.Rebooter.
func (r *Reboot) RebootAfter() domain.RebootType {
	return r.after
}

// NextPhase implements action.Rebooter.
func (r *Reboot) NextPhase() (domain.Phase, bool) {
	return r.nextPhase, r.nextPhase != ""
}
