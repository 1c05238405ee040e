package upgrade

import (
	"slices"
	"time"
)

// Progress is the state of a dist-upgrade persisted between runs and reboots.
type Progress struct {
	// SessionID identifies one upgrade attempt from the first run until completion.
	SessionID string
	// Upgrader is the name of the upgrader that owns this progress.
	Upgrader string
	// Phase is the phase the next run should execute.
	Phase Phase
	// NextStage is the index of the first stage not completed in the convert phase.
	NextStage int
	// Done lists actions whose Prepare completed, in execution order.
	Done []string
	// PendingFinalReboot is set when an action asked to reboot after the last stage.
	PendingFinalReboot bool
	// Interrupted is the action whose Prepare started but did not complete.
	// Its changes may be partial, so a revert undoes it as well.
	Interrupted string
	// Failed is the name of the action that stopped the flow, if any.
	Failed string
	// Error is the message of the failure that stopped the flow.
	Error string
	// StartedAt is when the session began.
	StartedAt time.Time
	// UpdatedAt is when the progress was last saved.
	UpdatedAt time.Time
}

// NewProgress creates the initial progress for a conversion session.
func NewProgress(sessionID, upgrader string, now time.Time) *Progress {
	return &Progress{
		SessionID: sessionID,
		Upgrader:  upgrader,
		Phase:     PhaseConvert,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// IsDone reports whether the named action already completed Prepare.
func (p *Progress) IsDone(action string) bool {
	return slices.Contains(p.Done, action)
}

// MarkDone records the named action as completed, keeping Done free of duplicates.
func (p *Progress) MarkDone(action string) {
	if p.Interrupted == action {
		p.Interrupted = ""
	}

	if !p.IsDone(action) {
		p.Done = append(p.Done, action)
	}
}

// Touched reports whether the named action may have changed the system:
// it either completed Prepare or was interrupted inside it.
func (p *Progress) Touched(action string) bool {
	return p.IsDone(action) || (action != "" && p.Interrupted == action)
}

// HasFailed reports whether the last run stopped on an error.
func (p *Progress) HasFailed() bool {
	return p.Failed != "" || p.Error != ""
}

// ClearFailure forgets a previous failure so the flow can be retried.
func (p *Progress) ClearFailure() {
	p.Failed = ""
	p.Error = ""
}

// Clone returns a deep copy of the progress.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}

	cloned := *p
	cloned.Done = slices.Clone(p.Done)

	return &cloned
}
