package upgrade

import (
	"errors"
	"fmt"
	"strings"
)

// Phase selects which half of every action a flow executes.
type Phase string

const (
	// PhaseConvert runs Prepare of every action stage by stage.
	PhaseConvert Phase = "convert"
	// PhaseFinish runs Finish of every action after the system was converted.
	PhaseFinish Phase = "finish"
	// PhaseRevert runs Revert of completed actions in reverse order.
	PhaseRevert Phase = "revert"
)

// ErrUnknownPhase is returned by ParsePhase for unsupported values.
var ErrUnknownPhase = errors.New("unknown phase")

// ParsePhase converts string input to a Phase.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(strings.ToLower(strings.TrimSpace(s))); p {
	case PhaseConvert, PhaseFinish, PhaseRevert:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
}

// String implements fmt.Stringer.
func (p Phase) String() string {
	return string(p)
}

// RebootType tells the flow when an action needs the machine restarted.
type RebootType int

const (
	// RebootNone means no reboot is needed.
	RebootNone RebootType = iota
	// RebootAfterCurrentStage stops the flow after the action's stage and reboots.
	RebootAfterCurrentStage
	// RebootAfterLastStage defers the reboot until the whole flow completed.
	RebootAfterLastStage
)

// String implements fmt.Stringer.
func (r RebootType) String() string {
	switch r {
	case RebootNone:
		return "none"
	case RebootAfterCurrentStage:
		return "after_current_stage"
	case RebootAfterLastStage:
		return "after_last_stage"
	default:
		return fmt.Sprintf("RebootType(%d)", int(r))
	}
}
