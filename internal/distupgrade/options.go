package distupgrade

import (
	"errors"
	"fmt"
	"strings"
)

// Options controls a single invocation of the upgrader.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ShowPlan prints the stages and exits.
	ShowPlan bool
	// Status prints the state of the current upgrade and exits.
	Status bool
	// Monitor follows a running upgrade.
	Monitor bool
	// PrepareFeedback packs diagnostics into an archive.
	PrepareFeedback bool
	// Revert rolls back a failed or interrupted conversion.
	Revert bool
	// Resume continues the upgrade recorded in the state directory.
	Resume bool
	// NoReboot leaves rebooting to the administrator.
	NoReboot bool
	// NoChecks skips the preconditions of a new conversion.
	NoChecks bool
	// LogFile overrides the configured log file.
	LogFile string
	// StateDir overrides the configured state directory.
	StateDir string
	// FeedbackDir is where the feedback archive is written; defaults to the working directory.
	FeedbackDir string
	// Verbose enables debug logging.
	Verbose bool
	// BinPath is the path of the running binary; defaults to os.Executable.
	BinPath string
}

// mode is what an invocation does.
type mode int

const (
	modeConvert mode = iota
	modeResume
	modeRevert
	modeShowPlan
	modeStatus
	modeMonitor
	modeFeedback
)

// String implements fmt.Stringer.
func (m mode) String() string {
	switch m {
	case modeConvert:
		return "convert"
	case modeResume:
		return "resume"
	case modeRevert:
		return "revert"
	case modeShowPlan:
		return "show-plan"
	case modeStatus:
		return "status"
	case modeMonitor:
		return "monitor"
	case modeFeedback:
		return "prepare-feedback"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// changesSystem reports whether the mode runs actions and so needs root, the
// log file and the single-run marker.
func (m mode) changesSystem() bool {
	return m == modeConvert || m == modeResume || m == modeRevert
}

var errConflictingModes = errors.New("options cannot be combined")

// resolveMode picks the mode from the flags; at most one mode flag may be set.
func (o *Options) resolveMode() (mode, error) {
	flags := []struct {
		set  bool
		mode mode
	}{
		{o.ShowPlan, modeShowPlan},
		{o.Status, modeStatus},
		{o.Monitor, modeMonitor},
		{o.PrepareFeedback, modeFeedback},
		{o.Revert, modeRevert},
		{o.Resume, modeResume},
	}

	var (
		selected = modeConvert
		names    []string
	)

	for _, flag := range flags {
		if flag.set {
			selected = flag.mode
			names = append(names, "--"+flag.mode.String())
		}
	}

	if len(names) > 1 {
		return 0, fmt.Errorf("%s: %w", strings.Join(names, ", "), errConflictingModes)
	}

	return selected, nil
}

// resumeArgs are the options the resumed run needs to find the same state.
func (o *Options) resumeArgs(configPath string) []string {
	args := []string{"--config", configPath}

	if o.LogFile != "" {
		args = append(args, "--log-file", o.LogFile)
	}

	if o.StateDir != "" {
		args = append(args, "--state-dir", o.StateDir)
	}

	if o.NoReboot {
		args = append(args, "--no-reboot")
	}

	if o.Verbose {
		args = append(args, "--verbose")
	}

	return args
}
