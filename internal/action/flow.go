package action

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/logger"
)

// Store persists progress after every completed action.
type Store interface {
	Save(ctx context.Context, progress *domain.Progress) error
}

// Event describes what the flow is doing right now.
type Event struct {
	// Phase being executed.
	Phase domain.Phase
	// StageIndex is the zero-based index of the current stage.
	StageIndex int
	// StageCount is the number of stages in the plan.
	StageCount int
	// Stage is the current stage name.
	Stage string
	// Action is the action being executed.
	Action string
}

// Outcome tells the caller what to do after a flow returned.
type Outcome struct {
	// Completed is set when every stage of the phase ran.
	Completed bool
	// Reboot is set when the host must be restarted now.
	Reboot bool
	// NextPhase is the phase the next run executes.
	NextPhase domain.Phase
}

// Flow executes a plan one phase at a time.
type Flow struct {
	// plan is the validated plan.
	plan Plan
	// store persists progress between actions.
	store Store
	// observer receives events; may be nil.
	observer func(Event)
	// now returns the current time.
	now func() time.Time
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithObserver registers a callback invoked before every action.
func WithObserver(observer func(Event)) FlowOption {
	return func(f *Flow) {
		f.observer = observer
	}
}

// WithClock overrides the clock used for progress timestamps.
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

var errStoreRequired = errors.New("progress store must be provided")

// NewFlow validates the plan and creates a flow over it.
func NewFlow(plan Plan, store Store, opts ...FlowOption) (*Flow, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}

	if store == nil {
		return nil, errStoreRequired
	}

	f := &Flow{
		plan:  plan,
		store: store,
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Run executes the phase recorded in progress.
func (f *Flow) Run(ctx context.Context, progress *domain.Progress) (Outcome, error) {
	switch progress.Phase {
	case domain.PhaseConvert:
		return f.convert(ctx, progress)
	case domain.PhaseFinish:
		return f.finish(ctx, progress)
	case domain.PhaseRevert:
		return f.revert(ctx, progress)
	default:
		return Outcome{}, fmt.Errorf("%w: %q", domain.ErrUnknownPhase, progress.Phase)
	}
}

// convert runs Prepare from the first unfinished stage. Completed actions are
// skipped, so a run interrupted inside a stage resumes at the failed action.
func (f *Flow) convert(ctx context.Context, progress *domain.Progress) (Outcome, error) {
	for i := progress.NextStage; i < len(f.plan); i++ {
		stage := f.plan[i]
		stageCtx := logger.WithKV(ctx, "stage", stage.Name)

		logger.InfoKV(stageCtx, "Stage started", "index", i+1, "of", len(f.plan))

		var (
			rebootNow bool
			nextPhase domain.Phase
		)

		for _, a := range stage.Actions {
			name := a.Name()
			if progress.IsDone(name) {
				logger.DebugKV(stageCtx, "Action already done", "action", name)
				continue
			}

			if !a.IsRequired(stageCtx) {
				logger.InfoKV(stageCtx, "Action is not required, skipping", "action", name)
				continue
			}

			f.notify(progress.Phase, i, stage.Name, name)
			logger.InfoKV(stageCtx, "Preparing", "action", name)

			if err := a.Prepare(stageCtx); err != nil {
				progress.Interrupted = name
				progress.Failed = name
				progress.Error = err.Error()

				if saveErr := f.save(ctx, progress); saveErr != nil {
					err = errors.Join(err, saveErr)
				}

				return Outcome{}, fmt.Errorf("stage %q, action %q: %w", stage.Name, name, err)
			}

			progress.MarkDone(name)

			switch reboot, phase, changes := rebootOf(a); reboot {
			case domain.RebootAfterCurrentStage:
				rebootNow = true

				if changes {
					nextPhase = phase
				}
			case domain.RebootAfterLastStage:
				progress.PendingFinalReboot = true
			case domain.RebootNone:
			}

			if err := f.save(ctx, progress); err != nil {
				return Outcome{}, err
			}
		}

		progress.NextStage = i + 1

		if rebootNow {
			if nextPhase != "" {
				progress.Phase = nextPhase
			}

			if err := f.save(ctx, progress); err != nil {
				return Outcome{}, err
			}

			logger.InfoKV(stageCtx, "Stage requested a reboot", "next_phase", progress.Phase)

			return Outcome{Reboot: true, NextPhase: progress.Phase}, nil
		}

		if err := f.save(ctx, progress); err != nil {
			return Outcome{}, err
		}
	}

	progress.Phase = domain.PhaseFinish
	if err := f.save(ctx, progress); err != nil {
		return Outcome{}, err
	}

	return Outcome{Completed: true, NextPhase: domain.PhaseFinish}, nil
}

// finish runs Finish of every required action. All actions are attempted and
// their errors are joined.
func (f *Flow) finish(ctx context.Context, progress *domain.Progress) (Outcome, error) {
	var errs []error

	for i, stage := range f.plan {
		stageCtx := logger.WithKV(ctx, "stage", stage.Name)

		for _, a := range stage.Actions {
			if !a.IsRequired(stageCtx) {
				continue
			}

			f.notify(progress.Phase, i, stage.Name, a.Name())
			logger.InfoKV(stageCtx, "Finishing", "action", a.Name())

			if err := a.Finish(stageCtx); err != nil {
				logger.ErrorKV(stageCtx, "Finish failed", "action", a.Name(), "error", err)
				errs = append(errs, fmt.Errorf("finish %q: %w", a.Name(), err))

				if progress.Failed == "" {
					progress.Failed = a.Name()
				}
			}
		}
	}

	return f.complete(ctx, progress, errs, progress.PendingFinalReboot)
}

// revert runs Revert in reverse order for completed actions and for the one
// interrupted mid-way. All actions are attempted and their errors are joined.
func (f *Flow) revert(ctx context.Context, progress *domain.Progress) (Outcome, error) {
	var errs []error

	for i, stage := range slices.Backward(f.plan) {
		stageCtx := logger.WithKV(ctx, "stage", stage.Name)

		for _, a := range slices.Backward(stage.Actions) {
			if !progress.Touched(a.Name()) {
				continue
			}

			f.notify(progress.Phase, i, stage.Name, a.Name())
			logger.InfoKV(stageCtx, "Reverting", "action", a.Name())

			if err := a.Revert(stageCtx); err != nil {
				logger.ErrorKV(stageCtx, "Revert failed", "action", a.Name(), "error", err)
				errs = append(errs, fmt.Errorf("revert %q: %w", a.Name(), err))

				if progress.Failed == "" {
					progress.Failed = a.Name()
				}
			}
		}
	}

	return f.complete(ctx, progress, errs, false)
}

// complete records the result of a finish or revert pass.
func (f *Flow) complete(ctx context.Context, progress *domain.Progress, errs []error, reboot bool) (Outcome, error) {
	err := errors.Join(errs...)
	if err != nil {
		progress.Error = err.Error()
	}

	if saveErr := f.save(ctx, progress); saveErr != nil {
		err = errors.Join(err, saveErr)
	}

	if err != nil {
		return Outcome{NextPhase: progress.Phase}, err
	}

	return Outcome{Completed: true, Reboot: reboot, NextPhase: progress.Phase}, nil
}

func (f *Flow) notify(phase domain.Phase, index int, stage, action string) {
	if f.observer == nil {
		return
	}

	f.observer(Event{
		Phase:      phase,
		StageIndex: index,
		StageCount: len(f.plan),
		Stage:      stage,
		Action:     action,
	})
}

func (f *Flow) save(ctx context.Context, progress *domain.Progress) error {
	progress.UpdatedAt = f.now()

	if err := f.store.Save(ctx, progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	return nil
}
