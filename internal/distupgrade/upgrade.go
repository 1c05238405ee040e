package distupgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/plesk/debian11to12/internal/action"
	api "github.com/plesk/debian11to12/internal/api/grpc/progress"
	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/logger"
	"github.com/plesk/debian11to12/internal/registry"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
)

var (
	errRebootUnavailable = errors.New("reboot is not configured")
	errAlreadyConverted  = errors.New("the system is already converted and cannot be reverted")
)

// trackingStore saves progress to the repository and publishes it to the API.
type trackingStore struct {
	repo    repository.Repository
	tracker *api.Tracker
}

// Save implements action.Store.
func (s *trackingStore) Save(ctx context.Context, progress *domain.Progress) error {
	if err := s.repo.Save(ctx, progress); err != nil {
		return err
	}

	s.tracker.SetProgress(progress)

	return nil
}

// upgrade runs the convert, finish or revert phase recorded in the state,
// starting a new conversion when there is none.
//
//nolint:cyclop,funlen // Phase transitions read best in one place.
func (e *Engine) upgrade(
	ctx context.Context,
	cfg *config.Config,
	opts *Options,
	selected mode,
	repo repository.Repository,
) error {
	release, err := acquireMarker(ctx, cfg.MarkerFile(), e.FindProcess)
	if err != nil {
		return err
	}

	defer release()

	progress, err := loadProgress(ctx, repo)
	if err != nil {
		return err
	}

	fresh := progress == nil

	switch {
	case fresh && selected == modeResume:
		logger.Info(ctx, "No upgrade to resume")
		return nil
	case fresh && selected == modeRevert:
		return errNothingToRevert
	case !fresh && selected == modeConvert:
		logger.InfoKV(ctx, "Continuing the recorded upgrade", "phase", progress.Phase, "next_stage", progress.NextStage)
	}

	upgrader, err := e.selectUpgrader(ctx, progress)
	if err != nil {
		return err
	}

	if fresh {
		progress = domain.NewProgress(e.NewSessionID(), upgrader.Name(), e.Now())
	}

	if selected == modeRevert {
		if progress.Phase == domain.PhaseFinish {
			return errAlreadyConverted
		}

		progress.Phase = domain.PhaseRevert
	}

	progress.ClearFailure()

	ctx = logger.WithFields(ctx, "session", progress.SessionID, "upgrader", upgrader.Name())
	logger.InfoKV(ctx, "Upgrader started", "version", upgrader.Version(), "phase", progress.Phase)

	upgraderOpts, err := e.upgraderOptions(cfg, opts)
	if err != nil {
		return err
	}

	if fresh && !opts.NoChecks {
		if err = e.runChecks(ctx, upgrader, upgraderOpts, progress.Phase); err != nil {
			return err
		}
	}

	plan, err := upgrader.ConstructActions(upgraderOpts, progress.Phase)
	if err != nil {
		return fmt.Errorf("construct actions: %w", err)
	}

	tracker := api.NewTracker()
	store := &trackingStore{repo: repo, tracker: tracker}

	listener, err := api.Listen(ctx, cfg.ProgressSocket, tracker)
	if err != nil {
		logger.WarnKV(ctx, "Progress API is unavailable", "error", err)
	} else {
		defer func() {
			if err := listener.Stop(); err != nil {
				logger.WarnKV(ctx, "Stop progress API", "error", err)
			}
		}()
	}

	defer tracker.Stop()

	flow, err := action.NewFlow(plan, store, action.WithObserver(tracker.Observe), action.WithClock(e.Now))
	if err != nil {
		return err
	}

	if err = store.Save(ctx, progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	for {
		phase := progress.Phase

		outcome, err := flow.Run(ctx, progress)
		if err != nil {
			return failure(ctx, upgrader, phase, err)
		}

		switch {
		case phase == domain.PhaseConvert && outcome.Completed:
			// No reboot was requested: finish right away.
			logger.Info(ctx, "Conversion completed, performing finishing actions")

			continue
		case phase == domain.PhaseConvert:
			return e.reboot(ctx, cfg, opts, "Reboot requested to continue the upgrade")
		}

		if err = repo.Remove(ctx); err != nil {
			return fmt.Errorf("clean up progress: %w", err)
		}

		if phase == domain.PhaseRevert {
			logger.Info(ctx, "Revert completed")
			return nil
		}

		logger.Info(ctx, "Upgrade completed")

		if outcome.Reboot {
			return e.reboot(ctx, cfg, opts, "Final reboot")
		}

		return nil
	}
}

// runChecks evaluates the preconditions and reports every failed one.
func (e *Engine) runChecks(
	ctx context.Context,
	upgrader registry.Upgrader,
	opts registry.Options,
	phase domain.Phase,
) error {
	failed := action.RunChecks(ctx, upgrader.CheckActions(opts, phase))
	if len(failed) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(e.Output, "The conversion cannot be started:")

	for _, check := range failed {
		_, _ = fmt.Fprintf(e.Output, "\n%s\n", check)
	}

	return fmt.Errorf("%d failed: %w", len(failed), ErrChecksFailed)
}

// failure logs what the user can do next and wraps the flow error.
func failure(ctx context.Context, upgrader registry.Upgrader, phase domain.Phase, err error) error {
	switch phase {
	case domain.PhaseConvert:
		logger.ErrorKV(ctx, "The upgrade failed. Fix the problem and run again with --resume, "+
			"or roll the changes back with --revert", "error", err)
	case domain.PhaseFinish, domain.PhaseRevert:
		logger.ErrorKV(ctx, "Some actions failed; see the log for details", "phase", phase, "error", err)
	}

	logger.InfoKV(ctx, "Collect diagnostics with --prepare-feedback and report the problem", "url", upgrader.IssuesURL())

	return fmt.Errorf("%s phase: %w", phase, err)
}

// reboot restarts the host unless the user asked not to.
func (e *Engine) reboot(ctx context.Context, cfg *config.Config, opts *Options, reason string) error {
	if opts.NoReboot {
		logger.InfoKV(ctx, reason+". Reboot the server to continue", "reboot", "skipped")
		return nil
	}

	logger.Info(ctx, reason)

	if e.Reboot == nil {
		return errRebootUnavailable
	}

	return e.Reboot(ctx, e.runner(cfg))
}
