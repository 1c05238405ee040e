package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	api "github.com/plesk/debian11to12/internal/api/grpc/progress"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/logger"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
)

// Options controls the monitor polling behavior.
type Options struct {
	// SocketPath is the progress API socket of the running upgrade.
	SocketPath string
	// Repository reads the progress file when the API is unreachable,
	// e.g. while the host reboots between stages.
	Repository repository.Repository
	// PollInterval defines the interval between progress checks.
	PollInterval time.Duration
	// Timeout specifies the per-RPC timeout duration.
	Timeout time.Duration
	// Output receives the progress bar; defaults to stderr.
	Output io.Writer
}

// DefaultPollInterval defines the polling interval for progress checks.
const DefaultPollInterval = 2 * time.Second

var (
	// ErrNoUpgrade is returned when there is nothing to monitor.
	ErrNoUpgrade = errors.New("no upgrade in progress")
	// ErrUpgradeFailed is returned when the monitored upgrade stopped on an error.
	ErrUpgradeFailed = errors.New("upgrade failed")

	errRepositoryRequired = errors.New("progress repository must be provided")
)

// status is one observation of the upgrade.
type status struct {
	// snapshot is the observed state.
	snapshot api.Snapshot
	// live is set when the observation came from the API.
	live bool
	// serving is the health of the progress service while live.
	serving bool
}

// Run polls the upgrade progress until the flow stops or the context ends.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "monitor")

	if opts.Repository == nil {
		return errRepositoryRequired
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	var client *api.Client

	if opts.SocketPath != "" {
		var err error

		client, err = api.Dial(ctx, opts.SocketPath, api.WithCallTimeout(opts.Timeout))
		if err != nil {
			return fmt.Errorf("dial progress socket: %w", err)
		}

		defer func() {
			_ = client.Close()
		}()
	}

	current, err := observe(ctx, client, opts.Repository)
	if err != nil {
		return err
	}

	bar := newBar(output, current.snapshot)

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		render(bar, current.snapshot)

		if done, err := finished(current); done {
			_ = bar.Finish()

			return err
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
		}

		next, err := observe(ctx, client, opts.Repository)
		switch {
		case errors.Is(err, ErrNoUpgrade):
			// The state is removed once the upgrade completed.
			_ = bar.Finish()
			logger.Info(ctx, "Upgrade completed")

			return nil
		case err != nil:
			logger.ErrorKV(ctx, "Read progress failed", "error", err)
		default:
			current = next
		}
	}
}

// observe reads the live state, falling back to the progress file.
func observe(ctx context.Context, client *api.Client, repo repository.Repository) (status, error) {
	if client != nil {
		snapshot, err := client.GetProgress(ctx)
		if err == nil {
			serving, healthErr := client.Serving(ctx)
			if healthErr != nil {
				logger.DebugKV(ctx, "Health check failed", "error", healthErr)

				serving = snapshot.Running
			}

			return status{snapshot: snapshot, live: true, serving: serving}, nil
		}

		logger.DebugKV(ctx, "Progress API unavailable, reading progress file", "error", err)
	}

	progress, err := repo.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return status{}, ErrNoUpgrade
	}

	if err != nil {
		return status{}, fmt.Errorf("load progress: %w", err)
	}

	return status{snapshot: api.Snapshot{Progress: progress}}, nil
}

// finished reports whether monitoring should stop and with which result.
func finished(current status) (bool, error) {
	progress := current.snapshot.Progress
	if progress != nil && progress.HasFailed() {
		return true, fmt.Errorf("%w at %q: %s", ErrUpgradeFailed, progress.Failed, progress.Error)
	}

	// A stopped flow that has not failed either completed or waits for a reboot.
	if current.live && (!current.serving || !current.snapshot.Running) {
		return true, nil
	}

	return false, nil
}

func newBar(output io.Writer, snapshot api.Snapshot) *progressbar.ProgressBar {
	total := max(snapshot.Event.StageCount, 1)

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(output),
		progressbar.OptionSetDescription("waiting for the upgrade"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(output)
		}),
	)
}

// render moves the bar to the current stage.
func render(bar *progressbar.ProgressBar, snapshot api.Snapshot) {
	event := snapshot.Event

	if event.StageCount > 0 && bar.GetMax() != event.StageCount {
		bar.ChangeMax(event.StageCount)
	}

	bar.Describe(describe(snapshot))

	position := event.StageIndex
	if snapshot.Progress != nil && snapshot.Progress.Phase == domain.PhaseConvert {
		position = max(position, snapshot.Progress.NextStage)
	}

	_ = bar.Set(min(position, bar.GetMax()))
}

// describe renders the current step.
func describe(snapshot api.Snapshot) string {
	event := snapshot.Event

	switch {
	case event.Action != "":
		return fmt.Sprintf("[%s] %s: %s", event.Phase, event.Stage, event.Action)
	case snapshot.Progress != nil:
		return fmt.Sprintf("[%s] waiting for stage %d", snapshot.Progress.Phase, snapshot.Progress.NextStage+1)
	default:
		return "waiting for the upgrade"
	}
}
