package distupgrade

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
	"github.com/plesk/debian11to12/internal/service/monitor"
)

// status prints the recorded progress of the current upgrade.
func (e *Engine) status(ctx context.Context, cfg *config.Config, repo repository.Repository) error {
	progress, err := loadProgress(ctx, repo)
	if err != nil {
		return err
	}

	if progress == nil {
		printNoUpgrade(e.Output, cfg)
		return nil
	}

	printProgress(e.Output, progress)

	return nil
}

func printNoUpgrade(out io.Writer, cfg *config.Config) {
	completed, err := os.ReadFile(filepath.Clean(cfg.CompletionFlagPath))
	if err == nil {
		_, _ = fmt.Fprintf(out, "No upgrade in progress. The last conversion completed at %s.\n",
			strings.TrimSpace(string(completed)))

		return
	}

	_, _ = fmt.Fprintln(out, "No upgrade in progress.")
}

func printProgress(out io.Writer, progress *domain.Progress) {
	_, _ = fmt.Fprintf(out, "Upgrade session: %s\n", progress.SessionID)
	_, _ = fmt.Fprintf(out, "Upgrader: %s\n", progress.Upgrader)
	_, _ = fmt.Fprintf(out, "Phase: %s\n", progress.Phase)

	if progress.Phase == domain.PhaseConvert {
		_, _ = fmt.Fprintf(out, "Next stage: %d\n", progress.NextStage+1)
	}

	_, _ = fmt.Fprintf(out, "Completed actions: %d\n", len(progress.Done))

	if progress.PendingFinalReboot {
		_, _ = fmt.Fprintln(out, "A final reboot is pending.")
	}

	if progress.HasFailed() {
		_, _ = fmt.Fprintf(out, "Failed action: %s\nError: %s\n", progress.Failed, progress.Error)
	}

	_, _ = fmt.Fprintf(out, "Started: %s\nUpdated: %s\n",
		progress.StartedAt.Local().Format(time.DateTime), progress.UpdatedAt.Local().Format(time.DateTime))
}

// monitor follows the running upgrade.
func (e *Engine) monitor(ctx context.Context, cfg *config.Config, repo repository.Repository) error {
	return monitor.Run(ctx, &monitor.Options{
		SocketPath: cfg.ProgressSocket,
		Repository: repo,
		Output:     e.Output,
	})
}
