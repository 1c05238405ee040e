package distupgrade

import (
	"context"
	"fmt"

	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/logger"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
	"github.com/plesk/debian11to12/internal/service/feedback"
)

// prepareFeedback packs the diagnostics of the upgrader into an archive.
// When no upgrader applies, the generic diagnostics are still collected.
func (e *Engine) prepareFeedback(
	ctx context.Context,
	cfg *config.Config,
	opts *Options,
	repo repository.Repository,
) error {
	progress, err := loadProgress(ctx, repo)
	if err != nil {
		logger.WarnKV(ctx, "Progress is unreadable", "error", err)

		progress = nil
	}

	report := &domain.Feedback{}

	upgrader, err := e.selectUpgrader(ctx, progress)
	if err != nil {
		logger.WarnKV(ctx, "No upgrader applies, collecting generic diagnostics", "error", err)
	} else {
		report.Upgrader = upgrader.Name()
		report.Version = upgrader.Version()
		report.IssuesURL = upgrader.IssuesURL()
		upgrader.PrepareFeedback(report)
	}

	report.AddFile(cfg.LogFile)
	report.AddFile(cfg.StateFile())
	report.AddFile(e.OSReleasePath)
	report.AddFile(e.Paths.AptSourcesList)

	dir := opts.FeedbackDir
	if dir == "" {
		dir = "."
	}

	path, err := feedback.Prepare(ctx, &feedback.Options{
		Dir:      dir,
		Feedback: report,
		Runner:   e.runner(cfg),
		Now:      e.Now,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(e.Output, "Feedback archive created: %s\n", path)

	if report.IssuesURL != "" {
		_, _ = fmt.Fprintf(e.Output, "Attach it to an issue at %s\n", report.IssuesURL)
	}

	return nil
}
