package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plesk/debian11to12/internal/config"
	"github.com/plesk/debian11to12/internal/distupgrade"
	"github.com/plesk/debian11to12/internal/upgrader/debian11to12"
	"github.com/plesk/debian11to12/internal/version"
)

var (
	// options collects the flag values.
	options distupgrade.Options

	// rootCmd represents the base command running the dist-upgrade.
	rootCmd = &cobra.Command{
		Use:   "debian11to12",
		Short: "Dist-upgrade a Debian 11 server with Plesk to Debian 12.",
		Long:  new(debian11to12.Upgrader).Description(),
		Args:  cobra.NoArgs,
		// Errors are already logged with hints; usage would bury them.
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return distupgrade.Run(ctx, &options)
		},
	}
)

// Execute runs the debian11to12 CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.BoolVar(&options.ShowPlan, "show-plan", false, "show the conversion plan and exit")
	flags.BoolVar(&options.Status, "status", false, "show the state of the current conversion and exit")
	flags.BoolVar(&options.Monitor, "monitor", false, "follow the progress of a running conversion")
	flags.BoolVar(&options.PrepareFeedback, "prepare-feedback", false,
		"collect diagnostics into an archive to attach to an issue")
	flags.StringVar(&options.FeedbackDir, "feedback-dir", "", "directory for the feedback archive (default: working directory)")
	flags.BoolVarP(&options.Revert, "revert", "r", false, "roll back a failed or interrupted conversion")
	flags.BoolVar(&options.Resume, "resume", false, "continue the recorded conversion (used after reboots)")
	flags.BoolVar(&options.NoReboot, "no-reboot", false, "do not reboot automatically, also in resumed runs; reboot manually to continue")
	flags.BoolVar(&options.NoChecks, "no-checks", false, "skip the preconditions of a new conversion")
	flags.StringVar(&options.LogFile, "log-file", "", "override the log file location")
	flags.StringVar(&options.StateDir, "state-dir", "", "override the state directory")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.MarkFlagsMutuallyExclusive("show-plan", "status", "monitor", "prepare-feedback", "revert", "resume")
}
