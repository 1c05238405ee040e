package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRootFlags exposes every run option on the command line.
func TestRootFlags(t *testing.T) {
	t.Parallel()

	flags := rootCmd.Flags()

	for _, name := range []string{
		"config", "show-plan", "status", "monitor", "prepare-feedback", "feedback-dir",
		"revert", "resume", "no-reboot", "no-checks", "log-file", "state-dir", "verbose",
	} {
		require.NotNil(t, flags.Lookup(name), "flag %q", name)
	}

	require.Equal(t, "", flags.Lookup("feedback-dir").DefValue)
	require.Equal(t, "r", flags.Lookup("revert").Shorthand)

	require.NoError(t, flags.Parse([]string{"--feedback-dir", "/tmp/feedback", "--no-reboot"}))
	require.Equal(t, "/tmp/feedback", options.FeedbackDir)
	require.True(t, options.NoReboot)
}
