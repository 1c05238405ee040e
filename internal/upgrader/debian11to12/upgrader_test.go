package debian11to12

import (
	"context"
	"strings"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/actions"
	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/registry"
)

// nopRunner succeeds without running anything.
type nopRunner struct{}

func (nopRunner) Run(context.Context, string, ...string) ([]byte, error) { return nil, nil }

func testOptions() registry.Options {
	return registry.Options{
		BinPath:    "/tmp/debian11to12",
		ResumeArgs: []string{"--config", config.DefaultConfigFilename},
		Config:     config.Default(),
		Runner:     nopRunner{},
		Paths:      actions.DefaultPaths(),
		Processes:  func() ([]ps.Process, error) { return nil, nil },
	}
}

// TestSupports matches Debian 11 to Debian 12 with wildcard descriptions.
func TestSupports(t *testing.T) {
	t.Parallel()

	factory := NewFactory()

	tests := []struct {
		name string
		from domain.SystemDescription
		to   domain.SystemDescription
		want bool
	}{
		{name: "exact", from: From, to: To, want: true},
		{name: "any target", from: From, want: true},
		{name: "any source", to: To, want: true},
		{name: "name only", from: domain.SystemDescription{OSName: "Debian"}, want: true},
		{name: "wrong source", from: domain.SystemDescription{OSName: "Debian", OSVersion: "10"}, want: false},
		{name: "wrong target", from: From, to: domain.SystemDescription{OSName: "Ubuntu"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, factory.Supports(tt.from, tt.to))
			require.Equal(t, tt.want, factory.Create().Supports(tt.from, tt.to))
		})
	}
}

// TestConstructActions checks the stage layout and that the plan is valid.
func TestConstructActions(t *testing.T) {
	t.Parallel()

	u := NewFactory().Create()
	require.Equal(t, Name, u.Name())
	require.Equal(t, IssuesURL, u.IssuesURL())
	require.Contains(t, u.Description(), "Debian 11 server with Plesk to Debian 12")

	plan, err := u.ConstructActions(testOptions(), domain.PhaseConvert)
	require.NoError(t, err)
	require.NoError(t, plan.Validate())

	stages := make([]string, 0, len(plan))
	for _, stage := range plan {
		stages = append(stages, stage.Name)
	}

	require.Equal(t, []string{
		"Prepare",
		"Switch repositories",
		"Pre-install packages",
		"Reboot",
		"Update Plesk",
		"Update Plesk extensions",
		"Dist-upgrade",
		"Finishing actions",
	}, stages)

	require.Len(t, plan[0].Actions, 9)
	require.Equal(t, "update Plesk (--skip-cleanup)", plan[4].Actions[0].Name())

	last := plan[len(plan)-1].Actions
	require.Len(t, last, 2)

	rebooter, ok := last[0].(action.Rebooter)
	require.True(t, ok)
	require.Equal(t, domain.RebootAfterCurrentStage, rebooter.RebootAfter())

	phase, changes := rebooter.NextPhase()
	require.True(t, changes)
	require.Equal(t, domain.PhaseFinish, phase)

	final, ok := last[1].(action.Rebooter)
	require.True(t, ok)
	require.Equal(t, domain.RebootAfterLastStage, final.RebootAfter())
}

// TestConstructActions_RequiresDependencies rejects incomplete options.
func TestConstructActions_RequiresDependencies(t *testing.T) {
	t.Parallel()

	u := &Upgrader{}

	opts := testOptions()
	opts.Config = nil
	_, err := u.ConstructActions(opts, domain.PhaseConvert)
	require.ErrorIs(t, err, errConfigRequired)

	opts = testOptions()
	opts.Runner = nil
	_, err = u.ConstructActions(opts, domain.PhaseConvert)
	require.ErrorIs(t, err, errRunnerRequired)
}

// TestCheckActions returns preconditions for convert and none for finish.
func TestCheckActions(t *testing.T) {
	t.Parallel()

	u := &Upgrader{}

	require.Empty(t, u.CheckActions(testOptions(), domain.PhaseFinish))

	checks := u.CheckActions(testOptions(), domain.PhaseConvert)
	require.Len(t, checks, 6)

	for _, check := range checks {
		require.NotEmpty(t, check.Name())
		require.NotEmpty(t, check.Description())
	}
}

// TestPrepareFeedback registers the package and Plesk diagnostics.
func TestPrepareFeedback(t *testing.T) {
	t.Parallel()

	var feedback domain.Feedback

	(&Upgrader{}).PrepareFeedback(&feedback)

	names := make([]string, 0, len(feedback.Commands))
	for _, command := range feedback.Commands {
		names = append(names, strings.TrimSuffix(command.Name, ".txt"))
	}

	require.Equal(t, []string{
		"installed_packages_apt",
		"installed_packages_dpkg",
		"apt_policy",
		"plesk_version",
	}, names)
}
