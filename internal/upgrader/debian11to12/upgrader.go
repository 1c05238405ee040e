package debian11to12

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/actions"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/registry"
	"github.com/plesk/debian11to12/internal/version"
)

const (
	// Name identifies the upgrader in progress files and feedback.
	Name = "Plesk::Debian11to12Upgrader"

	// IssuesURL is where users report problems.
	IssuesURL = "https://github.com/plesk/debian11to12/issues"

	fromCodename = "bullseye"
	toCodename   = "bookworm"
)

//nolint:gochecknoglobals // Release descriptions are fixed for this upgrader.
var (
	// From is the release the upgrader converts.
	From = domain.SystemDescription{OSName: "Debian", OSVersion: "11"}
	// To is the release the upgrader produces.
	To = domain.SystemDescription{OSName: "Debian", OSVersion: "12"}
)

//nolint:gochecknoglobals // Package lists are part of the plan.
var (
	preinstallPackages = []string{"base-files", "linux-image-amd64", "libc6", "python3", "mariadb-server"}
	pleskExtensions    = []string{"panel-migrator", "site-import", "docker", "grafana", "ruby"}
)

var (
	errConfigRequired = errors.New("configuration must be provided")
	errRunnerRequired = errors.New("command runner must be provided")
)

// supports matches optional source and target descriptions against the releases.
func supports(from, to domain.SystemDescription) bool {
	return from.Matches(From.OSName, From.OSVersion) && to.Matches(To.OSName, To.OSVersion)
}

// Upgrader converts Debian 11 with Plesk to Debian 12.
type Upgrader struct{}

var _ registry.Upgrader = (*Upgrader)(nil)

// Name implements registry.Upgrader.
func (u *Upgrader) Name() string {
	return Name
}

// Version implements registry.Upgrader.
func (u *Upgrader) Version() string {
	return version.Revision
}

// IssuesURL implements registry.Upgrader.
func (u *Upgrader) IssuesURL() string {
	return IssuesURL
}

// Supports implements registry.Upgrader.
func (u *Upgrader) Supports(from, to domain.SystemDescription) bool {
	return supports(from, to)
}

// String implements fmt.Stringer.
func (u *Upgrader) String() string {
	return "Debian11to12Upgrader"
}

// Description implements registry.Upgrader.
func (u *Upgrader) Description() string {
	return fmt.Sprintf(`Use this upgrader to dist-upgrade an %[1]s server with Plesk to %[2]s. The process consists of the following general stages:

-- Preparation (about 5 minutes) - The OS is prepared for the conversion.
-- Conversion (about 15 minutes) - Plesk and system dist-upgrade is performed.
-- Finalization (about 5 minutes) - The server is returned to normal operation.

The system will be rebooted after each of the stages, so reboot times
should be added to get the total time estimate.

To see the detailed plan, run the utility with the --show-plan option.

For assistance, submit an issue here %[3]s
and attach the feedback archive generated with --prepare-feedback or at least the log file.
`, From, To, IssuesURL)
}

// ConstructActions implements registry.Upgrader. The plan is the same for
// every phase so progress recorded in one phase maps onto the next.
func (u *Upgrader) ConstructActions(opts registry.Options, _ domain.Phase) (action.Plan, error) {
	if opts.Config == nil {
		return nil, errConfigRequired
	}

	if opts.Runner == nil {
		return nil, errRunnerRequired
	}

	binPath, err := filepath.Abs(opts.BinPath)
	if err != nil {
		return nil, fmt.Errorf("resolve upgrader path: %w", err)
	}

	var (
		cfg    = opts.Config
		runner = opts.Runner
		newOS  = To.String()
	)

	plan := action.Plan{
		{
			Name: "Prepare",
			Actions: []action.Action{
				actions.NewHandleConversionStatus(cfg.StatusFlagPath, cfg.CompletionFlagPath),
				// Acts in the finish phase only.
				actions.NewAddFinishSSHLoginMessage(cfg.MotdPath, newOS),
				actions.NewAddInProgressSSHLoginMessage(cfg.MotdPath, newOS, cfg.LogFile),
				actions.NewDisablePleskSSHBanner(opts.Paths.PleskBanner),
				// Acts in the finish phase only.
				actions.NewRepairPleskInstallation(runner),
				actions.NewUpgradePackages(runner),
				actions.NewUpdatePlesk(runner),
				actions.NewAddUpgradeSystemdService(runner, binPath, cfg.InstallPath, cfg.UnitPath, opts.ResumeArgs),
				actions.NewConfigureMariadb(opts.Paths.MariaDBConfig, mariadbChanges()),
			},
		},
		{
			Name: "Switch repositories",
			Actions: []action.Action{
				actions.NewSetupDebianRepositories(opts.Paths, fromCodename, toCodename),
				actions.NewSwitchPleskRepositories(opts.Paths, fromCodename, toCodename, From.OSVersion, To.OSVersion),
			},
		},
		{
			Name: "Pre-install packages",
			Actions: []action.Action{
				actions.NewInstallPackages(runner, preinstallPackages),
			},
		},
		{
			Name: "Reboot",
			Actions: []action.Action{
				actions.NewReboot(),
			},
		},
		{
			Name: "Update Plesk",
			Actions: []action.Action{
				actions.NewUpdatePlesk(runner, "--skip-cleanup"),
			},
		},
		{
			Name: "Update Plesk extensions",
			Actions: []action.Action{
				actions.NewUpdatePleskExtensions(runner, pleskExtensions),
			},
		},
		{
			Name: "Dist-upgrade",
			Actions: []action.Action{
				actions.NewDoDistupgrade(runner),
			},
		},
		{
			Name: "Finishing actions",
			Actions: []action.Action{
				actions.NewReboot(
					actions.WithRebootName("reboot and perform finishing actions"),
					actions.WithNextPhase(domain.PhaseFinish),
				),
				actions.NewReboot(
					actions.WithRebootName("final reboot"),
					actions.WithRebootAfter(domain.RebootAfterLastStage),
				),
			},
		},
	}

	return plan, nil
}

// mariadbChanges keeps MariaDB reachable over IPv4 loopback during the
// upgrade and makes it shut down cleanly before the server binaries change.
func mariadbChanges() map[string]actions.MariaDBChange {
	return map[string]actions.MariaDBChange{
		"mysqld.bind-address": {
			Prepare: actions.ConfigValueReplacer{NewValue: actions.Value("127.0.0.1"), OldValue: actions.Value("::ffff:127.0.0.1")},
			Revert:  actions.ConfigValueReplacer{NewValue: actions.Value("::ffff:127.0.0.1"), OldValue: actions.Value("127.0.0.1")},
		},
		"mysqld.innodb_fast_shutdown": {
			Prepare: actions.ConfigValueReplacer{NewValue: actions.Value("0")},
			Revert:  actions.ConfigValueReplacer{OldValue: actions.Value("0")},
		},
	}
}

// CheckActions implements registry.Upgrader. Nothing is checked once the
// system was converted.
func (u *Upgrader) CheckActions(opts registry.Options, phase domain.Phase) []action.CheckAction {
	if phase == domain.PhaseFinish {
		return nil
	}

	minPlesk, minPHP := "", ""
	if opts.Config != nil {
		minPlesk, minPHP = opts.Config.MinPleskVersion, opts.Config.MinPHPVersion
	}

	return []action.CheckAction{
		actions.NewAssertRoot(),
		actions.NewAssertMinPleskVersion(minPlesk, opts.Paths.PleskVersionFile),
		actions.NewAssertPleskInstallerNotInProgress(opts.Processes),
		actions.NewAssertMinPhpVersion(opts.Runner, minPHP),
		actions.NewAssertDpkgNotLocked(opts.Paths.DpkgLocks, opts.Processes),
		actions.NewAssertNotInContainer(opts.Paths),
	}
}

// PrepareFeedback implements registry.Upgrader.
func (u *Upgrader) PrepareFeedback(feedback *domain.Feedback) {
	feedback.AddCommand("installed_packages_apt.txt", "apt", "list", "--installed")
	feedback.AddCommand("installed_packages_dpkg.txt", "dpkg", "--list")
	feedback.AddCommand("apt_policy.txt", "apt-cache", "policy")
	feedback.AddCommand("plesk_version.txt", "plesk", "version")
}

// Factory creates Upgrader instances for the registry.
type Factory struct{}

var _ registry.Factory = (*Factory)(nil)

// NewFactory creates the factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Name implements registry.Factory.
func (f *Factory) Name() string {
	return Name
}

// Supports implements registry.Factory.
func (f *Factory) Supports(from, to domain.SystemDescription) bool {
	return supports(from, to)
}

// Create implements registry.Factory.
func (f *Factory) Create() registry.Upgrader {
	return &Upgrader{}
}

// String implements fmt.Stringer.
func (f *Factory) String() string {
	return "Debian11to12Factory (creates " + Name + ")"
}
