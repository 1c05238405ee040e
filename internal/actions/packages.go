package actions

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/logger"
	"github.com/plesk/debian11to12/internal/system"
)

// aptOptions keep existing configuration files during upgrades.
//
//nolint:gochecknoglobals // Constant argument list shared by apt calls.
var aptOptions = []string{
	"-o", "Dpkg::Options::=--force-confdef",
	"-o", "Dpkg::Options::=--force-confold",
	"-y",
}

// apt runs apt-get with the shared non-interactive options.
func apt(ctx context.Context, runner system.Runner, args ...string) error {
	if _, err := runner.Run(ctx, "apt-get", append(slices.Clone(aptOptions), args...)...); err != nil {
		return fmt.Errorf("apt-get %s: %w", args[0], err)
	}

	return nil
}

// UpgradePackages brings the current release fully up to date before switching releases.
type UpgradePackages struct {
	action.Base

	runner system.Runner
}

// NewUpgradePackages creates the action.
func NewUpgradePackages(runner system.Runner) *UpgradePackages {
	return &UpgradePackages{
		Base:   action.Base{ActionName: "upgrade packages", Estimate: 3 * time.Minute},
		runner: runner,
	}
}

// Prepare refreshes indexes and upgrades installed packages.
func (a *UpgradePackages) Prepare(ctx context.Context) error {
	if err := apt(ctx, a.runner, "update"); err != nil {
		return err
	}

	return apt(ctx, a.runner, "upgrade")
}

// InstallPackages installs packages from the new release ahead of the full dist-upgrade.
type InstallPackages struct {
	action.Base

	runner   system.Runner
	packages []string
}

// NewInstallPackages creates the action for the given package names.
func NewInstallPackages(runner system.Runner, packages []string) *InstallPackages {
	return &InstallPackages{
		Base:     action.Base{ActionName: "install packages", Estimate: 5 * time.Minute},
		runner:   runner,
		packages: slices.Clone(packages),
	}
}

// IsRequired reports whether there is anything to install.
func (a *InstallPackages) IsRequired(context.Context) bool {
	return len(a.packages) > 0
}

// Prepare refreshes indexes and installs the packages.
func (a *InstallPackages) Prepare(ctx context.Context) error {
	if err := apt(ctx, a.runner, "update"); err != nil {
		return err
	}

	return apt(ctx, a.runner, append([]string{"install"}, a.packages...)...)
}

// DoDistupgrade performs the release upgrade itself.
type DoDistupgrade struct {
	action.Base

	runner system.Runner
}

// NewDoDistupgrade creates the action.
func NewDoDistupgrade(runner system.Runner) *DoDistupgrade {
	return &DoDistupgrade{
		Base:   action.Base{ActionName: "do dist-upgrade", Estimate: 15 * time.Minute},
		runner: runner,
	}
}

// Prepare runs dist-upgrade and removes packages the new release no longer needs.
func (a *DoDistupgrade) Prepare(ctx context.Context) error {
	for _, step := range []string{"update", "dist-upgrade", "autoremove"} {
		if err := apt(ctx, a.runner, step); err != nil {
			return err
		}
	}

	return nil
}

// UpdatePlesk runs the Plesk installer to bring Plesk components to the
// packages of the current repositories.
type UpdatePlesk struct {
	action.Base

	runner system.Runner
	args   []string
}

// NewUpdatePlesk creates the action; extra arguments are passed to the installer.
func NewUpdatePlesk(runner system.Runner, args ...string) *UpdatePlesk {
	name := "update Plesk"
	if len(args) > 0 {
		name += " (" + strings.Join(args, " ") + ")"
	}

	return &UpdatePlesk{
		Base:   action.Base{ActionName: name, Estimate: 5 * time.Minute},
		runner: runner,
		args:   slices.Clone(args),
	}
}

// Prepare runs the installer.
func (a *UpdatePlesk) Prepare(ctx context.Context) error {
	args := append([]string{"installer", "update"}, a.args...)
	if _, err := a.runner.Run(ctx, "plesk", args...); err != nil {
		return fmt.Errorf("plesk installer update: %w", err)
	}

	return nil
}

// RepairPleskInstallation repairs Plesk after the system was converted.
// It only acts in the finish phase.
type RepairPleskInstallation struct {
	action.Base

	runner system.Runner
}

// NewRepairPleskInstallation creates the action.
func NewRepairPleskInstallation(runner system.Runner) *RepairPleskInstallation {
	return &RepairPleskInstallation{
		Base:   action.Base{ActionName: "repair Plesk installation"},
		runner: runner,
	}
}

// Finish runs plesk repair.
func (a *RepairPleskInstallation) Finish(ctx context.Context) error {
	if _, err := a.runner.Run(ctx, "plesk", "repair", "installation", "-y"); err != nil {
		return fmt.Errorf("plesk repair installation: %w", err)
	}

	return nil
}

// UpdatePleskExtensions upgrades installed extensions that ship builds per OS release.
type UpdatePleskExtensions struct {
	action.Base

	runner     system.Runner
	extensions []string
}

// NewUpdatePleskExtensions creates the action for the given extension IDs.
func NewUpdatePleskExtensions(runner system.Runner, extensions []string) *UpdatePleskExtensions {
	return &UpdatePleskExtensions{
		Base:       action.Base{ActionName: "update Plesk extensions", Estimate: 3 * time.Minute},
		runner:     runner,
		extensions: slices.Clone(extensions),
	}
}

// Prepare upgrades the listed extensions that are installed.
func (a *UpdatePleskExtensions) Prepare(ctx context.Context) error {
	output, err := a.runner.Run(ctx, "plesk", "bin", "extension", "--list")
	if err != nil {
		return fmt.Errorf("list extensions: %w", err)
	}

	installed := parseExtensionList(output)

	for _, extension := range a.extensions {
		if _, ok := installed[extension]; !ok {
			logger.DebugKV(ctx, "Extension is not installed, skipping", "extension", extension)
			continue
		}

		logger.InfoKV(ctx, "Upgrading extension", "extension", extension)

		if _, err = a.runner.Run(ctx, "plesk", "bin", "extension", "--upgrade", extension); err != nil {
			return fmt.Errorf("upgrade extension %s: %w", extension, err)
		}
	}

	return nil
}

// parseExtensionList extracts extension IDs from `plesk bin extension --list`,
// whose lines start with the ID followed by the display name.
func parseExtensionList(output []byte) map[string]struct{} {
	result := make(map[string]struct{})

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		result[fields[0]] = struct{}{}
	}

	return result
}
