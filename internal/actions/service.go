package actions

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/logger"
	"github.com/plesk/debian11to12/internal/system"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// DefaultFileMode is the mode of the installed upgrader binary.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction verifies the installed binary.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512
)

var errHashUnavailable = errors.New("hash function unavailable")

// unitTemplate is the resume unit. ExecStart is rendered shell-quoted.
const unitTemplate = `[Unit]
Description=Resume the Plesk dist-upgrade after reboot
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
TimeoutStartSec=0

[Install]
WantedBy=multi-user.target
`

// fileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func fileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return checksum(contents)
}

func checksum(contents []byte) ([]byte, error) {
	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err := hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// AddUpgradeSystemdService installs the upgrader to a stable path and registers
// a systemd unit that resumes the upgrade after every reboot.
type AddUpgradeSystemdService struct {
	action.Base

	runner      system.Runner
	binPath     string
	installPath string
	unitPath    string
	args        []string
}

// NewAddUpgradeSystemdService creates the action. binPath is the running upgrader,
// args are the options the resumed run needs.
func NewAddUpgradeSystemdService(
	runner system.Runner,
	binPath, installPath, unitPath string,
	args []string,
) *AddUpgradeSystemdService {
	return &AddUpgradeSystemdService{
		Base:        action.Base{ActionName: "add upgrade systemd service"},
		runner:      runner,
		binPath:     binPath,
		installPath: installPath,
		unitPath:    unitPath,
		args:        slices.Clone(args),
	}
}

// unitName is the systemd unit name derived from the unit file.
func (a *AddUpgradeSystemdService) unitName() string {
	return filepath.Base(a.unitPath)
}

// Prepare installs the binary, writes the unit and enables it.
func (a *AddUpgradeSystemdService) Prepare(ctx context.Context) error {
	if err := a.installBinary(ctx); err != nil {
		return err
	}

	execStart, err := system.QuoteArgs(append([]string{a.installPath, "--resume"}, a.args...)...)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(a.unitPath), 0o755); err != nil {
		return fmt.Errorf("create unit directory: %w", err)
	}

	//nolint:gosec // Unit files must be world-readable for systemd.
	if err = os.WriteFile(a.unitPath, fmt.Appendf(nil, unitTemplate, execStart), 0o644); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}

	if _, err = a.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("reload systemd: %w", err)
	}

	if _, err = a.runner.Run(ctx, "systemctl", "enable", a.unitName()); err != nil {
		return fmt.Errorf("enable %s: %w", a.unitName(), err)
	}

	logger.InfoKV(ctx, "Resume service registered", "unit", a.unitName(), "exec_start", execStart)

	return nil
}

// Finish removes the service once the upgrade is over.
func (a *AddUpgradeSystemdService) Finish(ctx context.Context) error {
	return a.remove(ctx)
}

// Revert removes the service.
func (a *AddUpgradeSystemdService) Revert(ctx context.Context) error {
	return a.remove(ctx)
}

// installedMarker records that installPath holds a copy made by this action.
func (a *AddUpgradeSystemdService) installedMarker() string {
	return a.installPath + ".distupgrade-installed"
}

// installBinary copies the running upgrader to installPath atomically and
// verifies the result against the source checksum.
func (a *AddUpgradeSystemdService) installBinary(ctx context.Context) error {
	source, err := filepath.Abs(a.binPath)
	if err != nil {
		return fmt.Errorf("resolve upgrader path: %w", err)
	}

	target, err := filepath.Abs(a.installPath)
	if err != nil {
		return fmt.Errorf("resolve install path: %w", err)
	}

	if source == target {
		logger.Debug(ctx, "Upgrader already runs from the install path")
		return nil
	}

	data, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("read upgrader binary: %w", err)
	}

	sum, err := checksum(data)
	if err != nil {
		return err
	}

	// An identical copy is kept as it is, including whether this action owns it.
	if current, err := fileChecksum(target); err == nil && bytes.Equal(current, sum) {
		logger.DebugKV(ctx, "Installed upgrader is up to date", "path", target)
		return nil
	}

	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create install directory: %w", err)
	}

	// go-update moves the old target aside first, so it must exist.
	if !exists(target) {
		file, err := os.Create(filepath.Clean(target))
		if err != nil {
			return fmt.Errorf("create install target: %w", err)
		}

		_ = file.Close()
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
		Checksum:   sum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("install upgrader binary: %w", err)
	}

	if err = os.WriteFile(a.installedMarker(), []byte(source+"\n"), 0o600); err != nil {
		return fmt.Errorf("write install marker: %w", err)
	}

	logger.InfoKV(ctx, "Upgrader installed", "path", target)

	return nil
}

// remove disables and deletes the unit and the installed binary.
func (a *AddUpgradeSystemdService) remove(ctx context.Context) error {
	var errs []error

	if exists(a.unitPath) {
		if _, err := a.runner.Run(ctx, "systemctl", "disable", a.unitName()); err != nil {
			errs = append(errs, fmt.Errorf("disable %s: %w", a.unitName(), err))
		}
	}

	errs = append(errs, removeIfExists(a.unitPath))

	if _, err := a.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		errs = append(errs, fmt.Errorf("reload systemd: %w", err))
	}

	// Only a copy this action installed is removed; the resumed run executes
	// from installPath, which is fine to unlink on Linux.
	if exists(a.installedMarker()) {
		errs = append(errs, removeIfExists(a.installPath), removeIfExists(a.installedMarker()))
	}

	return errors.Join(errs...)
}
