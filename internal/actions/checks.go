package actions

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"

	"github.com/plesk/debian11to12/internal/system"
)

// ProcessLister returns the processes running on the host.
type ProcessLister func() ([]ps.Process, error)

var errEmptyVersionFile = errors.New("version file is empty")

// findProcesses returns the executable names of running processes matching names.
func findProcesses(list ProcessLister, names []string) ([]string, error) {
	processes, err := list()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	self := os.Getpid()

	var found []string

	for _, process := range processes {
		if process.Pid() == self {
			continue
		}

		if slices.Contains(names, process.Executable()) {
			found = append(found, fmt.Sprintf("%s (pid %d)", process.Executable(), process.Pid()))
		}
	}

	return found, nil
}

// AssertMinPleskVersion requires a Plesk release the upgrade supports.
type AssertMinPleskVersion struct {
	minVersion  string
	versionFile string
}

// NewAssertMinPleskVersion creates the check.
func NewAssertMinPleskVersion(minVersion, versionFile string) *AssertMinPleskVersion {
	return &AssertMinPleskVersion{
		minVersion:  minVersion,
		versionFile: versionFile,
	}
}

// Name implements action.CheckAction.
func (c *AssertMinPleskVersion) Name() string {
	return "check minimal Plesk version"
}

// Description implements action.CheckAction.
func (c *AssertMinPleskVersion) Description() string {
	return fmt.Sprintf("Plesk is older than %s, the oldest version the upgrade supports.\n"+
		"Update Plesk with `plesk installer update` and run the upgrade again.", c.minVersion)
}

// Do compares the installed version with the minimum.
func (c *AssertMinPleskVersion) Do(context.Context) (bool, error) {
	installed, err := ReadPleskVersion(c.versionFile)
	if err != nil {
		return false, err
	}

	minimum, err := semver.NewVersion(c.minVersion)
	if err != nil {
		return false, fmt.Errorf("parse minimal version: %w", err)
	}

	return !installed.LessThan(minimum), nil
}

// ReadPleskVersion parses the Plesk version file, e.g. "18.0.57 Debian 11.0 1800231130.12".
func ReadPleskVersion(path string) (*semver.Version, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read Plesk version: %w", err)
	}

	fields := strings.Fields(string(contents))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errEmptyVersionFile)
	}

	version, err := semver.NewVersion(fields[0])
	if err != nil {
		return nil, fmt.Errorf("parse Plesk version %q: %w", fields[0], err)
	}

	return version, nil
}

// AssertPleskInstallerNotInProgress refuses to start while the Plesk installer runs.
type AssertPleskInstallerNotInProgress struct {
	processes ProcessLister
}

// NewAssertPleskInstallerNotInProgress creates the check.
func NewAssertPleskInstallerNotInProgress(processes ProcessLister) *AssertPleskInstallerNotInProgress {
	if processes == nil {
		processes = ps.Processes
	}

	return &AssertPleskInstallerNotInProgress{processes: processes}
}

// Name implements action.CheckAction.
func (c *AssertPleskInstallerNotInProgress) Name() string {
	return "check if Plesk installer is in progress"
}

// Description implements action.CheckAction.
func (c *AssertPleskInstallerNotInProgress) Description() string {
	return "The Plesk installer is running. Wait until it finishes and run the upgrade again."
}

// Do looks for installer processes.
func (c *AssertPleskInstallerNotInProgress) Do(context.Context) (bool, error) {
	found, err := findProcesses(c.processes, []string{"autoinstaller", "plesk-installer"})
	if err != nil {
		return false, err
	}

	return len(found) == 0, nil
}

// phpHandlerPackage matches Plesk PHP handler packages, e.g. "plesk-php74".
var phpHandlerPackage = regexp.MustCompile(`^plesk-php(\d)(\d+)$`)

// AssertMinPhpVersion refuses to upgrade while outdated Plesk PHP handlers are installed:
// they have no builds for the new release.
type AssertMinPhpVersion struct {
	runner     system.Runner
	minVersion string
	outdated   []string
}

// NewAssertMinPhpVersion creates the check.
func NewAssertMinPhpVersion(runner system.Runner, minVersion string) *AssertMinPhpVersion {
	return &AssertMinPhpVersion{
		runner:     runner,
		minVersion: minVersion,
	}
}

// Name implements action.CheckAction.
func (c *AssertMinPhpVersion) Name() string {
	return "check for outdated PHP versions"
}

// Description implements action.CheckAction.
func (c *AssertMinPhpVersion) Description() string {
	return fmt.Sprintf("Outdated PHP handlers are installed: %s.\n"+
		"Remove PHP versions older than %s with the Plesk installer, switch the domains using them "+
		"to a newer version and run the upgrade again.", strings.Join(c.outdated, ", "), c.minVersion)
}

// Do lists installed handlers and compares them with the minimum.
func (c *AssertMinPhpVersion) Do(ctx context.Context) (bool, error) {
	minimum, err := semver.NewVersion(c.minVersion)
	if err != nil {
		return false, fmt.Errorf("parse minimal PHP version: %w", err)
	}

	output, err := c.runner.Run(ctx, "dpkg-query", "-W", "-f=${Package} ${db:Status-Status}\n", "plesk-php*")
	if err != nil && len(output) == 0 {
		// dpkg-query fails when nothing matches the pattern.
		return true, nil
	}

	c.outdated = c.outdated[:0]

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[1] != "installed" {
			continue
		}

		match := phpHandlerPackage.FindStringSubmatch(fields[0])
		if match == nil {
			continue
		}

		version, err := semver.NewVersion(match[1] + "." + match[2])
		if err != nil {
			continue
		}

		if version.LessThan(minimum) {
			c.outdated = append(c.outdated, "PHP "+version.Original())
		}
	}

	return len(c.outdated) == 0, nil
}

// AssertDpkgNotLocked refuses to start while another package manager holds the dpkg lock.
type AssertDpkgNotLocked struct {
	lockFiles []string
	processes ProcessLister
}

// NewAssertDpkgNotLocked creates the check.
func NewAssertDpkgNotLocked(lockFiles []string, processes ProcessLister) *AssertDpkgNotLocked {
	if processes == nil {
		processes = ps.Processes
	}

	return &AssertDpkgNotLocked{
		lockFiles: slices.Clone(lockFiles),
		processes: processes,
	}
}

// Name implements action.CheckAction.
func (c *AssertDpkgNotLocked) Name() string {
	return "check if dpkg is locked"
}

// Description implements action.CheckAction.
func (c *AssertDpkgNotLocked) Description() string {
	return "Another package manager is running. Wait until it finishes " +
		"(check `ps aux | grep -e apt -e dpkg`) and run the upgrade again."
}

// Do probes the lock files and looks for package manager processes.
func (c *AssertDpkgNotLocked) Do(context.Context) (bool, error) {
	for _, path := range c.lockFiles {
		locked, err := isLocked(path)
		if err != nil {
			return false, err
		}

		if locked {
			return false, nil
		}
	}

	found, err := findProcesses(c.processes, []string{"apt", "apt-get", "dpkg", "unattended-upgr", "aptitude"})
	if err != nil {
		return false, err
	}

	return len(found) == 0, nil
}

// isLocked tries to take and release a write lock on path the way dpkg does.
func isLocked(path string) (bool, error) {
	file, err := os.OpenFile(filepath.Clean(path), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	lock := unix.Flock_t{Type: unix.F_WRLCK, Whence: 0}

	if err = unix.FcntlFlock(file.Fd(), unix.F_SETLK, &lock); err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EACCES) {
			return true, nil
		}

		return false, fmt.Errorf("lock %s: %w", path, err)
	}

	lock.Type = unix.F_UNLCK
	_ = unix.FcntlFlock(file.Fd(), unix.F_SETLK, &lock)

	return false, nil
}

// AssertNotInContainer refuses to upgrade containers: their kernel and init
// belong to the host, so a dist-upgrade cannot complete inside them.
type AssertNotInContainer struct {
	paths Paths
}

// NewAssertNotInContainer creates the check.
func NewAssertNotInContainer(paths Paths) *AssertNotInContainer {
	return &AssertNotInContainer{paths: paths}
}

// Name implements action.CheckAction.
func (c *AssertNotInContainer) Name() string {
	return "check if the system is not in a container"
}

// Description implements action.CheckAction.
func (c *AssertNotInContainer) Description() string {
	return "The system is running in a container. Dist-upgrade of containers is not supported: " +
		"upgrade the container image instead."
}

// Do looks for the markers container runtimes leave behind.
func (c *AssertNotInContainer) Do(context.Context) (bool, error) {
	markers := []string{
		filepath.Join(c.paths.Root, ".dockerenv"),
		filepath.Join(c.paths.Root, "run", ".containerenv"),
	}

	for _, marker := range markers {
		if exists(marker) {
			return false, nil
		}
	}

	// OpenVZ/Virtuozzo containers have /proc/vz without /proc/bc.
	if exists(filepath.Join(c.paths.ProcRoot, "vz")) && !exists(filepath.Join(c.paths.ProcRoot, "bc")) {
		return false, nil
	}

	environ, err := os.ReadFile(filepath.Join(c.paths.ProcRoot, "1", "environ"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return true, nil
		}

		return false, fmt.Errorf("read init environment: %w", err)
	}

	for _, variable := range bytes.Split(environ, []byte{0}) {
		if bytes.HasPrefix(variable, []byte("container=")) {
			return false, nil
		}
	}

	return true, nil
}

// AssertRoot requires the upgrader to run as the superuser.
type AssertRoot struct {
	euid func() int
}

// NewAssertRoot creates the check for the effective user of this process.
func NewAssertRoot() *AssertRoot {
	return &AssertRoot{euid: unix.Geteuid}
}

// Name implements action.CheckAction.
func (c *AssertRoot) Name() string {
	return "check if the upgrader runs as root"
}

// Description implements action.CheckAction.
func (c *AssertRoot) Description() string {
	return "The dist-upgrade changes system packages and configuration. Run it as root."
}

// Do compares the effective user ID with root.
func (c *AssertRoot) Do(context.Context) (bool, error) {
	return c.euid() == 0, nil
}
