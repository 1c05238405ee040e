package distupgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/plesk/debian11to12/internal/actions"
	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/logger"
	"github.com/plesk/debian11to12/internal/registry"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
	"github.com/plesk/debian11to12/internal/system"
)

// Engine holds the host dependencies of the upgrader. The zero value is not
// usable; New fills in the real host.
type Engine struct {
	// Registry provides the upgraders.
	Registry *registry.Registry
	// Runner executes system commands; nil creates an ExecRunner with the configured timeout.
	Runner system.Runner
	// Paths are the host files actions work on.
	Paths actions.Paths
	// Processes lists running processes.
	Processes actions.ProcessLister
	// FindProcess looks a process up by pid.
	FindProcess func(pid int) (ps.Process, error)
	// OSReleasePath is the os-release file describing the running system.
	OSReleasePath string
	// Euid returns the effective user ID.
	Euid func() int
	// Reboot restarts the host; nil uses system.Reboot.
	Reboot func(ctx context.Context, runner system.Runner) error
	// NewSessionID creates upgrade session IDs.
	NewSessionID func() string
	// Now returns the current time.
	Now func() time.Time
	// Output receives plans, status and check reports.
	Output io.Writer
}

// New creates an engine for the local host using the process-wide registry.
func New() *Engine {
	return &Engine{
		Registry:      registry.Default(),
		Paths:         actions.DefaultPaths(),
		Processes:     ps.Processes,
		FindProcess:   ps.FindProcess,
		OSReleasePath: system.DefaultOSReleasePath,
		Euid:          unix.Geteuid,
		Reboot:        system.Reboot,
		NewSessionID:  uuid.NewString,
		Now:           time.Now,
		Output:        os.Stdout,
	}
}

// Run executes the upgrader on the local host.
func Run(ctx context.Context, opts *Options) error {
	return New().Run(ctx, opts)
}

var (
	// ErrNotRoot is returned when a mode that changes the system runs unprivileged.
	ErrNotRoot = errors.New("the upgrader must be run as root")
	// ErrChecksFailed is returned when preconditions of the conversion do not hold.
	ErrChecksFailed = errors.New("preconditions are not met")

	errNothingToRevert = errors.New("no upgrade to revert")
)

// Run executes the mode selected by opts.
func (e *Engine) Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "debian11to12")

	selected, err := opts.resolveMode()
	if err != nil {
		return err
	}

	cfg, err := e.loadConfig(opts)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLevel(parsed)

	if selected.changesSystem() {
		if e.Euid() != 0 {
			return ErrNotRoot
		}

		fileLogger, closeLog, err := logger.NewWithFile(nil, cfg.LogFile)
		if err != nil {
			return err
		}

		defer func() {
			_ = closeLog()
		}()

		ctx = logger.ToContext(ctx, fileLogger.Named("debian11to12"))
	}

	if selected == modeMonitor {
		// Log lines would break the progress bar.
		ctx = logger.Quiet(ctx, zapcore.WarnLevel)
	}

	repo := repository.NewFileRepository(cfg.StateFile())

	switch selected {
	case modeShowPlan:
		return e.showPlan(ctx, cfg, opts, repo)
	case modeStatus:
		return e.status(ctx, cfg, repo)
	case modeMonitor:
		return e.monitor(ctx, cfg, repo)
	case modeFeedback:
		return e.prepareFeedback(ctx, cfg, opts, repo)
	case modeConvert, modeResume, modeRevert:
		return e.upgrade(ctx, cfg, opts, selected, repo)
	default:
		return fmt.Errorf("%w: %s", errUnsupportedMode, selected)
	}
}

var (
	errUnknownLogLevel = errors.New("unknown log level")
	errUnsupportedMode = errors.New("unsupported mode")
)

// loadConfig reads the settings and applies command line overrides.
func (e *Engine) loadConfig(opts *Options) (*config.Config, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if opts.LogFile != "" {
		cfg.LogFile = opts.LogFile
	}

	if opts.StateDir != "" {
		cfg.StateDir = opts.StateDir
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}

// runner returns the command runner for the configuration.
func (e *Engine) runner(cfg *config.Config) system.Runner {
	if e.Runner != nil {
		return e.Runner
	}

	return system.NewExecRunner(cfg.CommandTimeout)
}

// upgraderOptions collects what the upgrader needs to build its plan.
func (e *Engine) upgraderOptions(cfg *config.Config, opts *Options) (registry.Options, error) {
	binPath := opts.BinPath
	if binPath == "" {
		executable, err := os.Executable()
		if err != nil {
			return registry.Options{}, fmt.Errorf("locate upgrader binary: %w", err)
		}

		binPath = executable
	}

	return registry.Options{
		BinPath:    binPath,
		ResumeArgs: opts.resumeArgs(opts.ConfigPath),
		Config:     cfg,
		Runner:     e.runner(cfg),
		Paths:      e.Paths,
		Processes:  e.Processes,
	}, nil
}

// selectUpgrader returns the upgrader owning the recorded progress, or the one
// supporting the running system when there is none.
func (e *Engine) selectUpgrader(ctx context.Context, progress *domain.Progress) (registry.Upgrader, error) {
	if progress != nil {
		factory, err := e.Registry.Lookup(progress.Upgrader)
		if err != nil {
			return nil, fmt.Errorf("find upgrader of the recorded progress: %w", err)
		}

		return factory.Create(), nil
	}

	current, err := system.DetectSystem(e.OSReleasePath)
	if err != nil {
		return nil, fmt.Errorf("detect system: %w", err)
	}

	logger.DebugKV(ctx, "Detected system", "system", current.String())

	factory, err := e.Registry.Find(current, domain.SystemDescription{})
	if err != nil {
		return nil, err
	}

	return factory.Create(), nil
}

// loadProgress returns the recorded progress or nil when there is none.
func loadProgress(ctx context.Context, repo repository.Repository) (*domain.Progress, error) {
	progress, err := repo.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil //nolint:nilnil // Absent progress is a valid state.
	}

	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	return progress, nil
}
