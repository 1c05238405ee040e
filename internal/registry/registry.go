package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/actions"
	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/system"
)

// Options is what an upgrader needs to build its actions for this host.
type Options struct {
	// BinPath is the path of the running upgrader binary.
	BinPath string
	// ResumeArgs are passed to the binary when it resumes after a reboot.
	ResumeArgs []string
	// Config holds the validated settings.
	Config *config.Config
	// Runner executes system commands.
	Runner system.Runner
	// Paths are the filesystem locations actions work on.
	Paths actions.Paths
	// Processes lists running processes for checks.
	Processes actions.ProcessLister
}

// Upgrader converts one operating system release into another.
type Upgrader interface {
	// Name identifies the upgrader in progress files and feedback.
	Name() string
	// Version of the upgrader build.
	Version() string
	// IssuesURL is where problems are reported.
	IssuesURL() string
	// Supports reports whether the upgrader converts from into to.
	Supports(from, to domain.SystemDescription) bool
	// Description is the help text shown to the user.
	Description() string
	// ConstructActions builds the plan executed in the given phase.
	ConstructActions(opts Options, phase domain.Phase) (action.Plan, error)
	// CheckActions returns the preconditions of the given phase.
	CheckActions(opts Options, phase domain.Phase) []action.CheckAction
	// PrepareFeedback adds upgrader-specific diagnostics.
	PrepareFeedback(feedback *domain.Feedback)
}

// Factory creates upgraders and announces which conversions they support.
type Factory interface {
	Name() string
	Supports(from, to domain.SystemDescription) bool
	Create() Upgrader
}

var (
	// ErrNotFound is returned when no registered upgrader supports a conversion.
	ErrNotFound = errors.New("no upgrader found")

	errDuplicateName = errors.New("upgrader already registered")
	errEmptyName     = errors.New("upgrader name is empty")
	errNilFactory    = errors.New("factory must be provided")
)

// Registry is a set of upgrader factories with unique names.
type Registry struct {
	// mu protects factories.
	mu sync.RWMutex
	// factories in registration order.
	factories []Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Register adds a factory. Names must be unique.
func (r *Registry) Register(factory Factory) error {
	if factory == nil {
		return errNilFactory
	}

	name := factory.Name()
	if strings.TrimSpace(name) == "" {
		return errEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.ContainsFunc(r.factories, func(f Factory) bool { return f.Name() == name }) {
		return fmt.Errorf("%q: %w", name, errDuplicateName)
	}

	r.factories = append(r.factories, factory)

	return nil
}

// Find returns the first factory supporting the conversion.
func (r *Registry) Find(from, to domain.SystemDescription) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, factory := range r.factories {
		if factory.Supports(from, to) {
			return factory, nil
		}
	}

	return nil, fmt.Errorf("%w for %s -> %s", ErrNotFound, from, to)
}

// Lookup returns the factory with the given name.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, factory := range r.factories {
		if factory.Name() == name {
			return factory, nil
		}
	}

	return nil, fmt.Errorf("%w with name %q", ErrNotFound, name)
}

// All returns the registered factories in registration order.
func (r *Registry) All() []Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.factories)
}

//nolint:gochecknoglobals // Process-wide registry filled from main.
var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a factory to the process-wide registry.
func Register(factory Factory) error {
	return defaultRegistry.Register(factory)
}

// Find searches the process-wide registry.
func Find(from, to domain.SystemDescription) (Factory, error) {
	return defaultRegistry.Find(from, to)
}

// All lists the process-wide registry.
func All() []Factory {
	return defaultRegistry.All()
}
