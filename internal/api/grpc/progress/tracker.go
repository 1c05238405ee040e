package progress

import (
	"context"
	"sync"

	"github.com/plesk/debian11to12/internal/action"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
)

// Tracker keeps the latest state of a flow in memory for the API.
// It is fed by the flow observer and by progress saves.
type Tracker struct {
	// mu protects the snapshot.
	mu sync.RWMutex
	// snapshot is the latest state.
	snapshot Snapshot
}

var _ Service = (*Tracker)(nil)

// NewTracker creates a tracker for a running flow.
func NewTracker() *Tracker {
	return &Tracker{snapshot: Snapshot{Running: true}}
}

// Observe records the action the flow started. It matches action.WithObserver.
func (t *Tracker) Observe(event action.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snapshot.Event = event
}

// SetProgress records the latest persisted progress.
func (t *Tracker) SetProgress(progress *domain.Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snapshot.Progress = progress.Clone()
}

// Stop marks the flow as no longer running.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snapshot.Running = false
}

// Snapshot implements Service.
func (t *Tracker) Snapshot(context.Context) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := t.snapshot
	result.Progress = t.snapshot.Progress.Clone()

	return result
}
