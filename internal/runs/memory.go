package runs

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/exp/maps"
)

// MemoryRegistry keeps run records in process memory. It is the default when
// no Redis endpoint is configured; records do not survive a restart.
type MemoryRegistry struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		runs: map[string]Run{},
	}
}

// Put stores or replaces a run record.
func (r *MemoryRegistry) Put(ctx context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

// Get returns the run record for the given id.
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// List returns all run records, most recent first.
func (r *MemoryRegistry) List(ctx context.Context) ([]Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Run, 0, len(r.runs))
	for _, id := range maps.Keys(r.runs) {
		out = append(out, r.runs[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
