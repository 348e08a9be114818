package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// MemoryRegistry is an in-memory implementation of the FingerprintRegistry
// interface. Sightings are only ever appended.
type MemoryRegistry struct {
	sightings map[string][]core.Sighting
	mu        sync.RWMutex
}

// NewMemoryRegistry creates a new in-memory fingerprint registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sightings: make(map[string][]core.Sighting),
	}
}

// Record appends a sighting.
func (r *MemoryRegistry) Record(ctx context.Context, sighting core.Sighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sightings[sighting.FingerprintID] = append(r.sightings[sighting.FingerprintID], sighting)
	return nil
}

// History returns all sightings for a fingerprint ordered by timestamp.
func (r *MemoryRegistry) History(ctx context.Context, fingerprintID string) ([]core.Sighting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.sightings[fingerprintID]
	history := make([]core.Sighting, len(stored))
	copy(history, stored)

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SeenAt.Before(history[j].SeenAt)
	})

	return history, nil
}

var _ ports.FingerprintRegistry = (*MemoryRegistry)(nil)
