package reputation

import (
	"context"
	"sync"

	"github.com/katanaid/katana/ports"
)

// Entry is a known reputation verdict for an address.
type Entry struct {
	Score  float64
	Reason string
}

// StaticProvider serves reputation scores from a fixed in-memory table.
// Addresses without an entry receive the default score. Useful for tests and
// deployments without a reputation feed.
type StaticProvider struct {
	entries      map[string]Entry
	defaultScore float64
	mu           sync.RWMutex
}

// NewStaticProvider creates a static provider with the given default score
// for unknown addresses.
func NewStaticProvider(defaultScore float64) *StaticProvider {
	return &StaticProvider{
		entries:      make(map[string]Entry),
		defaultScore: defaultScore,
	}
}

// Set records a verdict for an address.
func (p *StaticProvider) Set(ip string, score float64, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[ip] = Entry{Score: score, Reason: reason}
}

// Score returns the recorded verdict or the default.
func (p *StaticProvider) Score(ctx context.Context, ip string) (float64, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, ok := p.entries[ip]; ok {
		return entry.Score, entry.Reason, nil
	}

	return p.defaultScore, "No adverse reports on record", nil
}

var _ ports.ReputationProvider = (*StaticProvider)(nil)
