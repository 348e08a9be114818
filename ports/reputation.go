package ports

import "context"

// ReputationProvider is the external IP reputation input. The engine never
// computes reputation itself; it only consumes a [0,1] score and a reason.
// Implementations must honor the context deadline and return
// core.ErrUpstreamUnavailable when the feed cannot be reached.
type ReputationProvider interface {
	Score(ctx context.Context, ip string) (float64, string, error)
}
