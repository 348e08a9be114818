package ports

import (
	"context"

	"github.com/katanaid/katana/core"
)

// EventPublisher notifies other systems about gate decisions.
type EventPublisher interface {
	PublishVerification(ctx context.Context, sessionID string, success bool) error
	PublishAssessment(ctx context.Context, email string, assessment *core.TrustAssessment) error
}
