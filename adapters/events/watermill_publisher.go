package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

const (
	// VerificationTopic carries gesture verification outcomes.
	VerificationTopic = "katana.captcha.verified"

	// AssessmentTopic carries trust assessment results.
	AssessmentTopic = "katana.trust.assessed"
)

// VerificationEvent is published after every gesture verification attempt.
type VerificationEvent struct {
	SessionID string    `json:"session_id"`
	Success   bool      `json:"success"`
	At        time.Time `json:"at"`
}

// AssessmentEvent is published after every trust assessment.
type AssessmentEvent struct {
	Email          string              `json:"email"`
	FingerprintID  string              `json:"fingerprint_id"`
	Score          float64             `json:"score"`
	Recommendation core.Recommendation `json:"recommendation"`
	At             time.Time           `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishVerification publishes a verification outcome.
func (p *WatermillPublisher) PublishVerification(ctx context.Context, sessionID string, success bool) error {
	event := VerificationEvent{
		SessionID: sessionID,
		Success:   success,
		At:        time.Now(),
	}

	return p.publish(VerificationTopic, event)
}

// PublishAssessment publishes a trust assessment result.
func (p *WatermillPublisher) PublishAssessment(ctx context.Context, email string, assessment *core.TrustAssessment) error {
	event := AssessmentEvent{
		Email:          email,
		FingerprintID:  assessment.FingerprintID,
		Score:          assessment.Score,
		Recommendation: assessment.Recommendation,
		At:             time.Now(),
	}

	return p.publish(AssessmentTopic, event)
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)
