package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	mrand "math/rand/v2"
	"time"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// GestureConfig holds the tunable acceptance thresholds for gesture
// verification.
type GestureConfig struct {
	SessionTTL        time.Duration
	AngleToleranceDeg float64
	MinDurationMS     int64
	MaxDurationMS     int64
	MinPointCount     int
	MinStrokeLength   float64
}

// DefaultGestureConfig returns the production defaults.
func DefaultGestureConfig() GestureConfig {
	return GestureConfig{
		SessionTTL:        120 * time.Second,
		AngleToleranceDeg: 30,
		MinDurationMS:     80,
		MaxDurationMS:     10_000,
		MinPointCount:     3,
		MinStrokeLength:   100,
	}
}

// Challenge is what the client receives when a new session is created.
type Challenge struct {
	SessionID   string
	Kind        core.ChallengeKind
	Instruction string
	ExpiresIn   int
}

// CaptchaService creates gesture challenges and verifies submitted strokes.
type CaptchaService struct {
	store     ports.SessionStore
	tokenizer ports.Tokenizer
	events    ports.EventPublisher
	cfg       GestureConfig
}

// NewCaptchaService creates a new captcha service. The event publisher may be
// nil.
func NewCaptchaService(store ports.SessionStore, tokenizer ports.Tokenizer, events ports.EventPublisher, cfg GestureConfig) *CaptchaService {
	return &CaptchaService{
		store:     store,
		tokenizer: tokenizer,
		events:    events,
		cfg:       cfg,
	}
}

// CreateChallenge picks a challenge kind and writes a new active session.
// The expected direction vector stays server-side; the client only sees the
// instruction.
func (s *CaptchaService) CreateChallenge(ctx context.Context) (*Challenge, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	kinds := core.ChallengeKinds()
	kind := kinds[mrand.IntN(len(kinds))]

	now := time.Now()
	session := &core.ChallengeSession{
		ID:        sessionID,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		State:     core.SessionActive,
	}

	if err := s.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return &Challenge{
		SessionID:   sessionID,
		Kind:        kind,
		Instruction: kind.Instruction(),
		ExpiresIn:   int(s.cfg.SessionTTL.Seconds()),
	}, nil
}

// VerifyGesture consumes the session and checks the stroke against the
// expected direction. Every outcome is terminal for the session: the consume
// in step one means a failed check can never be retried against the same
// session.
func (s *CaptchaService) VerifyGesture(ctx context.Context, sessionID string, sub core.GestureSubmission) (string, error) {
	session, err := s.store.TryConsume(ctx, sessionID)
	if err != nil {
		s.publishOutcome(ctx, sessionID, false)
		return "", err
	}

	if err := s.checkGesture(session.Kind, sub); err != nil {
		s.publishOutcome(ctx, sessionID, false)
		return "", err
	}

	token, err := s.tokenizer.Issue(session.ID)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.publishOutcome(ctx, sessionID, true)

	return token, nil
}

func (s *CaptchaService) checkGesture(kind core.ChallengeKind, sub core.GestureSubmission) error {
	expected, ok := kind.Direction()
	if !ok {
		return fmt.Errorf("%w: unknown challenge kind %q", core.ErrGestureRejected, kind)
	}

	observed := sub.Direction()
	length := observed.Length()
	if length == 0 {
		return fmt.Errorf("%w: zero-length stroke", core.ErrGestureRejected)
	}

	dot := observed.Normalize().Dot(expected)
	angle := math.Acos(math.Max(-1, math.Min(1, dot))) * 180 / math.Pi
	if angle > s.cfg.AngleToleranceDeg {
		return fmt.Errorf("%w: stroke %.1f degrees off expected direction", core.ErrGestureRejected, angle)
	}

	if sub.DurationMS < s.cfg.MinDurationMS {
		return fmt.Errorf("%w: stroke too fast (%dms)", core.ErrGestureRejected, sub.DurationMS)
	}
	if sub.DurationMS > s.cfg.MaxDurationMS {
		return fmt.Errorf("%w: stroke too slow (%dms)", core.ErrGestureRejected, sub.DurationMS)
	}

	if sub.PointCount < s.cfg.MinPointCount {
		return fmt.Errorf("%w: only %d samples captured", core.ErrGestureRejected, sub.PointCount)
	}

	if length < s.cfg.MinStrokeLength {
		return fmt.Errorf("%w: stroke length %.1f below minimum", core.ErrGestureRejected, length)
	}

	return nil
}

func (s *CaptchaService) publishOutcome(ctx context.Context, sessionID string, success bool) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishVerification(ctx, sessionID, success); err != nil {
		log.Printf("failed to publish verification event: %v", err)
	}
}

// generateSessionID returns a 128-bit cryptographically random identifier.
func generateSessionID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
