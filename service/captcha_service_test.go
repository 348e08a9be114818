package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katanaid/katana/adapters/store"
	"github.com/katanaid/katana/core"
)

// stubTokenizer mints predictable tokens and accepts none of them back.
type stubTokenizer struct{}

func (stubTokenizer) Issue(sessionID string) (string, error) {
	return "token-for-" + sessionID, nil
}

func (stubTokenizer) Validate(token string) (*core.VerificationClaims, error) {
	return nil, core.ErrInvalidToken
}

// capturePublisher records verification outcomes for assertions.
type capturePublisher struct {
	mu        sync.Mutex
	successes int
	failures  int
}

func (p *capturePublisher) PublishVerification(ctx context.Context, sessionID string, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if success {
		p.successes++
	} else {
		p.failures++
	}
	return nil
}

func (p *capturePublisher) PublishAssessment(ctx context.Context, email string, assessment *core.TrustAssessment) error {
	return nil
}

func newTestCaptchaService(t *testing.T) (*CaptchaService, *store.MemorySessionStore, *capturePublisher) {
	t.Helper()

	sessions := store.NewMemorySessionStore()
	t.Cleanup(sessions.Close)

	events := &capturePublisher{}
	svc := NewCaptchaService(sessions, stubTokenizer{}, events, DefaultGestureConfig())
	return svc, sessions, events
}

// putSession seeds a session with a known kind so tests control geometry.
func putSession(t *testing.T, sessions *store.MemorySessionStore, id string, kind core.ChallengeKind) {
	t.Helper()

	now := time.Now()
	require.NoError(t, sessions.Put(context.Background(), &core.ChallengeSession{
		ID:        id,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
		State:     core.SessionActive,
	}))
}

// strokeFor builds a clean 300px stroke matching the challenge direction.
func strokeFor(kind core.ChallengeKind) core.GestureSubmission {
	dir, _ := kind.Direction()
	return core.GestureSubmission{
		StartX:     200 - 150*dir.X,
		StartY:     150 - 150*dir.Y,
		EndX:       200 + 150*dir.X,
		EndY:       150 + 150*dir.Y,
		DurationMS: 450,
		PointCount: 28,
	}
}

func TestCreateChallenge(t *testing.T) {
	svc, sessions, _ := newTestCaptchaService(t)

	challenge, err := svc.CreateChallenge(context.Background())
	require.NoError(t, err)

	require.Len(t, challenge.SessionID, 32)
	require.NotEmpty(t, challenge.Instruction)
	require.Equal(t, 120, challenge.ExpiresIn)

	_, ok := challenge.Kind.Direction()
	require.True(t, ok, "challenge kind must be in the catalog")

	stored, err := sessions.Get(context.Background(), challenge.SessionID)
	require.NoError(t, err)
	require.Equal(t, challenge.Kind, stored.Kind)
	require.Equal(t, core.SessionActive, stored.State)
}

func TestCreateChallengeUniqueIDs(t *testing.T) {
	svc, _, _ := newTestCaptchaService(t)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		challenge, err := svc.CreateChallenge(context.Background())
		require.NoError(t, err)

		_, dup := seen[challenge.SessionID]
		require.False(t, dup, "session id collision")
		seen[challenge.SessionID] = struct{}{}
	}
}

func TestVerifyGestureEndToEnd(t *testing.T) {
	svc, sessions, events := newTestCaptchaService(t)

	// Top-right to bottom-left: the stroke runs left and down in canvas
	// coordinates.
	putSession(t, sessions, "s1", core.SlashTopRightBottomLeft)

	token, err := svc.VerifyGesture(context.Background(), "s1", core.GestureSubmission{
		StartX:     350,
		StartY:     50,
		EndX:       50,
		EndY:       250,
		DurationMS: 450,
		PointCount: 28,
	})
	require.NoError(t, err)
	require.Equal(t, "token-for-s1", token)
	require.Equal(t, 1, events.successes)

	// The session is spent; replaying the same stroke fails.
	_, err = svc.VerifyGesture(context.Background(), "s1", strokeFor(core.SlashTopRightBottomLeft))
	require.ErrorIs(t, err, core.ErrSessionConsumed)
	require.Equal(t, 1, events.failures)
}

func TestVerifyGestureAllKinds(t *testing.T) {
	svc, sessions, _ := newTestCaptchaService(t)

	for i, kind := range core.ChallengeKinds() {
		id := fmt.Sprintf("s%d", i)
		putSession(t, sessions, id, kind)

		token, err := svc.VerifyGesture(context.Background(), id, strokeFor(kind))
		require.NoError(t, err, "kind %s", kind)
		require.NotEmpty(t, token)
	}
}

func TestVerifyGestureAngleTolerance(t *testing.T) {
	svc, sessions, _ := newTestCaptchaService(t)

	// Expected direction is straight right; the stroke is rotated off it by
	// a controlled angle.
	angled := func(deg float64) core.GestureSubmission {
		rad := deg * math.Pi / 180
		return core.GestureSubmission{
			StartX:     50,
			StartY:     150,
			EndX:       50 + 200*math.Cos(rad),
			EndY:       150 + 200*math.Sin(rad),
			DurationMS: 450,
			PointCount: 28,
		}
	}

	t.Run("WithinTolerance", func(t *testing.T) {
		putSession(t, sessions, "a29", core.SlashLeftRight)

		_, err := svc.VerifyGesture(context.Background(), "a29", angled(29))
		require.NoError(t, err)
	})

	t.Run("BeyondTolerance", func(t *testing.T) {
		putSession(t, sessions, "a31", core.SlashLeftRight)

		_, err := svc.VerifyGesture(context.Background(), "a31", angled(31))
		require.ErrorIs(t, err, core.ErrGestureRejected)
	})

	t.Run("Perpendicular", func(t *testing.T) {
		putSession(t, sessions, "a91", core.SlashLeftRight)

		_, err := svc.VerifyGesture(context.Background(), "a91", angled(91))
		require.ErrorIs(t, err, core.ErrGestureRejected)
	})

	t.Run("OppositeDirection", func(t *testing.T) {
		putSession(t, sessions, "a180", core.SlashLeftRight)

		_, err := svc.VerifyGesture(context.Background(), "a180", angled(180))
		require.ErrorIs(t, err, core.ErrGestureRejected)
	})
}

func TestVerifyGestureDurationBounds(t *testing.T) {
	svc, sessions, _ := newTestCaptchaService(t)

	cases := []struct {
		name       string
		durationMS int64
		wantErr    bool
	}{
		{"TooFast", 79, true},
		{"ExactMinimum", 80, false},
		{"ExactMaximum", 10_000, false},
		{"TooSlow", 10_001, true},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := fmt.Sprintf("d%d", i)
			putSession(t, sessions, id, core.SlashLeftRight)

			sub := strokeFor(core.SlashLeftRight)
			sub.DurationMS = tc.durationMS

			_, err := svc.VerifyGesture(context.Background(), id, sub)
			if tc.wantErr {
				require.ErrorIs(t, err, core.ErrGestureRejected)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestVerifyGestureRejections(t *testing.T) {
	svc, sessions, _ := newTestCaptchaService(t)

	t.Run("TooFewPoints", func(t *testing.T) {
		putSession(t, sessions, "p1", core.SlashLeftRight)

		sub := strokeFor(core.SlashLeftRight)
		sub.PointCount = 2

		_, err := svc.VerifyGesture(context.Background(), "p1", sub)
		require.ErrorIs(t, err, core.ErrGestureRejected)
	})

	t.Run("StrokeTooShort", func(t *testing.T) {
		putSession(t, sessions, "p2", core.SlashLeftRight)

		_, err := svc.VerifyGesture(context.Background(), "p2", core.GestureSubmission{
			StartX: 0, StartY: 0, EndX: 99, EndY: 0,
			DurationMS: 450, PointCount: 28,
		})
		require.ErrorIs(t, err, core.ErrGestureRejected)
	})

	t.Run("ZeroLengthStroke", func(t *testing.T) {
		putSession(t, sessions, "p3", core.SlashLeftRight)

		_, err := svc.VerifyGesture(context.Background(), "p3", core.GestureSubmission{
			StartX: 100, StartY: 100, EndX: 100, EndY: 100,
			DurationMS: 450, PointCount: 28,
		})
		require.ErrorIs(t, err, core.ErrGestureRejected)
	})
}

// A failed check still spends the session; there is no second try.
func TestVerifyGestureFailureConsumesSession(t *testing.T) {
	svc, sessions, events := newTestCaptchaService(t)

	putSession(t, sessions, "s1", core.SlashLeftRight)

	bad := strokeFor(core.SlashLeftRight)
	bad.PointCount = 1

	_, err := svc.VerifyGesture(context.Background(), "s1", bad)
	require.ErrorIs(t, err, core.ErrGestureRejected)

	_, err = svc.VerifyGesture(context.Background(), "s1", strokeFor(core.SlashLeftRight))
	require.ErrorIs(t, err, core.ErrSessionConsumed)
	require.Equal(t, 2, events.failures)
}

func TestVerifyGestureSessionLifecycle(t *testing.T) {
	svc, sessions, _ := newTestCaptchaService(t)

	t.Run("UnknownSession", func(t *testing.T) {
		_, err := svc.VerifyGesture(context.Background(), "missing", strokeFor(core.SlashLeftRight))
		require.ErrorIs(t, err, core.ErrSessionNotFound)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, sessions.Put(context.Background(), &core.ChallengeSession{
			ID:        "old",
			Kind:      core.SlashLeftRight,
			CreatedAt: now.Add(-3 * time.Minute),
			ExpiresAt: now.Add(-time.Minute),
			State:     core.SessionActive,
		}))

		_, err := svc.VerifyGesture(context.Background(), "old", strokeFor(core.SlashLeftRight))
		require.ErrorIs(t, err, core.ErrSessionExpired)
	})
}
