package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChallengeCatalog(t *testing.T) {
	for _, kind := range ChallengeKinds() {
		dir, ok := kind.Direction()
		require.True(t, ok, "kind %s missing from catalog", kind)
		require.InDelta(t, 1.0, dir.Length(), 1e-9, "kind %s direction must be a unit vector", kind)
		require.NotEmpty(t, kind.Instruction())
	}
}

func TestChallengeUnknownKind(t *testing.T) {
	_, ok := ChallengeKind("spiral").Direction()
	require.False(t, ok)
}

func TestVectorNormalize(t *testing.T) {
	v := Vector{X: 3, Y: 4}.Normalize()
	require.InDelta(t, 0.6, v.X, 1e-9)
	require.InDelta(t, 0.8, v.Y, 1e-9)

	zero := Vector{}.Normalize()
	require.Equal(t, Vector{}, zero)
}

func TestGestureSubmissionDirection(t *testing.T) {
	sub := GestureSubmission{StartX: 350, StartY: 50, EndX: 50, EndY: 250}
	dir := sub.Direction()
	require.InDelta(t, -300.0, dir.X, 1e-9)
	require.InDelta(t, 200.0, dir.Y, 1e-9)
}

func TestSessionExpiredAt(t *testing.T) {
	now := time.Now()
	session := &ChallengeSession{ExpiresAt: now}

	require.False(t, session.ExpiredAt(now))
	require.True(t, session.ExpiredAt(now.Add(time.Nanosecond)))
}
