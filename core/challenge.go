package core

import (
	"math"
	"time"
)

// ChallengeKind identifies the gesture the client is asked to draw.
type ChallengeKind string

const (
	SlashTopLeftBottomRight ChallengeKind = "slash_tl_br"
	SlashTopRightBottomLeft ChallengeKind = "slash_tr_bl"
	SlashBottomLeftTopRight ChallengeKind = "slash_bl_tr"
	SlashBottomRightTopLeft ChallengeKind = "slash_br_tl"
	SlashLeftRight          ChallengeKind = "slash_lr"
	SlashRightLeft          ChallengeKind = "slash_rl"
)

// Vector is a 2D direction in canvas coordinates (y grows downward).
type Vector struct {
	X float64
	Y float64
}

// Normalize returns the unit vector. The zero vector is returned unchanged.
func (v Vector) Normalize() Vector {
	length := math.Hypot(v.X, v.Y)
	if length == 0 {
		return v
	}
	return Vector{X: v.X / length, Y: v.Y / length}
}

// Dot returns the dot product with w.
func (v Vector) Dot(w Vector) float64 {
	return v.X*w.X + v.Y*w.Y
}

// Length returns the magnitude of the vector.
func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

const diag = math.Sqrt2 / 2

var challengeCatalog = map[ChallengeKind]struct {
	direction   Vector
	instruction string
}{
	SlashTopLeftBottomRight: {Vector{diag, diag}, "Slash from the top-left to the bottom-right"},
	SlashTopRightBottomLeft: {Vector{-diag, diag}, "Slash from the top-right to the bottom-left"},
	SlashBottomLeftTopRight: {Vector{diag, -diag}, "Slash from the bottom-left to the top-right"},
	SlashBottomRightTopLeft: {Vector{-diag, -diag}, "Slash from the bottom-right to the top-left"},
	SlashLeftRight:          {Vector{1, 0}, "Slash straight across, left to right"},
	SlashRightLeft:          {Vector{-1, 0}, "Slash straight across, right to left"},
}

// ChallengeKinds returns every kind a generator may pick from.
func ChallengeKinds() []ChallengeKind {
	return []ChallengeKind{
		SlashTopLeftBottomRight,
		SlashTopRightBottomLeft,
		SlashBottomLeftTopRight,
		SlashBottomRightTopLeft,
		SlashLeftRight,
		SlashRightLeft,
	}
}

// Direction returns the expected unit direction vector for the kind.
func (k ChallengeKind) Direction() (Vector, bool) {
	entry, ok := challengeCatalog[k]
	return entry.direction, ok
}

// Instruction returns the human-readable prompt shown to the client.
func (k ChallengeKind) Instruction() string {
	return challengeCatalog[k].instruction
}

// SessionState is the authoritative state of a challenge session.
type SessionState string

const (
	SessionActive   SessionState = "active"
	SessionConsumed SessionState = "consumed"
	SessionExpired  SessionState = "expired"
)

// ChallengeSession is a single-use gesture challenge handed to a client.
type ChallengeSession struct {
	ID        string        `json:"id"`
	Kind      ChallengeKind `json:"kind"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	State     SessionState  `json:"state"`
}

// ExpiredAt reports whether the session deadline has passed at the given time.
func (s *ChallengeSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// GestureSubmission is the client's report of a completed stroke.
// It is ephemeral and never persisted beyond verification.
type GestureSubmission struct {
	StartX     float64
	StartY     float64
	EndX       float64
	EndY       float64
	DurationMS int64
	PointCount int
}

// Direction returns the observed stroke direction, end minus start.
func (g GestureSubmission) Direction() Vector {
	return Vector{X: g.EndX - g.StartX, Y: g.EndY - g.StartY}
}
