package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// FingerprintData is the raw fingerprint payload reported by the client.
// Every field is untrusted input; the core only hashes and cross-checks it,
// it never interprets how the client derived a value.
type FingerprintData struct {
	CanvasHash          string `json:"canvas_hash"`
	WebGLHash           string `json:"webgl_hash"`
	AudioHash           string `json:"audio_hash"`
	ScreenResolution    string `json:"screen_resolution"`
	Timezone            string `json:"timezone"`
	Language            string `json:"language"`
	Platform            string `json:"platform"`
	UserAgent           string `json:"user_agent"`
	ColorDepth          int    `json:"color_depth"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
}

// ID derives the stable fingerprint identifier from the combined attributes.
// It is a correlation key only, never proof of device identity.
func (f FingerprintData) ID() string {
	joined := strings.Join([]string{
		f.CanvasHash,
		f.WebGLHash,
		f.AudioHash,
		f.ScreenResolution,
		f.Timezone,
		f.Language,
		f.Platform,
		f.UserAgent,
		strconv.Itoa(f.ColorDepth),
		strconv.Itoa(f.HardwareConcurrency),
	}, "|")

	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])[:16]
}

// Sighting is one observed use of a fingerprint. Sightings are append-only.
type Sighting struct {
	FingerprintID string    `json:"fingerprint_id" db:"fingerprint_id"`
	AccountRef    string    `json:"account_ref" db:"account_ref"`
	Outcome       string    `json:"outcome" db:"outcome"`
	SeenAt        time.Time `json:"seen_at" db:"seen_at"`
}

// Signal is one scored trust input with a human-readable reason.
type Signal struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Signal names, in the order they are reported.
const (
	SignalFingerprint    = "fingerprint"
	SignalIPReputation   = "ip_reputation"
	SignalEmailPattern   = "email_pattern"
	SignalBrowserSignals = "browser_signals"
)

// Recommendation is the gate decision derived from the aggregate score.
type Recommendation string

const (
	RecommendAllow   Recommendation = "allow"
	RecommendCaptcha Recommendation = "captcha"
	RecommendBlock   Recommendation = "block"
)

// TrustAssessment is the result of scoring one signup attempt.
type TrustAssessment struct {
	Score          float64        `json:"score"`
	Signals        []Signal       `json:"signals"`
	Recommendation Recommendation `json:"recommendation"`
	FingerprintID  string         `json:"fingerprint_id"`
}
