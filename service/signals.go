package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/katanaid/katana/core"
)

// fingerprintSignal scores device reuse. A never-seen fingerprint scores
// high; the score drops monotonically with the number of distinct other
// accounts in the rolling window and with sighting velocity.
func (s *TrustService) fingerprintSignal(ctx context.Context, fingerprintID, email string) (core.Signal, error) {
	history, err := s.registry.History(ctx, fingerprintID)
	if err != nil {
		return core.Signal{}, fmt.Errorf("failed to read fingerprint history: %w", err)
	}

	if len(history) == 0 {
		return core.Signal{Name: core.SignalFingerprint, Score: 1.0, Reason: "New device"}, nil
	}

	now := time.Now()
	self := strings.ToLower(email)

	others := make(map[string]struct{})
	var recent []core.Sighting
	for _, sighting := range history {
		if sighting.SeenAt.After(now.Add(-s.cfg.DistinctWindow)) && sighting.AccountRef != self {
			others[sighting.AccountRef] = struct{}{}
		}
		if sighting.SeenAt.After(now.Add(-s.cfg.VelocityWindow)) {
			recent = append(recent, sighting)
		}
	}

	score := 1.0
	var reasons []string

	if n := len(others); n > 0 {
		score -= 0.3 * float64(n)
		reasons = append(reasons, fmt.Sprintf("Seen with %d other account(s) recently", n))
	}

	if len(recent) >= s.cfg.VelocityThreshold {
		score -= 0.2
		reasons = append(reasons, fmt.Sprintf("High signup velocity: %d sightings in the last %s (avg gap %s)",
			len(recent), s.cfg.VelocityWindow, meanGap(recent)))
	}

	reason := "Known device, no abuse pattern"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return core.Signal{Name: core.SignalFingerprint, Score: clamp01(score), Reason: reason}, nil
}

// meanGap returns the average interval between consecutive sightings.
func meanGap(sightings []core.Sighting) time.Duration {
	if len(sightings) < 2 {
		return 0
	}

	gaps := make([]float64, 0, len(sightings)-1)
	for i := 1; i < len(sightings); i++ {
		gaps = append(gaps, sightings[i].SeenAt.Sub(sightings[i-1].SeenAt).Seconds())
	}

	mean, err := stats.Mean(gaps)
	if err != nil {
		return 0
	}

	return time.Duration(mean * float64(time.Second)).Round(time.Second)
}

// reputationSignal delegates to the injected provider. When the feed is
// unreachable the sub-score falls back to the neutral default 0.5 with its
// weight retained, so the aggregate stays deterministic.
func (s *TrustService) reputationSignal(ctx context.Context, clientIP string) core.Signal {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.ReputationTimeout)
	defer cancel()

	score, reason, err := s.reputation.Score(rctx, clientIP)
	if err != nil {
		return core.Signal{
			Name:   core.SignalIPReputation,
			Score:  0.5,
			Reason: "Reputation feed unavailable, neutral default applied",
		}
	}

	return core.Signal{Name: core.SignalIPReputation, Score: clamp01(score), Reason: reason}
}

// emailSignal scores the address shape: disposable domains, random-looking
// local parts and similarity to previously blocked addresses are penalized.
func (s *TrustService) emailSignal(email string) core.Signal {
	local, domain, ok := splitEmail(email)
	if !ok {
		return core.Signal{Name: core.SignalEmailPattern, Score: 0.1, Reason: "Malformed address"}
	}

	score := 1.0
	var reasons []string

	if _, found := s.disposable[domain]; found {
		score -= 0.5
		reasons = append(reasons, "Disposable email domain")
	}

	if s.isBlockedShape(email) {
		score -= 0.4
		reasons = append(reasons, "Resembles a previously blocked address")
	}

	bits := entropyBits(local)
	digits := digitRatio(local)
	switch {
	case len(local) >= 10 && bits >= 40:
		score -= 0.3
		reasons = append(reasons, "Random-looking local part")
	case len(local) >= 8 && digits > 0.4:
		score -= 0.2
		reasons = append(reasons, "Heavily numeric local part")
	}

	reason := "Structured address"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return core.Signal{Name: core.SignalEmailPattern, Score: clamp01(score), Reason: reason}
}

// browserSignal cross-checks the reported fields for internal consistency.
// Combinations typical of headless or automated environments are flagged.
func (s *TrustService) browserSignal(fp core.FingerprintData) core.Signal {
	score := 1.0
	var reasons []string

	ua := strings.ToLower(fp.UserAgent)
	switch {
	case ua == "":
		score -= 0.5
		reasons = append(reasons, "No user agent reported")
	case strings.Contains(ua, "headless") || strings.Contains(ua, "phantomjs") || strings.Contains(ua, "selenium"):
		score -= 0.5
		reasons = append(reasons, "Automation markers in user agent")
	}

	if mismatch := platformMismatch(fp.Platform, ua); mismatch {
		score -= 0.3
		reasons = append(reasons, "Platform inconsistent with user agent")
	}

	if fp.ColorDepth != 0 && fp.ColorDepth < 24 {
		score -= 0.2
		reasons = append(reasons, "Unusual color depth")
	}

	if fp.HardwareConcurrency == 0 {
		score -= 0.2
		reasons = append(reasons, "No CPU concurrency reported")
	}

	if !plausibleResolution(fp.ScreenResolution) {
		score -= 0.2
		reasons = append(reasons, "Implausible screen resolution")
	}

	reason := "Normal browser profile"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}

	return core.Signal{Name: core.SignalBrowserSignals, Score: clamp01(score), Reason: reason}
}

func platformMismatch(platform, lowerUA string) bool {
	if platform == "" || lowerUA == "" {
		return false
	}

	p := strings.ToLower(platform)
	switch {
	case strings.HasPrefix(p, "win"):
		return !strings.Contains(lowerUA, "windows")
	case strings.HasPrefix(p, "mac"):
		return !strings.Contains(lowerUA, "mac")
	case strings.HasPrefix(p, "linux"):
		return !strings.Contains(lowerUA, "linux") && !strings.Contains(lowerUA, "android") && !strings.Contains(lowerUA, "x11")
	case strings.HasPrefix(p, "iphone"), strings.HasPrefix(p, "ipad"):
		return !strings.Contains(lowerUA, "iphone") && !strings.Contains(lowerUA, "ipad")
	}

	return false
}

func plausibleResolution(resolution string) bool {
	width, height, found := strings.Cut(resolution, "x")
	if !found {
		return false
	}

	w, err := strconv.Atoi(strings.TrimSpace(width))
	if err != nil {
		return false
	}
	h, err := strconv.Atoi(strings.TrimSpace(height))
	if err != nil {
		return false
	}

	return w >= 320 && w <= 7680 && h >= 240 && h <= 4320
}

func splitEmail(email string) (local, domain string, ok bool) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	local, domain, found := strings.Cut(trimmed, "@")
	if !found || local == "" || domain == "" || !strings.Contains(domain, ".") {
		return "", "", false
	}
	return local, domain, true
}

// emailSkeleton reduces an address to its shape: digit runs collapse to '#'
// so "user123@x.com" and "user457@x.com" share a skeleton.
func emailSkeleton(email string) string {
	var b strings.Builder
	lastDigit := false
	for _, r := range strings.ToLower(strings.TrimSpace(email)) {
		if unicode.IsDigit(r) {
			if !lastDigit {
				b.WriteByte('#')
			}
			lastDigit = true
			continue
		}
		lastDigit = false
		b.WriteRune(r)
	}
	return b.String()
}

// entropyBits estimates the information content of a string from its
// character frequency distribution.
func entropyBits(value string) float64 {
	if value == "" {
		return 0
	}

	counts := make(map[rune]float64)
	total := 0.0
	for _, r := range value {
		counts[r]++
		total++
	}

	dist := make([]float64, 0, len(counts))
	for _, c := range counts {
		dist = append(dist, c/total)
	}

	bitsPerChar := stat.Entropy(dist) / math.Ln2
	return bitsPerChar * total
}

func digitRatio(value string) float64 {
	if value == "" {
		return 0
	}

	digits := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits++
		}
	}

	return float64(digits) / float64(len([]rune(value)))
}
