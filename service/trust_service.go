package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// Weights are the per-signal aggregation weights. They must sum to 1; the
// config loader validates this before the service is constructed.
type Weights struct {
	Fingerprint    float64
	IPReputation   float64
	EmailPattern   float64
	BrowserSignals float64
}

// ScoringConfig holds the tunables of the trust scoring engine.
type ScoringConfig struct {
	Weights Weights

	// Recommendation thresholds: score >= AllowThreshold allows, score >=
	// CaptchaThreshold challenges, anything below blocks.
	AllowThreshold   float64
	CaptchaThreshold float64

	// DistinctWindow is the rolling window for counting distinct accounts
	// under one fingerprint; VelocityWindow for counting raw sightings.
	DistinctWindow    time.Duration
	VelocityWindow    time.Duration
	VelocityThreshold int

	ReputationTimeout time.Duration

	DisposableDomains []string
}

// DefaultScoringConfig returns the production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Weights: Weights{
			Fingerprint:    0.35,
			IPReputation:   0.25,
			EmailPattern:   0.20,
			BrowserSignals: 0.20,
		},
		AllowThreshold:    0.7,
		CaptchaThreshold:  0.4,
		DistinctWindow:    7 * 24 * time.Hour,
		VelocityWindow:    time.Hour,
		VelocityThreshold: 5,
		ReputationTimeout: 2 * time.Second,
		DisposableDomains: []string{
			"mailinator.com",
			"guerrillamail.com",
			"10minutemail.com",
			"tempmail.com",
			"throwaway.email",
			"yopmail.com",
			"sharklasers.com",
			"getnada.com",
		},
	}
}

// TrustService combines fingerprint reuse, IP reputation, email pattern and
// browser signals into one gate recommendation.
type TrustService struct {
	registry   ports.FingerprintRegistry
	reputation ports.ReputationProvider
	events     ports.EventPublisher
	cfg        ScoringConfig

	disposable map[string]struct{}

	// blockedSkeletons remembers the shape of addresses that were blocked,
	// so near-identical variants are penalized on later attempts.
	mu               sync.Mutex
	blockedSkeletons map[string]struct{}
}

// NewTrustService creates a new trust scoring engine. The event publisher may
// be nil.
func NewTrustService(registry ports.FingerprintRegistry, reputation ports.ReputationProvider, events ports.EventPublisher, cfg ScoringConfig) *TrustService {
	disposable := make(map[string]struct{}, len(cfg.DisposableDomains))
	for _, domain := range cfg.DisposableDomains {
		disposable[strings.ToLower(domain)] = struct{}{}
	}

	return &TrustService{
		registry:         registry,
		reputation:       reputation,
		events:           events,
		cfg:              cfg,
		disposable:       disposable,
		blockedSkeletons: make(map[string]struct{}),
	}
}

// Assess scores one signup attempt and records the sighting so future
// assessments see it.
func (s *TrustService) Assess(ctx context.Context, email, clientIP string, fp core.FingerprintData) (*core.TrustAssessment, error) {
	fingerprintID := fp.ID()

	signals, err := s.ComputeSignals(ctx, email, clientIP, fingerprintID, fp)
	if err != nil {
		return nil, err
	}

	score := s.cfg.Weights.Fingerprint*signals[0].Score +
		s.cfg.Weights.IPReputation*signals[1].Score +
		s.cfg.Weights.EmailPattern*signals[2].Score +
		s.cfg.Weights.BrowserSignals*signals[3].Score

	assessment := &core.TrustAssessment{
		Score:          score,
		Signals:        signals,
		Recommendation: s.recommend(score),
		FingerprintID:  fingerprintID,
	}

	sighting := core.Sighting{
		FingerprintID: fingerprintID,
		AccountRef:    strings.ToLower(email),
		Outcome:       string(assessment.Recommendation),
		SeenAt:        time.Now(),
	}
	if err := s.registry.Record(ctx, sighting); err != nil {
		return nil, fmt.Errorf("failed to record sighting: %w", err)
	}

	if assessment.Recommendation == core.RecommendBlock {
		s.rememberBlocked(email)
	}

	if s.events != nil {
		if err := s.events.PublishAssessment(ctx, email, assessment); err != nil {
			log.Printf("failed to publish assessment event: %v", err)
		}
	}

	return assessment, nil
}

// ComputeSignals evaluates the four sub-scores without side effects. All four
// run concurrently; the registry and reputation lookups are the only I/O.
func (s *TrustService) ComputeSignals(ctx context.Context, email, clientIP, fingerprintID string, fp core.FingerprintData) ([]core.Signal, error) {
	var (
		fpSignal      core.Signal
		ipSignal      core.Signal
		emailSignal   core.Signal
		browserSignal core.Signal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		signal, err := s.fingerprintSignal(gctx, fingerprintID, email)
		if err != nil {
			return err
		}
		fpSignal = signal
		return nil
	})
	g.Go(func() error {
		ipSignal = s.reputationSignal(gctx, clientIP)
		return nil
	})
	g.Go(func() error {
		emailSignal = s.emailSignal(email)
		return nil
	})
	g.Go(func() error {
		browserSignal = s.browserSignal(fp)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return []core.Signal{fpSignal, ipSignal, emailSignal, browserSignal}, nil
}

func (s *TrustService) recommend(score float64) core.Recommendation {
	switch {
	case score >= s.cfg.AllowThreshold:
		return core.RecommendAllow
	case score >= s.cfg.CaptchaThreshold:
		return core.RecommendCaptcha
	default:
		return core.RecommendBlock
	}
}

func (s *TrustService) rememberBlocked(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blockedSkeletons[emailSkeleton(email)] = struct{}{}
}

func (s *TrustService) isBlockedShape(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.blockedSkeletons[emailSkeleton(email)]
	return ok
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
