package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the process-wide configuration, read from the environment. An
// optional .env file is loaded first so local setups need no exported vars.
type Config struct {
	ListenAddr string

	// RedisURL selects the shared stores; empty means in-memory adapters
	// (single node only). PostgresDSN selects durable sighting and account
	// storage; empty means in-memory.
	RedisURL    string
	PostgresDSN string

	// ReputationURL points at the external IP reputation feed; empty means
	// the built-in static provider.
	ReputationURL     string
	ReputationTimeout time.Duration

	SessionTTL    time.Duration
	TokenValidity time.Duration

	SigningKeyPEM string

	AngleToleranceDeg float64
	MinDurationMS     int64
	MaxDurationMS     int64
	MinPointCount     int
	MinStrokeLength   float64

	WeightFingerprint    float64
	WeightIPReputation   float64
	WeightEmailPattern   float64
	WeightBrowserSignals float64

	AllowThreshold   float64
	CaptchaThreshold float64

	DistinctWindow    time.Duration
	VelocityWindow    time.Duration
	VelocityThreshold int

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:        envString("KATANA_LISTEN_ADDR", ":8080"),
		RedisURL:          os.Getenv("KATANA_REDIS_URL"),
		PostgresDSN:       os.Getenv("KATANA_POSTGRES_DSN"),
		ReputationURL:     os.Getenv("KATANA_REPUTATION_URL"),
		SigningKeyPEM:     os.Getenv("KATANA_SIGNING_KEY_PEM"),
		ReputationTimeout: envDuration("KATANA_REPUTATION_TIMEOUT", 2*time.Second),
		SessionTTL:        envDuration("KATANA_SESSION_TTL", 120*time.Second),
		TokenValidity:     envDuration("KATANA_TOKEN_VALIDITY", 5*time.Minute),
		AngleToleranceDeg: envFloat("KATANA_ANGLE_TOLERANCE_DEG", 30),
		MinDurationMS:     envInt64("KATANA_MIN_DURATION_MS", 80),
		MaxDurationMS:     envInt64("KATANA_MAX_DURATION_MS", 10_000),
		MinPointCount:     envInt("KATANA_MIN_POINT_COUNT", 3),
		MinStrokeLength:   envFloat("KATANA_MIN_STROKE_LENGTH", 100),
		AllowThreshold:    envFloat("KATANA_ALLOW_THRESHOLD", 0.7),
		CaptchaThreshold:  envFloat("KATANA_CAPTCHA_THRESHOLD", 0.4),
		DistinctWindow:    envDuration("KATANA_DISTINCT_WINDOW", 7*24*time.Hour),
		VelocityWindow:    envDuration("KATANA_VELOCITY_WINDOW", time.Hour),
		VelocityThreshold: envInt("KATANA_VELOCITY_THRESHOLD", 5),
		RateLimitRequests: envInt("KATANA_RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   envDuration("KATANA_RATE_LIMIT_WINDOW", time.Minute),
	}

	weights, err := loadWeights()
	if err != nil {
		return nil, err
	}
	cfg.WeightFingerprint = weights[0]
	cfg.WeightIPReputation = weights[1]
	cfg.WeightEmailPattern = weights[2]
	cfg.WeightBrowserSignals = weights[3]

	if cfg.CaptchaThreshold >= cfg.AllowThreshold {
		return nil, fmt.Errorf("captcha threshold %.2f must be below allow threshold %.2f",
			cfg.CaptchaThreshold, cfg.AllowThreshold)
	}

	return cfg, nil
}

// loadWeights parses the per-signal weights as decimals so the sum-to-one
// check is exact rather than subject to float drift.
func loadWeights() ([4]float64, error) {
	names := [4]string{
		"KATANA_WEIGHT_FINGERPRINT",
		"KATANA_WEIGHT_IP_REPUTATION",
		"KATANA_WEIGHT_EMAIL_PATTERN",
		"KATANA_WEIGHT_BROWSER_SIGNALS",
	}
	defaults := [4]string{"0.35", "0.25", "0.20", "0.20"}

	var weights [4]float64
	sum := decimal.Zero
	for i, name := range names {
		raw := envString(name, defaults[i])
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return weights, fmt.Errorf("invalid weight %s=%q: %w", name, raw, err)
		}
		if d.IsNegative() {
			return weights, fmt.Errorf("weight %s must not be negative", name)
		}
		sum = sum.Add(d)
		weights[i] = d.InexactFloat64()
	}

	if !sum.Equal(decimal.NewFromInt(1)) {
		return weights, fmt.Errorf("signal weights must sum to 1, got %s", sum)
	}

	return weights, nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(name string, fallback int64) int64 {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
