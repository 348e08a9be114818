package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// DefaultTokenValidity is the validity window of a verification token. It is
// independent of the challenge session's own TTL.
const DefaultTokenValidity = 5 * time.Minute

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs.
type JWTTokenizer struct {
	signKey  *ecdsa.PrivateKey
	validity time.Duration

	// graceKeys are retired public keys still accepted during a configured
	// rotation grace period. Empty means tokens from retired keys are
	// rejected outright.
	graceKeys []*ecdsa.PublicKey
}

// Option configures a JWTTokenizer.
type Option func(*JWTTokenizer)

// WithValidity overrides the token validity window.
func WithValidity(d time.Duration) Option {
	return func(t *JWTTokenizer) { t.validity = d }
}

// WithGraceKeys accepts tokens signed by the given retired keys.
func WithGraceKeys(keys ...*ecdsa.PublicKey) Option {
	return func(t *JWTTokenizer) { t.graceKeys = keys }
}

// NewJWTTokenizer creates a new JWT tokenizer signing with the given key.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, opts ...Option) *JWTTokenizer {
	t := &JWTTokenizer{
		signKey:  signKey,
		validity: DefaultTokenValidity,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Issue mints a signed verification token bound to a session.
func (t *JWTTokenizer) Issue(sessionID string) (string, error) {
	now := time.Now()
	claims := VerificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{AudienceVerified},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signed, err := token.SignedString(t.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate checks signature integrity and expiry. The check is pure
// computation; no store is consulted.
func (t *JWTTokenizer) Validate(tokenStr string) (*core.VerificationClaims, error) {
	claims, err := t.parse(tokenStr, &t.signKey.PublicKey)
	if err == nil {
		return claims, nil
	}
	if errors.Is(err, core.ErrTokenExpired) {
		return nil, err
	}

	// Retired keys are only consulted when a grace period is configured.
	for _, key := range t.graceKeys {
		if graceClaims, graceErr := t.parse(tokenStr, key); graceErr == nil {
			return graceClaims, nil
		}
	}

	return nil, err
}

func (t *JWTTokenizer) parse(tokenStr string, key *ecdsa.PublicKey) (*core.VerificationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &VerificationClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithAudience(AudienceVerified))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*VerificationClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	return &core.VerificationClaims{
		SessionID: claims.Subject,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)
