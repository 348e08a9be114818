package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AudienceVerified marks a token minted for a successfully verified gesture.
const AudienceVerified = "captcha:verified"

// VerificationClaims are the JWT claims of a verification token. The consumed
// session ID travels in the subject so downstream consumers never need the
// session store.
type VerificationClaims struct {
	jwt.RegisteredClaims
}
