package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/service"
)

// Handlers contains the HTTP handlers for the captcha and trust endpoints.
type Handlers struct {
	captcha *service.CaptchaService
	trust   *service.TrustService
	signup  *service.SignupService
}

// NewHandlers creates new handlers.
func NewHandlers(captcha *service.CaptchaService, trust *service.TrustService, signup *service.SignupService) *Handlers {
	return &Handlers{
		captcha: captcha,
		trust:   trust,
		signup:  signup,
	}
}

// CreateCaptcha handles POST /api/captcha/create.
func (h *Handlers) CreateCaptcha(c *gin.Context) {
	challenge, err := h.captcha.CreateChallenge(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":  challenge.SessionID,
		"challenge":   challenge.Kind,
		"instruction": challenge.Instruction,
		"expires_in":  challenge.ExpiresIn,
	})
}

// VerifyCaptcha handles POST /api/captcha/verify. Every verification failure
// collapses to {success: false}; the client never learns which check failed.
func (h *Handlers) VerifyCaptcha(c *gin.Context) {
	var req struct {
		SessionID  string  `json:"session_id" binding:"required"`
		StartX     float64 `json:"start_x"`
		StartY     float64 `json:"start_y"`
		EndX       float64 `json:"end_x"`
		EndY       float64 `json:"end_y"`
		DurationMS int64   `json:"duration_ms"`
		PointCount int     `json:"point_count"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	submission := core.GestureSubmission{
		StartX:     req.StartX,
		StartY:     req.StartY,
		EndX:       req.EndX,
		EndY:       req.EndY,
		DurationMS: req.DurationMS,
		PointCount: req.PointCount,
	}

	token, err := h.captcha.VerifyGesture(c.Request.Context(), req.SessionID, submission)
	if err != nil {
		if errors.Is(err, core.ErrStoreUnavailable) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// TrustScore handles POST /api/trust/score.
func (h *Handlers) TrustScore(c *gin.Context) {
	var req struct {
		Fingerprint core.FingerprintData `json:"fingerprint" binding:"required"`
		Email       string               `json:"email" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	assessment, err := h.trust.Assess(c.Request.Context(), req.Email, c.ClientIP(), req.Fingerprint)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute trust score"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":          assessment.Score,
		"signals":        assessment.Signals,
		"recommendation": assessment.Recommendation,
		"fingerprint_id": assessment.FingerprintID,
	})
}

// Signup handles POST /api/signup. It spends the verification token minted by
// a successful gesture check.
func (h *Handlers) Signup(c *gin.Context) {
	var req struct {
		CaptchaToken string `json:"captcha_token" binding:"required"`
		Username     string `json:"username" binding:"required"`
		Email        string `json:"email" binding:"required"`
		Password     string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, err := h.signup.CreateAccount(c.Request.Context(), req.CaptchaToken, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenExpired), errors.Is(err, core.ErrTokenRedeemed):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Captcha verification required"})
		case errors.Is(err, core.ErrInvalidAccount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrAccountExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
