package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/katanaid/katana/adapters/accounts"
	"github.com/katanaid/katana/adapters/registry"
	"github.com/katanaid/katana/adapters/reputation"
	"github.com/katanaid/katana/adapters/store"
	"github.com/katanaid/katana/adapters/tokenizer"
	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, cfg RouterConfig) *gin.Engine {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	sessions := store.NewMemorySessionStore()
	t.Cleanup(sessions.Close)

	tk := tokenizer.NewJWTTokenizer(key)

	captchaService := service.NewCaptchaService(sessions, tk, nil, service.DefaultGestureConfig())
	trustService := service.NewTrustService(registry.NewMemoryRegistry(), reputation.NewStaticProvider(1.0), nil, service.DefaultScoringConfig())
	signupService := service.NewSignupService(tk, store.NewMemoryTokenLedger(), accounts.NewMemoryAccountStore())

	return SetupRouter(NewHandlers(captchaService, trustService, signupService), cfg)
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:51515"

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// solveChallenge turns a create response into a passing verify request body.
func solveChallenge(t *testing.T, created map[string]interface{}) map[string]interface{} {
	t.Helper()

	kind := core.ChallengeKind(created["challenge"].(string))
	dir, ok := kind.Direction()
	require.True(t, ok, "unknown challenge kind %q", kind)

	return map[string]interface{}{
		"session_id":  created["session_id"],
		"start_x":     200 - 150*dir.X,
		"start_y":     150 - 150*dir.Y,
		"end_x":       200 + 150*dir.X,
		"end_y":       150 + 150*dir.Y,
		"duration_ms": 450,
		"point_count": 28,
	}
}

// passCaptcha runs the create/verify flow and returns a fresh token.
func passCaptcha(t *testing.T, router *gin.Engine) string {
	t.Helper()

	created := decodeBody(t, performJSON(t, router, http.MethodPost, "/api/captcha/create", nil))

	w := performJSON(t, router, http.MethodPost, "/api/captcha/verify", solveChallenge(t, created))
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	return body["token"].(string)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	w := performJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestCreateCaptcha(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	w := performJSON(t, router, http.MethodPost, "/api/captcha/create", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	require.Len(t, body["session_id"], 32)
	require.NotEmpty(t, body["challenge"])
	require.NotEmpty(t, body["instruction"])
	require.EqualValues(t, 120, body["expires_in"])
}

func TestVerifyCaptchaFlow(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	created := decodeBody(t, performJSON(t, router, http.MethodPost, "/api/captcha/create", nil))
	solution := solveChallenge(t, created)

	w := performJSON(t, router, http.MethodPost, "/api/captcha/verify", solution)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.NotEmpty(t, body["token"])

	// The session is one-shot; the same solution fails the second time and
	// the response does not say why.
	w = performJSON(t, router, http.MethodPost, "/api/captcha/verify", solution)
	require.Equal(t, http.StatusOK, w.Code)

	body = decodeBody(t, w)
	require.Equal(t, false, body["success"])
	require.NotContains(t, body, "token")
	require.NotContains(t, body, "error")
}

func TestVerifyCaptchaRejections(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	t.Run("UnknownSession", func(t *testing.T) {
		w := performJSON(t, router, http.MethodPost, "/api/captcha/verify", map[string]interface{}{
			"session_id": "does-not-exist",
			"end_x":      200.0, "duration_ms": 450, "point_count": 28,
		})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, false, decodeBody(t, w)["success"])
	})

	t.Run("MissingSessionID", func(t *testing.T) {
		w := performJSON(t, router, http.MethodPost, "/api/captcha/verify", map[string]interface{}{
			"end_x": 200.0,
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("WrongDirection", func(t *testing.T) {
		created := decodeBody(t, performJSON(t, router, http.MethodPost, "/api/captcha/create", nil))

		solution := solveChallenge(t, created)
		solution["start_x"], solution["end_x"] = solution["end_x"], solution["start_x"]
		solution["start_y"], solution["end_y"] = solution["end_y"], solution["start_y"]

		w := performJSON(t, router, http.MethodPost, "/api/captcha/verify", solution)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, false, decodeBody(t, w)["success"])
	})
}

func TestTrustScore(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	w := performJSON(t, router, http.MethodPost, "/api/trust/score", map[string]interface{}{
		"email": "alice.smith@example.com",
		"fingerprint": map[string]interface{}{
			"canvas_hash":          "c4nv4s",
			"webgl_hash":           "w3bgl",
			"audio_hash":           "aud10",
			"screen_resolution":    "1920x1080",
			"timezone":             "Europe/Berlin",
			"language":             "en-US",
			"platform":             "Win32",
			"user_agent":           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
			"color_depth":          24,
			"hardware_concurrency": 8,
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	require.InDelta(t, 1.0, body["score"].(float64), 1e-9)
	require.Equal(t, "allow", body["recommendation"])
	require.Len(t, body["fingerprint_id"], 16)
	require.Len(t, body["signals"], 4)
}

func TestTrustScoreMissingEmail(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	w := performJSON(t, router, http.MethodPost, "/api/trust/score", map[string]interface{}{
		"fingerprint": map[string]interface{}{"canvas_hash": "c4nv4s"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignup(t *testing.T) {
	router := newTestRouter(t, DefaultRouterConfig())

	t.Run("Success", func(t *testing.T) {
		token := passCaptcha(t, router)

		w := performJSON(t, router, http.MethodPost, "/api/signup", map[string]interface{}{
			"captcha_token": token,
			"username":      "alice",
			"email":         "alice@example.com",
			"password":      "hunter2hunter2",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		require.Equal(t, "User created successfully", decodeBody(t, w)["message"])

		// The token is spent.
		w = performJSON(t, router, http.MethodPost, "/api/signup", map[string]interface{}{
			"captcha_token": token,
			"username":      "alice2",
			"email":         "alice2@example.com",
			"password":      "hunter2hunter2",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("BogusToken", func(t *testing.T) {
		w := performJSON(t, router, http.MethodPost, "/api/signup", map[string]interface{}{
			"captcha_token": "garbage",
			"username":      "bob",
			"email":         "bob@example.com",
			"password":      "hunter2hunter2",
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		token := passCaptcha(t, router)

		w := performJSON(t, router, http.MethodPost, "/api/signup", map[string]interface{}{
			"captcha_token": token,
			"username":      "bob",
			"email":         "bob@example.com",
			"password":      "short",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		token := passCaptcha(t, router)

		w := performJSON(t, router, http.MethodPost, "/api/signup", map[string]interface{}{
			"captcha_token": token,
			"username":      "carol",
			"email":         "alice@example.com",
			"password":      "hunter2hunter2",
		})
		require.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(t, RouterConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	for i := 0; i < 2; i++ {
		w := performJSON(t, router, http.MethodPost, "/api/captcha/create", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := performJSON(t, router, http.MethodPost, "/api/captcha/create", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// Verification is not behind the limiter.
	w = performJSON(t, router, http.MethodPost, "/api/captcha/verify", map[string]interface{}{
		"session_id": "does-not-exist",
	})
	require.Equal(t, http.StatusOK, w.Code)
}
