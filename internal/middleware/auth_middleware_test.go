package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
)

func newTestJWT(t *testing.T) (*iauth.JWTService, string) {
	t.Helper()

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:    "user-123",
		SessionID: "session-abc",
	})
	require.NoError(t, err)
	return jwtSvc, token
}

func identityHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":    c.GetString(CtxUserIDKey),
		"session_id": c.GetString(CtxSessionIDKey),
	})
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc, token := newTestJWT(t)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc), identityHandler)

	// Missing Authorization header -> 401
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	// Garbage token -> 401
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Query token is ignored unless explicitly allowed
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secure?access_token="+token, nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token -> downstream handler executes
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "user-123", payload["user_id"])
	require.Equal(t, "session-abc", payload["session_id"])
}

func TestAuthMiddlewareQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc, token := newTestJWT(t)

	r := gin.New()
	r.GET("/ws", Auth(jwtSvc, AllowQueryToken()), identityHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?access_token="+token, nil))
	require.Equal(t, http.StatusOK, w.Code)
}
