package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/api"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/app"
	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	sharedtestutil "github.com/xoen85/accept-connect-app-oqvfkg/internal/database/testutil"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/middleware"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// Clock is a manually advanced clock shared by every service in an Env.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Hub      *notifications.Hub
	Messages *services.MessageService
	Clock    *Clock
}

// NewEnv provisions a fresh handler test environment with migrations applied. Rate limiting is
// disabled so scenario tests can issue many requests.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	clock := &Clock{current: time.Now().UTC().Truncate(time.Second)}

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{
				RefreshTTL:    24 * time.Hour,
				RefreshLength: 48,
			},
		},
		Messages: app.MessagesConfig{
			LinkTTL:          24 * time.Hour,
			SingleUseDefault: true,
			ShareBaseURL:     "https://share.example.com/m",
		},
		Proximity: app.ProximityConfig{
			SessionTTL:    5 * time.Minute,
			MaxSessionTTL: time.Hour,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
		},
		Features: app.FeatureConfig{
			Notifications: app.NotificationConfig{Enabled: true},
		},
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Clock = clock.Now
	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, sessionCfg)
	require.NoError(t, err)

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	hub := notifications.NewHub(nil)

	messages, err := services.NewMessageService(db,
		append(cfg.Messages.ServiceOptions(nil, hub), services.WithMessageClock(clock.Now))...)
	require.NoError(t, err)

	proximity, err := services.NewProximityService(db, messages,
		append(cfg.Proximity.ServiceOptions(nil, hub), services.WithProximityClock(clock.Now))...)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Deps{
		Config:    cfg,
		DB:        db,
		JWT:       jwtSvc,
		Sessions:  sessionSvc,
		Users:     users,
		Messages:  messages,
		Proximity: proximity,
		Hub:       hub,
		RateStore: middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Hub:      hub,
		Messages: messages,
		Clock:    clock,
	}
}

// TokenPair mirrors the handler login response payload.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserPayload captures the user fields returned from auth endpoints.
type UserPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Tokens TokenPair   `json:"tokens"`
	User   UserPayload `json:"user"`
}

// TestUser is a registered and logged-in account.
type TestUser struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	Token       string
	Refresh     string
}

// Register creates an account through the API and returns the decoded user.
func (e *Env) Register(email, password, displayName string) UserPayload {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	}, "")
	require.Equal(e.T, http.StatusCreated, w.Code, w.Body.String())

	var user UserPayload
	DecodeInto(e.T, DecodeResponse(e.T, w).Data, &user)
	return user
}

// Login authenticates with email and password and returns the issued token pair.
func (e *Env) Login(email, password string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	require.NotEmpty(e.T, result.Tokens.RefreshToken)
	require.Greater(e.T, result.Tokens.ExpiresIn, 0)
	return result
}

// CreateUser registers and logs in a fresh account with a random email.
func (e *Env) CreateUser(displayName string) TestUser {
	e.T.Helper()

	email := "user-" + uuid.NewString()[:8] + "@example.com"
	password := "Password123!"
	registered := e.Register(email, password, displayName)
	login := e.Login(email, password)

	return TestUser{
		ID:          registered.ID,
		Email:       email,
		Password:    password,
		DisplayName: registered.DisplayName,
		Token:       login.Tokens.AccessToken,
		Refresh:     login.Tokens.RefreshToken,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// RequireError asserts the recorder holds an error envelope with the given status and code.
func RequireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
