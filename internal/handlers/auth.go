package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/xoen85/accept-connect-app-oqvfkg/internal/auth"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/middleware"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	appErrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/metrics"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// AuthHandler manages account and session flows (register/login/refresh/logout/me).
type AuthHandler struct {
	users    *services.UserService
	sessions *iauth.SessionService
}

func NewAuthHandler(users *services.UserService, sessions *iauth.SessionService) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email,max=320"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,urltoken"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

func newTokenResponse(pair iauth.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterUserInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, newUserResponse(user))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	user, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		respondError(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(ctx, user.ID, iauth.SessionMetadata{
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		DisplayName: user.DisplayName,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		respondError(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"tokens": newTokenResponse(pair),
		"user":   newUserResponse(user),
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.RefreshSession(requestContext(c), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		if isSessionError(err) {
			response.Error(c, appErrors.ErrUnauthorized.WithMessage("Refresh token is invalid or expired"))
			return
		}
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newTokenResponse(pair))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sid := c.GetString(middleware.CtxSessionIDKey)
	if sid == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(requestContext(c), sid); err != nil && !isSessionError(err) {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, newUserResponse(user))
}

// DELETE /api/auth/me
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ctx := requestContext(c)
	if err := h.sessions.RevokeUserSessions(ctx, userID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.users.Delete(ctx, userID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func isSessionError(err error) bool {
	return errors.Is(err, iauth.ErrSessionNotFound) ||
		errors.Is(err, iauth.ErrSessionRevoked) ||
		errors.Is(err, iauth.ErrSessionExpired) ||
		errors.Is(err, iauth.ErrSessionInvalidToken)
}
