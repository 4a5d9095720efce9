package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	appErrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// ProximityHandler exposes the in-person handshake endpoints.
type ProximityHandler struct {
	proximity *services.ProximityService
}

// NewProximityHandler constructs a ProximityHandler.
func NewProximityHandler(proximity *services.ProximityService) *ProximityHandler {
	return &ProximityHandler{proximity: proximity}
}

type createSessionRequest struct {
	// TTL is the session lifetime in milliseconds; zero selects the server default.
	TTL int64 `json:"ttl" validate:"omitempty,min=1"`
}

type attachMessageRequest struct {
	Content string `json:"content" validate:"notblank"`
}

type proximitySessionResponse struct {
	SessionID      string    `json:"session_id"`
	ProximityToken string    `json:"proximity_token"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type sessionInfoResponse struct {
	SessionID     string    `json:"session_id"`
	InitiatorID   string    `json:"initiator_id"`
	InitiatorName string    `json:"initiator_name"`
	ExpiresAt     time.Time `json:"expires_at"`
	HasMessage    bool      `json:"has_message"`
	MessageID     string    `json:"message_id,omitempty"`
}

// POST /api/proximity/session
func (h *ProximityHandler) CreateSession(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createSessionRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &req) {
		return
	}

	ttl, err := millisToDuration("ttl", req.TTL)
	if err != nil {
		response.Error(c, err)
		return
	}

	session, err := h.proximity.CreateSession(requestContext(c), userID, ttl)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, proximitySessionResponse{
		SessionID:      session.ID,
		ProximityToken: session.ProximityToken,
		ExpiresAt:      session.ExpiresAt,
	})
}

// POST /api/proximity/session/:token/send
func (h *ProximityHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req attachMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}

	message, err := h.proximity.AttachMessage(requestContext(c), userID, c.Param("token"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message_id": message.ID})
}

// POST /api/proximity/session/:token/connect
func (h *ProximityHandler) Connect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	info, err := h.proximity.Connect(requestContext(c), userID, c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, sessionInfoResponse{
		SessionID:     info.SessionID,
		InitiatorID:   info.InitiatorID,
		InitiatorName: info.InitiatorName,
		ExpiresAt:     info.ExpiresAt,
		HasMessage:    info.HasMessage,
		MessageID:     info.MessageID,
	})
}

// GET /api/proximity/session/:token/message
func (h *ProximityHandler) FetchMessage(c *gin.Context) {
	details, err := h.proximity.FetchMessage(requestContext(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, newMessageDTO(details, true))
}
