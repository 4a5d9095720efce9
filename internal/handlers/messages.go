package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	appErrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// MessageHandler exposes consent message creation, link resolution and responses.
type MessageHandler struct {
	messages *services.MessageService
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type createMessageRequest struct {
	Content        string `json:"content" validate:"notblank"`
	RecipientID    string `json:"recipient_id" validate:"omitempty,max=64"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
	// LinkExpiresIn is the link lifetime in milliseconds.
	LinkExpiresIn int64 `json:"link_expires_in" validate:"omitempty,min=1"`
	SingleUse     *bool `json:"single_use"`
}

type respondRequest struct {
	Action string `json:"action" validate:"required,oneof=accept reject"`
}

type messageDTO struct {
	ID            string                `json:"id"`
	SenderID      string                `json:"sender_id"`
	SenderName    string                `json:"sender_name"`
	RecipientID   *string               `json:"recipient_id,omitempty"`
	Content       string                `json:"content"`
	Status        models.MessageStatus  `json:"status"`
	Channel       models.MessageChannel `json:"channel"`
	SingleUse     bool                  `json:"single_use"`
	LinkUsed      bool                  `json:"link_used"`
	LinkExpiresAt *time.Time            `json:"link_expires_at,omitempty"`
	RespondedAt   *time.Time            `json:"responded_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	LinkToken     string                `json:"link_token,omitempty"`
	ShareURL      string                `json:"share_url,omitempty"`
}

type createMessageResponse struct {
	Message   messageDTO `json:"message"`
	LinkToken string     `json:"link_token"`
	ShareURL  string     `json:"share_url"`
}

type respondResponse struct {
	MessageID   string               `json:"message_id"`
	Status      models.MessageStatus `json:"status"`
	RecipientID *string              `json:"recipient_id,omitempty"`
	RespondedAt *time.Time           `json:"responded_at,omitempty"`
}

// newMessageDTO renders details. The link token and share URL are only included for callers that
// already hold the capability (the sender, or whoever presented the token).
func newMessageDTO(details *services.MessageDetails, includeLink bool) messageDTO {
	m := details.Message
	dto := messageDTO{
		ID:            m.ID,
		SenderID:      m.SenderID,
		SenderName:    details.SenderName,
		RecipientID:   m.RecipientID,
		Content:       m.Content,
		Status:        m.Status,
		Channel:       m.Channel,
		SingleUse:     m.SingleUse,
		LinkUsed:      m.LinkUsed,
		LinkExpiresAt: m.LinkExpiresAt,
		RespondedAt:   m.RespondedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if includeLink {
		dto.LinkToken = details.LinkToken()
		dto.ShareURL = details.ShareURL
	}
	return dto
}

// POST /api/messages
func (h *MessageHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req createMessageRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if strings.TrimSpace(req.RecipientID) != "" && strings.TrimSpace(req.RecipientEmail) != "" {
		response.Error(c, appErrors.NewBadRequest("specify either recipient_id or recipient_email, not both"))
		return
	}

	linkTTL, err := millisToDuration("link_expires_in", req.LinkExpiresIn)
	if err != nil {
		response.Error(c, err)
		return
	}

	details, err := h.messages.Create(requestContext(c), userID, services.CreateMessageInput{
		Content:        req.Content,
		RecipientID:    req.RecipientID,
		RecipientEmail: req.RecipientEmail,
		LinkExpiresIn:  linkTTL,
		SingleUse:      req.SingleUse,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, createMessageResponse{
		Message:   newMessageDTO(details, true),
		LinkToken: details.LinkToken(),
		ShareURL:  details.ShareURL,
	})
}

// GET /api/messages/link/:token
func (h *MessageHandler) ResolveLink(c *gin.Context) {
	details, err := h.messages.ResolveByToken(requestContext(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, newMessageDTO(details, true))
}

// GET /api/messages/link/:token/qr
func (h *MessageHandler) LinkQRCode(c *gin.Context) {
	size := parseIntQuery(c, "size", 0)
	png, err := h.messages.ShareQRCode(requestContext(c), c.Param("token"), size)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// POST /api/messages/:token/respond
func (h *MessageHandler) RespondByToken(c *gin.Context) {
	h.respond(c, services.RespondTarget{Token: c.Param("token")})
}

// POST /api/messages/id/:id/respond
func (h *MessageHandler) RespondByID(c *gin.Context) {
	h.respond(c, services.RespondTarget{MessageID: c.Param("id")})
}

func (h *MessageHandler) respond(c *gin.Context, target services.RespondTarget) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req respondRequest
	if !bindAndValidate(c, &req) {
		return
	}
	action, err := services.ParseResponseAction(req.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	message, err := h.messages.Respond(requestContext(c), userID, target, action)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, respondResponse{
		MessageID:   message.ID,
		Status:      message.Status,
		RecipientID: message.RecipientID,
		RespondedAt: message.RespondedAt,
	})
}

// GET /api/messages/id/:id
func (h *MessageHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	details, err := h.messages.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, newMessageDTO(details, details.Message.SenderID == userID))
}

// GET /api/messages/inbox
func (h *MessageHandler) Inbox(c *gin.Context) {
	h.list(c, false)
}

// GET /api/messages/sent
func (h *MessageHandler) Sent(c *gin.Context) {
	h.list(c, true)
}

func (h *MessageHandler) list(c *gin.Context, sent bool) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	opts := services.ListOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 20),
	}
	if raw := strings.ToLower(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.MessageStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.NewBadRequest("status must be one of: pending, accepted, rejected"))
			return
		}
		opts.Status = status
	}

	ctx := requestContext(c)
	var (
		items []services.MessageDetails
		total int64
		err   error
	)
	if sent {
		items, total, err = h.messages.ListSent(ctx, userID, opts)
	} else {
		items, total, err = h.messages.ListInbox(ctx, userID, opts)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	dtos := make([]messageDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, newMessageDTO(&items[i], sent))
	}

	response.SuccessWithMeta(c, http.StatusOK, dtos, response.NewMeta(max(opts.Page, 1), clampPerPage(opts.PerPage), total))
}

func clampPerPage(perPage int) int {
	switch {
	case perPage <= 0:
		return 20
	case perPage > 100:
		return 100
	default:
		return perPage
	}
}
