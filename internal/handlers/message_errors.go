package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/services"
	appErrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/response"
)

// translateServiceError maps message and proximity sentinels onto API errors. Unknown errors
// become 500s with the cause attached for logging.
func translateServiceError(err error) error {
	var appErr *appErrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr

	case errors.Is(err, services.ErrActorRequired):
		return appErrors.ErrUnauthorized

	case errors.Is(err, services.ErrMessageNotFound):
		return appErrors.NewNotFound("Message not found")
	case errors.Is(err, services.ErrRecipientNotFound):
		return appErrors.NewNotFound("Recipient not found")
	case errors.Is(err, services.ErrSessionNotFound):
		return appErrors.NewNotFound("Proximity session not found")
	case errors.Is(err, services.ErrSessionMessageMissing):
		return appErrors.NewNotFound("No message has been shared in this session yet")

	case errors.Is(err, services.ErrLinkExpired):
		return appErrors.ErrLinkExpired
	case errors.Is(err, services.ErrLinkAlreadyUsed):
		return appErrors.ErrLinkAlreadyUsed
	case errors.Is(err, services.ErrSessionExpired):
		return appErrors.ErrSessionExpired

	case errors.Is(err, services.ErrMessageAlreadyAnswered):
		return appErrors.ErrConflict.WithMessage("This message has already been answered")

	case errors.Is(err, services.ErrNotMessageRecipient):
		return appErrors.ErrForbidden.WithMessage("You are not the recipient of this message")
	case errors.Is(err, services.ErrNotSessionInitiator):
		return appErrors.ErrForbidden.WithMessage("Only the session initiator can share a message")

	case errors.Is(err, services.ErrMessageContentRequired):
		return appErrors.NewBadRequest("content is required")
	case errors.Is(err, services.ErrMessageContentTooLong):
		return appErrors.NewBadRequest("content is too long")
	case errors.Is(err, services.ErrInvalidLinkTTL):
		return appErrors.NewBadRequest("link_expires_in must be positive")
	case errors.Is(err, services.ErrMessageSelfAddressed):
		return appErrors.NewBadRequest("You cannot send a message to yourself")
	case errors.Is(err, services.ErrInvalidAction):
		return appErrors.NewBadRequest("action must be accept or reject")
	case errors.Is(err, services.ErrInvalidSessionTTL):
		return appErrors.NewBadRequest("ttl must be positive")
	case errors.Is(err, services.ErrSessionMessageAttached):
		return appErrors.NewBadRequest("A message has already been shared in this session")
	case errors.Is(err, services.ErrInitiatorCannotConnect):
		return appErrors.NewBadRequest("You cannot connect to your own session")

	default:
		return appErrors.ErrInternalServer.WithInternal(err)
	}
}

// respondError renders err through translateServiceError. Server-side failures are attached to
// the gin context so the access log records the cause.
func respondError(c *gin.Context, err error) {
	translated := translateServiceError(err)
	var appErr *appErrors.AppError
	if errors.As(translated, &appErr) && appErr.StatusCode >= 500 {
		_ = c.Error(err)
	}
	response.Error(c, translated)
}
