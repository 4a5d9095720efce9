package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/crypto"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/logger"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/metrics"
)

const (
	defaultSessionTTL        = 5 * time.Minute
	defaultMaxSessionTTL     = time.Hour
	defaultSessionTokenBytes = 24
)

var (
	// ErrSessionNotFound indicates no proximity session matches the token.
	ErrSessionNotFound = errors.New("proximity: session not found")
	// ErrSessionExpired indicates the proximity session is past its expiry.
	ErrSessionExpired = errors.New("proximity: session expired")
	// ErrInvalidSessionTTL indicates a negative session lifetime was requested.
	ErrInvalidSessionTTL = errors.New("proximity: session ttl must be positive")
	// ErrNotSessionInitiator indicates only the initiator may attach a message.
	ErrNotSessionInitiator = errors.New("proximity: only the initiator can attach a message")
	// ErrSessionMessageAttached indicates the session already carries a message.
	ErrSessionMessageAttached = errors.New("proximity: message already attached")
	// ErrInitiatorCannotConnect indicates the initiator tried to connect to their own session.
	ErrInitiatorCannotConnect = errors.New("proximity: initiator cannot connect to own session")
	// ErrSessionMessageMissing indicates no message has been attached yet.
	ErrSessionMessageMissing = errors.New("proximity: no message attached")
)

// SessionInfo is the view of a proximity session returned to a connecting device.
type SessionInfo struct {
	SessionID     string
	InitiatorID   string
	InitiatorName string
	ExpiresAt     time.Time
	HasMessage    bool
	MessageID     string
}

// ProximityOption customises ProximityService behaviour.
type ProximityOption func(*ProximityService)

// WithProximityClock injects a custom clock primarily for testing.
func WithProximityClock(clock func() time.Time) ProximityOption {
	return func(s *ProximityService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionTTL overrides the default session lifetime.
func WithSessionTTL(d time.Duration) ProximityOption {
	return func(s *ProximityService) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithMaxSessionTTL caps the lifetime a caller may request.
func WithMaxSessionTTL(d time.Duration) ProximityOption {
	return func(s *ProximityService) {
		if d > 0 {
			s.maxSessionTTL = d
		}
	}
}

// WithProximityNotifier wires the push notifier.
func WithProximityNotifier(notifier Notifier) ProximityOption {
	return func(s *ProximityService) {
		s.notifier = notifier
	}
}

// WithProximityLogger attaches a logger.
func WithProximityLogger(log *zap.Logger) ProximityOption {
	return func(s *ProximityService) {
		s.log = logger.Module(log, "proximity")
	}
}

// ProximityService pairs an initiator with a nearby device through a short-lived session that can
// carry at most one message.
type ProximityService struct {
	db            *gorm.DB
	messages      *MessageService
	notifier      Notifier
	log           *zap.Logger
	now           func() time.Time
	sessionTTL    time.Duration
	maxSessionTTL time.Duration
}

// NewProximityService constructs a ProximityService. Attached messages are created through the
// supplied MessageService so both delivery paths share one lifecycle.
func NewProximityService(db *gorm.DB, messages *MessageService, opts ...ProximityOption) (*ProximityService, error) {
	if db == nil {
		return nil, errors.New("proximity service: db is required")
	}
	if messages == nil {
		return nil, errors.New("proximity service: message service is required")
	}

	service := &ProximityService{
		db:            db,
		messages:      messages,
		log:           zap.NewNop(),
		now:           time.Now,
		sessionTTL:    defaultSessionTTL,
		maxSessionTTL: defaultMaxSessionTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.sessionTTL > service.maxSessionTTL {
		service.sessionTTL = service.maxSessionTTL
	}

	return service, nil
}

// CreateSession opens a session for initiatorID. A zero ttl uses the default; longer requests
// are capped at the configured maximum.
func (s *ProximityService) CreateSession(ctx context.Context, initiatorID string, ttl time.Duration) (*models.ProximitySession, error) {
	ctx = ensureContext(ctx)

	initiatorID = strings.TrimSpace(initiatorID)
	if initiatorID == "" {
		return nil, ErrActorRequired
	}
	switch {
	case ttl < 0:
		return nil, ErrInvalidSessionTTL
	case ttl == 0:
		ttl = s.sessionTTL
	case ttl > s.maxSessionTTL:
		ttl = s.maxSessionTTL
	}

	now := s.now().UTC()
	session := &models.ProximitySession{
		BaseModel:   models.BaseModel{CreatedAt: now, UpdatedAt: now},
		InitiatorID: initiatorID,
		ExpiresAt:   now.Add(ttl),
	}

	for attempt := 1; ; attempt++ {
		token, err := crypto.GenerateToken(defaultSessionTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("proximity service: generate token: %w", err)
		}
		session.ProximityToken = token

		err = s.db.WithContext(ctx).Create(session).Error
		if err == nil {
			break
		}
		if !isUniqueConstraintError(err) || attempt >= maxTokenAttempts {
			return nil, fmt.Errorf("proximity service: create session: %w", err)
		}
	}

	metrics.ProximitySessions.WithLabelValues("created").Inc()
	s.log.Debug("proximity session created",
		zap.String("session_id", session.ID),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

// AttachMessage creates a pending open message from the initiator and binds it to the session.
// The message insert and the session update commit together.
func (s *ProximityService) AttachMessage(ctx context.Context, actorID, token, content string) (*models.Message, error) {
	ctx = ensureContext(ctx)

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrActorRequired
	}
	content, err := s.messages.normaliseContent(content)
	if err != nil {
		return nil, err
	}

	var message *models.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := findSession(tx, token)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		switch {
		case session.Expired(now):
			return ErrSessionExpired
		case session.InitiatorID != actorID:
			return ErrNotSessionInitiator
		case session.HasMessage():
			return ErrSessionMessageAttached
		}

		created, err := s.messages.createInTx(tx, newMessageSpec{
			senderID:  actorID,
			content:   content,
			channel:   models.MessageChannelProximity,
			singleUse: true,
		})
		if err != nil {
			return err
		}

		result := tx.Model(&models.ProximitySession{}).
			Where("id = ? AND message_id IS NULL", session.ID).
			Updates(map[string]any{
				"message_id": created.ID,
				"updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("proximity service: attach message: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionMessageAttached
		}

		message = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ProximitySessions.WithLabelValues("attached").Inc()
	return message, nil
}

// Connect lets a nearby user join the session and reports whether a message is waiting.
func (s *ProximityService) Connect(ctx context.Context, actorID, token string) (*SessionInfo, error) {
	ctx = ensureContext(ctx)

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrActorRequired
	}

	session, err := findSession(s.db.WithContext(ctx), token)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now().UTC()) {
		return nil, ErrSessionExpired
	}
	if session.InitiatorID == actorID {
		return nil, ErrInitiatorCannotConnect
	}

	names, err := displayNames(ctx, s.db, []string{session.InitiatorID})
	if err != nil {
		return nil, err
	}

	info := &SessionInfo{
		SessionID:     session.ID,
		InitiatorID:   session.InitiatorID,
		InitiatorName: senderName(names, session.InitiatorID),
		ExpiresAt:     session.ExpiresAt,
		HasMessage:    session.HasMessage(),
	}
	if session.HasMessage() {
		info.MessageID = *session.MessageID
	}

	metrics.ProximitySessions.WithLabelValues("connected").Inc()
	if s.notifier != nil {
		s.notifier.Notify(session.InitiatorID, notifications.Event{
			Type: notifications.EventProximityConnected,
			Data: map[string]any{
				"session_id":   session.ID,
				"connected_by": actorID,
			},
		})
	}
	return info, nil
}

// FetchMessage returns the message attached to a live session.
func (s *ProximityService) FetchMessage(ctx context.Context, token string) (*MessageDetails, error) {
	ctx = ensureContext(ctx)

	session, err := findSession(s.db.WithContext(ctx), token)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now().UTC()) {
		return nil, ErrSessionExpired
	}
	if !session.HasMessage() {
		return nil, ErrSessionMessageMissing
	}

	message, err := s.messages.findByID(ctx, *session.MessageID)
	if err != nil {
		return nil, err
	}

	metrics.ProximitySessions.WithLabelValues("fetched").Inc()
	return s.messages.details(ctx, message)
}

func findSession(db *gorm.DB, token string) (*models.ProximitySession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	var session models.ProximitySession
	err := db.Where("proximity_token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("proximity service: find session: %w", err)
	}
	return &session, nil
}

// DeleteExpired removes sessions whose expiry has passed. Attached messages are left in place.
func (s *ProximityService) DeleteExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now().UTC()).
		Delete(&models.ProximitySession{})
	if result.Error != nil {
		return 0, fmt.Errorf("proximity service: delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
