package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/crypto"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/logger"
	"github.com/xoen85/accept-connect-app-oqvfkg/pkg/metrics"
)

const (
	defaultLinkTTL          = 24 * time.Hour
	defaultLinkTokenBytes   = 32
	defaultMaxContentLength = 4000
	maxTokenAttempts        = 5
)

var (
	// ErrMessageNotFound indicates no message matches the supplied token or identifier.
	ErrMessageNotFound = errors.New("message: not found")
	// ErrMessageContentRequired indicates the message body is empty after trimming.
	ErrMessageContentRequired = errors.New("message: content is required")
	// ErrMessageContentTooLong indicates the message body exceeds the configured limit.
	ErrMessageContentTooLong = errors.New("message: content too long")
	// ErrInvalidLinkTTL indicates a negative link lifetime was requested.
	ErrInvalidLinkTTL = errors.New("message: link expiry must be positive")
	// ErrRecipientNotFound indicates a direct recipient could not be resolved to a user.
	ErrRecipientNotFound = errors.New("message: recipient not found")
	// ErrMessageSelfAddressed indicates the sender addressed the message to themself.
	ErrMessageSelfAddressed = errors.New("message: cannot address yourself")
	// ErrLinkExpired indicates the share link is past its expiry.
	ErrLinkExpired = errors.New("message: link expired")
	// ErrLinkAlreadyUsed indicates a single-use link has already been redeemed.
	ErrLinkAlreadyUsed = errors.New("message: link already used")
	// ErrMessageAlreadyAnswered indicates the message already reached a terminal status.
	ErrMessageAlreadyAnswered = errors.New("message: already answered")
	// ErrNotMessageRecipient indicates the actor is not allowed to answer the message.
	ErrNotMessageRecipient = errors.New("message: actor is not the recipient")
	// ErrInvalidAction indicates an unknown respond action.
	ErrInvalidAction = errors.New("message: action must be accept or reject")
	// ErrActorRequired indicates an operation was attempted without an authenticated user.
	ErrActorRequired = errors.New("message: actor is required")
)

// Notifier delivers push events to a user's connected devices.
type Notifier interface {
	Notify(userID string, event notifications.Event)
}

// ResponseAction is the answer a recipient gives to a consent message.
type ResponseAction string

const (
	ActionAccept ResponseAction = "accept"
	ActionReject ResponseAction = "reject"
)

// ParseResponseAction converts raw input into a ResponseAction.
func ParseResponseAction(raw string) (ResponseAction, error) {
	action := ResponseAction(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := action.status(); !ok {
		return "", ErrInvalidAction
	}
	return action, nil
}

func (a ResponseAction) status() (models.MessageStatus, bool) {
	switch a {
	case ActionAccept:
		return models.MessageStatusAccepted, true
	case ActionReject:
		return models.MessageStatusRejected, true
	default:
		return "", false
	}
}

// CreateMessageInput describes a new consent message.
type CreateMessageInput struct {
	Content        string
	RecipientID    string
	RecipientEmail string
	// LinkExpiresIn overrides the configured link lifetime when positive.
	LinkExpiresIn time.Duration
	// SingleUse overrides the configured default when set.
	SingleUse *bool
}

// RespondTarget identifies the message being answered, either by link token or by ID.
type RespondTarget struct {
	Token     string
	MessageID string
}

// ListOptions controls pagination for inbox and sent listings.
type ListOptions struct {
	Page    int
	PerPage int
	Status  models.MessageStatus
}

// MessageDetails is a message together with the sender information shown to recipients.
type MessageDetails struct {
	Message    *models.Message
	SenderName string
	ShareURL   string
}

// LinkToken returns the message link token or an empty string.
func (d *MessageDetails) LinkToken() string {
	if d == nil || d.Message == nil || d.Message.LinkToken == nil {
		return ""
	}
	return *d.Message.LinkToken
}

// MessageOption customises MessageService behaviour.
type MessageOption func(*MessageService)

// WithMessageClock injects a custom clock primarily for testing.
func WithMessageClock(clock func() time.Time) MessageOption {
	return func(s *MessageService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithMessageLinkTTL overrides the default share link lifetime.
func WithMessageLinkTTL(d time.Duration) MessageOption {
	return func(s *MessageService) {
		if d > 0 {
			s.linkTTL = d
		}
	}
}

// WithMessageSingleUseDefault sets whether links are single-use unless the sender says otherwise.
func WithMessageSingleUseDefault(singleUse bool) MessageOption {
	return func(s *MessageService) {
		s.singleUseDefault = singleUse
	}
}

// WithMessageNotifier wires the push notifier.
func WithMessageNotifier(notifier Notifier) MessageOption {
	return func(s *MessageService) {
		s.notifier = notifier
	}
}

// WithMessageLogger attaches a logger.
func WithMessageLogger(log *zap.Logger) MessageOption {
	return func(s *MessageService) {
		s.log = logger.Module(log, "messages")
	}
}

// WithShareBaseURL configures the base URL used to build share links.
func WithShareBaseURL(url string) MessageOption {
	return func(s *MessageService) {
		s.shareBaseURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithMaxContentLength limits the message body length in characters.
func WithMaxContentLength(n int) MessageOption {
	return func(s *MessageService) {
		if n > 0 {
			s.maxContentLength = n
		}
	}
}

// MessageService owns the consent message lifecycle: creation with a share link, link
// resolution and the single pending to accepted/rejected transition.
type MessageService struct {
	db               *gorm.DB
	notifier         Notifier
	log              *zap.Logger
	now              func() time.Time
	linkTTL          time.Duration
	singleUseDefault bool
	shareBaseURL     string
	maxContentLength int
	tokenLength      int
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB, opts ...MessageOption) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}

	service := &MessageService{
		db:               db,
		log:              zap.NewNop(),
		now:              time.Now,
		linkTTL:          defaultLinkTTL,
		singleUseDefault: true,
		maxContentLength: defaultMaxContentLength,
		tokenLength:      defaultLinkTokenBytes,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// ShareURL returns the public URL for a link token.
func (s *MessageService) ShareURL(token string) string {
	return ShareURL(s.shareBaseURL, token)
}

// Create stores a pending message and issues its share link.
func (s *MessageService) Create(ctx context.Context, senderID string, input CreateMessageInput) (*MessageDetails, error) {
	ctx = ensureContext(ctx)

	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return nil, ErrActorRequired
	}
	content, err := s.normaliseContent(input.Content)
	if err != nil {
		return nil, err
	}
	if input.LinkExpiresIn < 0 {
		return nil, ErrInvalidLinkTTL
	}

	recipient, err := s.resolveRecipient(ctx, input.RecipientID, input.RecipientEmail)
	if err != nil {
		return nil, err
	}

	spec := newMessageSpec{
		senderID:  senderID,
		content:   content,
		channel:   models.MessageChannelLink,
		ttl:       input.LinkExpiresIn,
		singleUse: s.singleUseDefault,
	}
	if input.SingleUse != nil {
		spec.singleUse = *input.SingleUse
	}
	if recipient != nil {
		if recipient.ID == senderID {
			return nil, ErrMessageSelfAddressed
		}
		spec.recipientID = stringPtr(recipient.ID)
		spec.channel = models.MessageChannelDirect
	}

	message, err := s.createInTx(s.db.WithContext(ctx), spec)
	if err != nil {
		return nil, err
	}

	details, err := s.details(ctx, message)
	if err != nil {
		return nil, err
	}

	if message.HasRecipient() {
		s.notify(*message.RecipientID, notifications.EventMessageReceived, map[string]any{
			"message_id":  message.ID,
			"sender_id":   message.SenderID,
			"sender_name": details.SenderName,
		})
	}

	return details, nil
}

type newMessageSpec struct {
	senderID    string
	recipientID *string
	content     string
	channel     models.MessageChannel
	ttl         time.Duration
	singleUse   bool
}

// createInTx inserts a message through tx, regenerating the link token on collision. Each attempt
// runs in its own (nested) transaction so a failed insert does not poison an enclosing one.
func (s *MessageService) createInTx(tx *gorm.DB, spec newMessageSpec) (*models.Message, error) {
	ttl := spec.ttl
	if ttl <= 0 {
		ttl = s.linkTTL
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	message := &models.Message{
		BaseModel:     models.BaseModel{CreatedAt: now, UpdatedAt: now},
		SenderID:      spec.senderID,
		RecipientID:   spec.recipientID,
		Content:       spec.content,
		Status:        models.MessageStatusPending,
		Channel:       spec.channel,
		LinkExpiresAt: &expiresAt,
		SingleUse:     spec.singleUse,
	}

	for attempt := 1; ; attempt++ {
		token, err := crypto.GenerateToken(s.tokenLength)
		if err != nil {
			return nil, fmt.Errorf("message service: generate link token: %w", err)
		}
		message.LinkToken = stringPtr(token)

		err = tx.Transaction(func(inner *gorm.DB) error {
			return inner.Create(message).Error
		})
		if err == nil {
			break
		}
		if !isUniqueConstraintError(err) || attempt >= maxTokenAttempts {
			return nil, fmt.Errorf("message service: create message: %w", err)
		}
		s.log.Warn("link token collision, regenerating", zap.Int("attempt", attempt))
	}

	metrics.MessagesCreated.WithLabelValues(string(message.Channel)).Inc()
	s.log.Debug("message created",
		zap.String("message_id", message.ID),
		zap.String("channel", string(message.Channel)),
		zap.Bool("single_use", message.SingleUse),
	)
	return message, nil
}

// ResolveByToken returns the message behind a share link without consuming it.
func (s *MessageService) ResolveByToken(ctx context.Context, token string) (*MessageDetails, error) {
	ctx = ensureContext(ctx)

	message, err := s.findByToken(ctx, token)
	if err != nil {
		metrics.LinkResolutions.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
	if err := checkLinkUsable(message, s.now().UTC()); err != nil {
		metrics.LinkResolutions.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}

	metrics.LinkResolutions.WithLabelValues("ok").Inc()
	return s.details(ctx, message)
}

// ShareQRCode renders the share URL of a usable link as a PNG QR code.
func (s *MessageService) ShareQRCode(ctx context.Context, token string, size int) ([]byte, error) {
	details, err := s.ResolveByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return RenderQRCode(details.ShareURL, size)
}

// Respond records the actor's answer. Preconditions are checked in order: existence, link expiry,
// single-use consumption, pending status and recipient binding. The transition itself is a single
// conditional update so that concurrent responders cannot both succeed; the loser is re-classified
// from the stored row.
func (s *MessageService) Respond(ctx context.Context, actorID string, target RespondTarget, action ResponseAction) (*models.Message, error) {
	ctx = ensureContext(ctx)

	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, ErrActorRequired
	}
	status, ok := action.status()
	if !ok {
		return nil, ErrInvalidAction
	}

	message, err := s.findTarget(ctx, target)
	if err != nil {
		s.recordResponse(err)
		return nil, err
	}

	now := s.now().UTC()
	if err := classifyRespond(message, actorID, now); err != nil {
		s.recordResponse(err)
		return nil, err
	}

	result := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND status = ?", message.ID, models.MessageStatusPending).
		Where("single_use = ? OR link_used = ?", false, false).
		Where("recipient_id IS NULL OR recipient_id = ?", actorID).
		Where("sender_id <> ?", actorID).
		Where("link_expires_at IS NULL OR link_expires_at >= ?", now).
		Updates(map[string]any{
			"status":       status,
			"link_used":    true,
			"recipient_id": gorm.Expr("COALESCE(recipient_id, ?)", actorID),
			"responded_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		err := fmt.Errorf("message service: respond: %w", result.Error)
		s.recordResponse(err)
		return nil, err
	}

	if result.RowsAffected == 0 {
		err := s.reclassify(ctx, message.ID, actorID, now)
		s.recordResponse(err)
		return nil, err
	}

	updated, err := s.findByID(ctx, message.ID)
	if err != nil {
		return nil, err
	}

	s.recordResponse(nil, updated.Status)
	s.log.Debug("message answered",
		zap.String("message_id", updated.ID),
		zap.String("status", string(updated.Status)),
	)
	s.notify(updated.SenderID, notifications.EventMessageResponded, map[string]any{
		"message_id":   updated.ID,
		"status":       updated.Status,
		"recipient_id": actorID,
	})

	return updated, nil
}

// Get returns a message visible to userID as sender or bound recipient.
func (s *MessageService) Get(ctx context.Context, userID, messageID string) (*MessageDetails, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrActorRequired
	}

	message, err := s.findByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != userID && (message.RecipientID == nil || *message.RecipientID != userID) {
		return nil, ErrMessageNotFound
	}
	return s.details(ctx, message)
}

// ListInbox returns messages bound to userID as recipient, newest first.
func (s *MessageService) ListInbox(ctx context.Context, userID string, opts ListOptions) ([]MessageDetails, int64, error) {
	return s.list(ctx, "recipient_id = ?", userID, opts)
}

// ListSent returns messages created by userID, newest first.
func (s *MessageService) ListSent(ctx context.Context, userID string, opts ListOptions) ([]MessageDetails, int64, error) {
	return s.list(ctx, "sender_id = ?", userID, opts)
}

func (s *MessageService) list(ctx context.Context, clause, userID string, opts ListOptions) ([]MessageDetails, int64, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, ErrActorRequired
	}

	page, perPage := normalisePage(opts.Page, opts.PerPage)
	query := s.db.WithContext(ctx).Model(&models.Message{}).Where(clause, userID)
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("message service: count messages: %w", err)
	}

	var messages []models.Message
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("message service: list messages: %w", err)
	}

	senderIDs := make([]string, 0, len(messages))
	for i := range messages {
		senderIDs = append(senderIDs, messages[i].SenderID)
	}
	names, err := displayNames(ctx, s.db, senderIDs)
	if err != nil {
		return nil, 0, err
	}

	out := make([]MessageDetails, 0, len(messages))
	for i := range messages {
		message := &messages[i]
		out = append(out, MessageDetails{
			Message:    message,
			SenderName: senderName(names, message.SenderID),
			ShareURL:   s.shareURLFor(message),
		})
	}
	return out, total, nil
}

func (s *MessageService) normaliseContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", ErrMessageContentRequired
	}
	if utf8.RuneCountInString(content) > s.maxContentLength {
		return "", ErrMessageContentTooLong
	}
	return content, nil
}

func (s *MessageService) resolveRecipient(ctx context.Context, recipientID, recipientEmail string) (*models.User, error) {
	recipientID = strings.TrimSpace(recipientID)
	recipientEmail = strings.ToLower(strings.TrimSpace(recipientEmail))
	if recipientID == "" && recipientEmail == "" {
		return nil, nil
	}

	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if recipientID != "" {
		query = query.Where("id = ?", recipientID)
	} else {
		query = query.Where("email = ?", recipientEmail)
	}

	var user models.User
	err := query.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message service: resolve recipient: %w", err)
	}
	return &user, nil
}

func (s *MessageService) findTarget(ctx context.Context, target RespondTarget) (*models.Message, error) {
	if token := strings.TrimSpace(target.Token); token != "" {
		return s.findByToken(ctx, token)
	}
	return s.findByID(ctx, target.MessageID)
}

func (s *MessageService) findByToken(ctx context.Context, token string) (*models.Message, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMessageNotFound
	}

	var message models.Message
	err := s.db.WithContext(ctx).Where("link_token = ?", token).First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message service: find by token: %w", err)
	}
	return &message, nil
}

func (s *MessageService) findByID(ctx context.Context, id string) (*models.Message, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrMessageNotFound
	}

	var message models.Message
	err := s.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message service: find message: %w", err)
	}
	return &message, nil
}

func (s *MessageService) reclassify(ctx context.Context, id, actorID string, now time.Time) error {
	current, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}
	if err := classifyRespond(current, actorID, now); err != nil {
		return err
	}
	// The row changed between the read and the update but now looks answerable again; this
	// cannot happen with a monotonic status, so report the conflict.
	return ErrMessageAlreadyAnswered
}

func (s *MessageService) details(ctx context.Context, message *models.Message) (*MessageDetails, error) {
	names, err := displayNames(ctx, s.db, []string{message.SenderID})
	if err != nil {
		return nil, err
	}
	return &MessageDetails{
		Message:    message,
		SenderName: senderName(names, message.SenderID),
		ShareURL:   s.shareURLFor(message),
	}, nil
}

func (s *MessageService) shareURLFor(message *models.Message) string {
	if message == nil || message.LinkToken == nil {
		return ""
	}
	return s.ShareURL(*message.LinkToken)
}

func (s *MessageService) notify(userID, eventType string, data map[string]any) {
	if s.notifier == nil || strings.TrimSpace(userID) == "" {
		return
	}
	s.notifier.Notify(userID, notifications.Event{Type: eventType, Data: data})
}

func (s *MessageService) recordResponse(err error, status ...models.MessageStatus) {
	if err == nil && len(status) > 0 {
		metrics.MessageResponses.WithLabelValues(string(status[0])).Inc()
		return
	}
	metrics.MessageResponses.WithLabelValues(outcomeLabel(err)).Inc()
}

// checkLinkUsable reports whether the link can still be viewed.
func checkLinkUsable(message *models.Message, now time.Time) error {
	if message.LinkExpired(now) {
		return ErrLinkExpired
	}
	if message.LinkConsumed() {
		return ErrLinkAlreadyUsed
	}
	return nil
}

// classifyRespond applies the respond preconditions in order, first failure wins.
func classifyRespond(message *models.Message, actorID string, now time.Time) error {
	if err := checkLinkUsable(message, now); err != nil {
		return err
	}
	if message.Status != models.MessageStatusPending {
		return ErrMessageAlreadyAnswered
	}
	if message.HasRecipient() {
		if *message.RecipientID != actorID {
			return ErrNotMessageRecipient
		}
		return nil
	}
	if message.SenderID == actorID {
		return ErrNotMessageRecipient
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMessageNotFound):
		return "not_found"
	case errors.Is(err, ErrLinkExpired):
		return "expired"
	case errors.Is(err, ErrLinkAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrMessageAlreadyAnswered):
		return "conflict"
	case errors.Is(err, ErrNotMessageRecipient):
		return "forbidden"
	default:
		return "error"
	}
}
