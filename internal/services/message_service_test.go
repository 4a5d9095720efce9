package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
)

func newTestMessageService(t *testing.T, clock *testClock, opts ...MessageOption) (*MessageService, *recordingNotifier) {
	t.Helper()

	db := openServiceTestDB(t)
	notifier := &recordingNotifier{}
	base := []MessageOption{
		WithMessageClock(clock.Now),
		WithMessageNotifier(notifier),
		WithShareBaseURL("https://accept.example.com/m/"),
	}
	svc, err := NewMessageService(db, append(base, opts...)...)
	require.NoError(t, err)
	return svc, notifier
}

func TestNewMessageServiceRequiresDB(t *testing.T) {
	_, err := NewMessageService(nil)
	require.Error(t, err)
}

func TestMessageServiceCreateDefaults(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")

	details, err := svc.Create(context.Background(), sender.ID, CreateMessageInput{Content: "  Do you accept?  "})
	require.NoError(t, err)

	message := details.Message
	require.Equal(t, "Do you accept?", message.Content)
	require.Equal(t, models.MessageStatusPending, message.Status)
	require.Equal(t, models.MessageChannelLink, message.Channel)
	require.True(t, message.SingleUse)
	require.False(t, message.LinkUsed)
	require.Nil(t, message.RecipientID)
	require.NotNil(t, message.LinkExpiresAt)
	require.True(t, message.LinkExpiresAt.Equal(clock.Now().Add(24*time.Hour)))
	require.True(t, message.CreatedAt.Equal(clock.Now()))
	require.True(t, message.UpdatedAt.Equal(clock.Now()))

	var stored models.Message
	require.NoError(t, svc.db.First(&stored, "id = ?", message.ID).Error)
	require.WithinDuration(t, clock.Now(), stored.CreatedAt, time.Second)
	require.True(t, stored.LinkExpiresAt.After(stored.CreatedAt))

	token := details.LinkToken()
	require.GreaterOrEqual(t, len(token), 43)
	require.Equal(t, "https://accept.example.com/m/"+token, details.ShareURL)
	require.Equal(t, "Sender", details.SenderName)
}

func TestMessageServiceCreateValidation(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock, WithMaxContentLength(10))
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	ctx := context.Background()

	_, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "   "})
	require.ErrorIs(t, err, ErrMessageContentRequired)

	_, err = svc.Create(ctx, sender.ID, CreateMessageInput{Content: strings.Repeat("x", 11)})
	require.ErrorIs(t, err, ErrMessageContentTooLong)

	_, err = svc.Create(ctx, sender.ID, CreateMessageInput{Content: "hi", LinkExpiresIn: -time.Second})
	require.ErrorIs(t, err, ErrInvalidLinkTTL)

	_, err = svc.Create(ctx, "", CreateMessageInput{Content: "hi"})
	require.ErrorIs(t, err, ErrActorRequired)

	_, err = svc.Create(ctx, sender.ID, CreateMessageInput{Content: "hi", RecipientEmail: "nobody@example.com"})
	require.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = svc.Create(ctx, sender.ID, CreateMessageInput{Content: "hi", RecipientID: "missing"})
	require.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = svc.Create(ctx, sender.ID, CreateMessageInput{Content: "hi", RecipientEmail: "SENDER@example.com"})
	require.ErrorIs(t, err, ErrMessageSelfAddressed)
}

func TestMessageServiceCreateDirectNotifiesRecipient(t *testing.T) {
	clock := newTestClock()
	svc, notifier := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	recipient := createTestUser(t, svc.db, "recipient@example.com", "Recipient")

	details, err := svc.Create(context.Background(), sender.ID, CreateMessageInput{
		Content:        "Coffee?",
		RecipientEmail: "Recipient@Example.com",
		SingleUse:      boolPtr(false),
	})
	require.NoError(t, err)
	require.Equal(t, models.MessageChannelDirect, details.Message.Channel)
	require.NotNil(t, details.Message.RecipientID)
	require.Equal(t, recipient.ID, *details.Message.RecipientID)
	require.False(t, details.Message.SingleUse)

	events := notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, recipient.ID, events[0].userID)
	require.Equal(t, notifications.EventMessageReceived, events[0].event.Type)
}

// Create, view, accept, then a second responder is refused.
func TestMessageServiceOpenLinkLifecycle(t *testing.T) {
	clock := newTestClock()
	svc, notifier := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	userA := createTestUser(t, svc.db, "a@example.com", "A")
	userB := createTestUser(t, svc.db, "b@example.com", "B")
	ctx := context.Background()

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{
		Content:       "Do you accept?",
		SingleUse:     boolPtr(true),
		LinkExpiresIn: time.Hour,
	})
	require.NoError(t, err)
	token := created.LinkToken()

	clock.Advance(10 * time.Second)
	resolved, err := svc.ResolveByToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusPending, resolved.Message.Status)
	require.False(t, resolved.Message.LinkUsed)

	answered, err := svc.Respond(ctx, userA.ID, RespondTarget{Token: token}, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusAccepted, answered.Status)
	require.True(t, answered.LinkUsed)
	require.NotNil(t, answered.RecipientID)
	require.Equal(t, userA.ID, *answered.RecipientID)
	require.NotNil(t, answered.RespondedAt)

	_, err = svc.Respond(ctx, userB.ID, RespondTarget{Token: token}, ActionAccept)
	require.ErrorIs(t, err, ErrLinkAlreadyUsed)

	_, err = svc.ResolveByToken(ctx, token)
	require.ErrorIs(t, err, ErrLinkAlreadyUsed)

	stored, err := svc.findByID(ctx, created.Message.ID)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusAccepted, stored.Status)
	require.Equal(t, userA.ID, *stored.RecipientID)

	events := notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, sender.ID, events[0].userID)
	require.Equal(t, notifications.EventMessageResponded, events[0].event.Type)
}

func TestMessageServiceExpiredLink(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	responder := createTestUser(t, svc.db, "r@example.com", "R")
	ctx := context.Background()

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "quick", LinkExpiresIn: time.Second})
	require.NoError(t, err)
	token := created.LinkToken()

	clock.Advance(2 * time.Second)

	_, err = svc.ResolveByToken(ctx, token)
	require.ErrorIs(t, err, ErrLinkExpired)

	_, err = svc.Respond(ctx, responder.ID, RespondTarget{Token: token}, ActionAccept)
	require.ErrorIs(t, err, ErrLinkExpired)

	_, err = svc.Respond(ctx, responder.ID, RespondTarget{MessageID: created.Message.ID}, ActionReject)
	require.ErrorIs(t, err, ErrLinkExpired)

	_, err = svc.ShareQRCode(ctx, token, 128)
	require.ErrorIs(t, err, ErrLinkExpired)
}

func TestMessageServiceExpiryWinsOverUsed(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	responder := createTestUser(t, svc.db, "r@example.com", "R")
	ctx := context.Background()

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "quick", LinkExpiresIn: time.Minute})
	require.NoError(t, err)
	token := created.LinkToken()

	_, err = svc.Respond(ctx, responder.ID, RespondTarget{Token: token}, ActionReject)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = svc.ResolveByToken(ctx, token)
	require.ErrorIs(t, err, ErrLinkExpired)
	_, err = svc.Respond(ctx, responder.ID, RespondTarget{Token: token}, ActionAccept)
	require.ErrorIs(t, err, ErrLinkExpired)
}

// Direct messages only accept the bound recipient.
func TestMessageServiceDirectRecipientBinding(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	recipient := createTestUser(t, svc.db, "recipient@example.com", "Recipient")
	stranger := createTestUser(t, svc.db, "stranger@example.com", "Stranger")
	ctx := context.Background()

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "Sign?", RecipientID: recipient.ID})
	require.NoError(t, err)
	token := created.LinkToken()

	_, err = svc.Respond(ctx, stranger.ID, RespondTarget{Token: token}, ActionAccept)
	require.ErrorIs(t, err, ErrNotMessageRecipient)

	_, err = svc.Respond(ctx, sender.ID, RespondTarget{Token: token}, ActionAccept)
	require.ErrorIs(t, err, ErrNotMessageRecipient)

	answered, err := svc.Respond(ctx, recipient.ID, RespondTarget{MessageID: created.Message.ID}, ActionReject)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusRejected, answered.Status)
}

func TestMessageServiceSenderCannotAnswerOpenMessage(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	ctx := context.Background()

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "Open"})
	require.NoError(t, err)

	_, err = svc.Respond(ctx, sender.ID, RespondTarget{Token: created.LinkToken()}, ActionAccept)
	require.ErrorIs(t, err, ErrNotMessageRecipient)

	stored, err := svc.findByID(ctx, created.Message.ID)
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusPending, stored.Status)
	require.Nil(t, stored.RecipientID)
}

func TestMessageServiceStatusIsMonotonic(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	recipient := createTestUser(t, svc.db, "recipient@example.com", "Recipient")
	ctx := context.Background()

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "Reusable", SingleUse: boolPtr(false)})
	require.NoError(t, err)
	target := RespondTarget{Token: created.LinkToken()}

	_, err = svc.Respond(ctx, recipient.ID, target, ActionAccept)
	require.NoError(t, err)

	for _, action := range []ResponseAction{ActionAccept, ActionReject, ActionReject} {
		_, err = svc.Respond(ctx, recipient.ID, target, action)
		require.ErrorIs(t, err, ErrMessageAlreadyAnswered)
	}

	// Reusable links stay viewable after an answer.
	resolved, err := svc.ResolveByToken(ctx, created.LinkToken())
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusAccepted, resolved.Message.Status)
}

func TestMessageServiceRespondConcurrentSingleSuccess(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	ctx := context.Background()

	const responders = 8
	users := make([]*models.User, responders)
	for i := range users {
		users[i] = createTestUser(t, svc.db, "user"+string(rune('a'+i))+"@example.com", "User")
	}

	created, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "Race"})
	require.NoError(t, err)
	token := created.LinkToken()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
		failures  []error
	)
	start := make(chan struct{})
	for _, user := range users {
		wg.Add(1)
		go func(actorID string) {
			defer wg.Done()
			<-start
			_, err := svc.Respond(ctx, actorID, RespondTarget{Token: token}, ActionAccept)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			successes = append(successes, actorID)
		}(user.ID)
	}
	close(start)
	wg.Wait()

	require.Len(t, successes, 1)
	require.Len(t, failures, responders-1)
	for _, err := range failures {
		require.ErrorIs(t, err, ErrLinkAlreadyUsed)
	}

	stored, err := svc.findByID(ctx, created.Message.ID)
	require.NoError(t, err)
	require.Equal(t, successes[0], *stored.RecipientID)
}

func TestMessageServiceRespondErrors(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	user := createTestUser(t, svc.db, "user@example.com", "User")
	ctx := context.Background()

	_, err := svc.Respond(ctx, user.ID, RespondTarget{Token: "missing"}, ActionAccept)
	require.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.Respond(ctx, user.ID, RespondTarget{}, ActionAccept)
	require.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.Respond(ctx, user.ID, RespondTarget{Token: "missing"}, ResponseAction("maybe"))
	require.ErrorIs(t, err, ErrInvalidAction)

	_, err = svc.Respond(ctx, "", RespondTarget{Token: "missing"}, ActionAccept)
	require.ErrorIs(t, err, ErrActorRequired)

	_, err = svc.ResolveByToken(ctx, "missing")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestParseResponseAction(t *testing.T) {
	action, err := ParseResponseAction(" Accept ")
	require.NoError(t, err)
	require.Equal(t, ActionAccept, action)

	action, err = ParseResponseAction("reject")
	require.NoError(t, err)
	require.Equal(t, ActionReject, action)

	_, err = ParseResponseAction("ignore")
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestMessageServiceListsAndGet(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")
	recipient := createTestUser(t, svc.db, "recipient@example.com", "Recipient")
	other := createTestUser(t, svc.db, "other@example.com", "Other")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		details, err := svc.Create(ctx, sender.ID, CreateMessageInput{Content: "msg", RecipientID: recipient.ID})
		require.NoError(t, err)
		ids = append(ids, details.Message.ID)
		clock.Advance(time.Second)
	}
	_, err := svc.Respond(ctx, recipient.ID, RespondTarget{MessageID: ids[0]}, ActionAccept)
	require.NoError(t, err)

	sent, total, err := svc.ListSent(ctx, sender.ID, ListOptions{Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, sent, 2)
	require.Equal(t, "Sender", sent[0].SenderName)

	inbox, total, err := svc.ListInbox(ctx, recipient.ID, ListOptions{Status: models.MessageStatusPending})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, inbox, 2)

	empty, total, err := svc.ListInbox(ctx, other.ID, ListOptions{})
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, empty)

	details, err := svc.Get(ctx, recipient.ID, ids[0])
	require.NoError(t, err)
	require.Equal(t, models.MessageStatusAccepted, details.Message.Status)

	_, err = svc.Get(ctx, other.ID, ids[0])
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageServiceShareQRCode(t *testing.T) {
	clock := newTestClock()
	svc, _ := newTestMessageService(t, clock)
	sender := createTestUser(t, svc.db, "sender@example.com", "Sender")

	created, err := svc.Create(context.Background(), sender.ID, CreateMessageInput{Content: "QR"})
	require.NoError(t, err)

	png, err := svc.ShareQRCode(context.Background(), created.LinkToken(), 0)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
