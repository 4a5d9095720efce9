package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
)

func newTestProximityService(t *testing.T, clock *testClock, opts ...ProximityOption) (*ProximityService, *MessageService, *recordingNotifier) {
	t.Helper()

	messages, notifier := newTestMessageService(t, clock)
	base := []ProximityOption{
		WithProximityClock(clock.Now),
		WithProximityNotifier(notifier),
	}
	svc, err := NewProximityService(messages.db, messages, append(base, opts...)...)
	require.NoError(t, err)
	return svc, messages, notifier
}

func TestNewProximityServiceRequiresDependencies(t *testing.T) {
	_, err := NewProximityService(nil, nil)
	require.Error(t, err)

	db := openServiceTestDB(t)
	_, err = NewProximityService(db, nil)
	require.Error(t, err)
}

// Create, attach, connect, fetch, then a second attach is refused.
func TestProximityServiceHandshake(t *testing.T) {
	clock := newTestClock()
	svc, messages, notifier := newTestProximityService(t, clock)
	initiator := createTestUser(t, svc.db, "init@example.com", "Initiator")
	recipient := createTestUser(t, svc.db, "x@example.com", "X")
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, initiator.ID, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, session.ProximityToken)
	require.True(t, session.ExpiresAt.Equal(clock.Now().Add(5*time.Minute)))

	message, err := svc.AttachMessage(ctx, initiator.ID, session.ProximityToken, "lunch?")
	require.NoError(t, err)
	require.Equal(t, models.MessageChannelProximity, message.Channel)
	require.Nil(t, message.RecipientID)
	require.True(t, message.SingleUse)

	info, err := svc.Connect(ctx, recipient.ID, session.ProximityToken)
	require.NoError(t, err)
	require.True(t, info.HasMessage)
	require.Equal(t, message.ID, info.MessageID)
	require.Equal(t, "Initiator", info.InitiatorName)

	fetched, err := svc.FetchMessage(ctx, session.ProximityToken)
	require.NoError(t, err)
	require.Equal(t, message.ID, fetched.Message.ID)
	require.Equal(t, models.MessageStatusPending, fetched.Message.Status)
	require.NotEmpty(t, fetched.LinkToken())

	_, err = svc.AttachMessage(ctx, initiator.ID, session.ProximityToken, "other")
	require.ErrorIs(t, err, ErrSessionMessageAttached)

	var count int64
	require.NoError(t, svc.db.Model(&models.Message{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The fetched token answers through the shared respond path and binds the recipient.
	answered, err := messages.Respond(ctx, recipient.ID, RespondTarget{Token: fetched.LinkToken()}, ActionAccept)
	require.NoError(t, err)
	require.Equal(t, recipient.ID, *answered.RecipientID)

	var connected bool
	for _, recorded := range notifier.Events() {
		if recorded.event.Type == notifications.EventProximityConnected {
			require.Equal(t, initiator.ID, recorded.userID)
			connected = true
		}
	}
	require.True(t, connected)
}

func TestProximityServiceAttachPreconditions(t *testing.T) {
	clock := newTestClock()
	svc, _, _ := newTestProximityService(t, clock)
	initiator := createTestUser(t, svc.db, "init@example.com", "Initiator")
	other := createTestUser(t, svc.db, "other@example.com", "Other")
	ctx := context.Background()

	_, err := svc.AttachMessage(ctx, initiator.ID, "missing", "hello")
	require.ErrorIs(t, err, ErrSessionNotFound)

	session, err := svc.CreateSession(ctx, initiator.ID, time.Minute)
	require.NoError(t, err)

	_, err = svc.AttachMessage(ctx, other.ID, session.ProximityToken, "hello")
	require.ErrorIs(t, err, ErrNotSessionInitiator)

	_, err = svc.AttachMessage(ctx, initiator.ID, session.ProximityToken, "   ")
	require.ErrorIs(t, err, ErrMessageContentRequired)

	clock.Advance(2 * time.Minute)
	_, err = svc.AttachMessage(ctx, initiator.ID, session.ProximityToken, "hello")
	require.ErrorIs(t, err, ErrSessionExpired)

	var count int64
	require.NoError(t, svc.db.Model(&models.Message{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestProximityServiceConnectAndFetchErrors(t *testing.T) {
	clock := newTestClock()
	svc, _, _ := newTestProximityService(t, clock)
	initiator := createTestUser(t, svc.db, "init@example.com", "Initiator")
	recipient := createTestUser(t, svc.db, "x@example.com", "X")
	ctx := context.Background()

	_, err := svc.Connect(ctx, recipient.ID, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	session, err := svc.CreateSession(ctx, initiator.ID, 0)
	require.NoError(t, err)
	require.True(t, session.ExpiresAt.Equal(clock.Now().Add(defaultSessionTTL)))

	_, err = svc.Connect(ctx, initiator.ID, session.ProximityToken)
	require.ErrorIs(t, err, ErrInitiatorCannotConnect)

	info, err := svc.Connect(ctx, recipient.ID, session.ProximityToken)
	require.NoError(t, err)
	require.False(t, info.HasMessage)

	_, err = svc.FetchMessage(ctx, session.ProximityToken)
	require.ErrorIs(t, err, ErrSessionMessageMissing)

	clock.Advance(defaultSessionTTL + time.Second)
	_, err = svc.Connect(ctx, recipient.ID, session.ProximityToken)
	require.ErrorIs(t, err, ErrSessionExpired)
	_, err = svc.FetchMessage(ctx, session.ProximityToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestProximityServiceSessionTTLBounds(t *testing.T) {
	clock := newTestClock()
	svc, _, _ := newTestProximityService(t, clock, WithMaxSessionTTL(10*time.Minute))
	initiator := createTestUser(t, svc.db, "init@example.com", "Initiator")
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, initiator.ID, 2*time.Hour)
	require.NoError(t, err)
	require.True(t, session.ExpiresAt.Equal(clock.Now().Add(10*time.Minute)))
	require.True(t, session.CreatedAt.Equal(clock.Now()))

	_, err = svc.CreateSession(ctx, initiator.ID, -time.Second)
	require.ErrorIs(t, err, ErrInvalidSessionTTL)

	_, err = svc.CreateSession(ctx, " ", time.Minute)
	require.ErrorIs(t, err, ErrActorRequired)
}
