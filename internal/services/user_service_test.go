package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	apperrors "github.com/xoen85/accept-connect-app-oqvfkg/pkg/errors"
)

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{Email: " Alice@Example.com ", Password: "Secret123!"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.Equal(t, "alice", user.DisplayName)
	require.NotEqual(t, "Secret123!", user.Password)

	_, err = svc.Register(ctx, RegisterUserInput{Email: "alice@example.com", Password: "Another1!"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Register(ctx, RegisterUserInput{Email: "", Password: "x"})
	require.Error(t, err)

	authed, err := svc.Authenticate(ctx, "ALICE@example.com", "Secret123!")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "Secret123!")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)
	_, err = svc.Authenticate(ctx, "alice@example.com", "Secret123!")
	require.ErrorIs(t, err, ErrUserInactive)
}

func TestUserServiceDeleteAnonymisesSentMessages(t *testing.T) {
	clock := newTestClock()
	messages, _ := newTestMessageService(t, clock)
	db := messages.db
	proximity, err := NewProximityService(db, messages, WithProximityClock(clock.Now))
	require.NoError(t, err)
	users, err := NewUserService(db)
	require.NoError(t, err)
	ctx := context.Background()

	sender := createTestUser(t, db, "sender@example.com", "Sender")
	recipient := createTestUser(t, db, "recipient@example.com", "Recipient")

	created, err := messages.Create(ctx, sender.ID, CreateMessageInput{Content: "Keep me", RecipientID: recipient.ID})
	require.NoError(t, err)
	_, err = proximity.CreateSession(ctx, sender.ID, 0)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Session{
		UserID:           sender.ID,
		RefreshTokenHash: "hash",
		ExpiresAt:        clock.Now(),
		LastUsedAt:       clock.Now(),
	}).Error)

	require.NoError(t, users.Delete(ctx, sender.ID))

	_, err = users.GetByID(ctx, sender.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	inbox, total, err := messages.ListInbox(ctx, recipient.ID, ListOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, created.Message.ID, inbox[0].Message.ID)
	require.Empty(t, inbox[0].Message.SenderID)
	require.Equal(t, models.DeletedUserName, inbox[0].SenderName)

	var sessions, proximitySessions int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessions).Error)
	require.NoError(t, db.Model(&models.ProximitySession{}).Count(&proximitySessions).Error)
	require.Zero(t, sessions)
	require.Zero(t, proximitySessions)

	require.ErrorIs(t, users.Delete(ctx, sender.ID), ErrUserNotFound)
}

func TestShareURLAndQRCode(t *testing.T) {
	require.Equal(t, "https://x.test/m/abc", ShareURL("https://x.test/m/", "abc"))
	require.Equal(t, "abc", ShareURL("", "abc"))
	require.Empty(t, ShareURL("https://x.test", " "))

	png, err := RenderQRCode("https://x.test/m/abc", 10)
	require.NoError(t, err)
	require.NotEmpty(t, png)

	_, err = RenderQRCode("", 128)
	require.Error(t, err)
}
