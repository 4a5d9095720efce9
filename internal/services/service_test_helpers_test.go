package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xoen85/accept-connect-app-oqvfkg/internal/database/testutil"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/models"
	"github.com/xoen85/accept-connect-app-oqvfkg/internal/notifications"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	userID string
	event  notifications.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(userID string, event notifications.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{userID: userID, event: event})
}

func (n *recordingNotifier) Events() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func createTestUser(t *testing.T, db *gorm.DB, email, name string) *models.User {
	t.Helper()

	user := &models.User{
		Email:       email,
		Password:    "$2a$10$placeholderplaceholderplaceholderplaceholderplacehold",
		DisplayName: name,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func boolPtr(value bool) *bool {
	return &value
}
