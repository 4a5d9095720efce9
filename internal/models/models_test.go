package models

import (
	"testing"
	"time"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}

	preset := BaseModel{ID: "fixed"}
	if err := preset.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if preset.ID != "fixed" {
		t.Fatal("expected existing ID to be preserved")
	}
}

func TestMessageStatusTerminal(t *testing.T) {
	cases := []struct {
		status   MessageStatus
		terminal bool
		valid    bool
	}{
		{MessageStatusPending, false, true},
		{MessageStatusAccepted, true, true},
		{MessageStatusRejected, true, true},
		{MessageStatus("archived"), false, false},
	}

	for _, tc := range cases {
		if got := tc.status.IsTerminal(); got != tc.terminal {
			t.Fatalf("%s: IsTerminal = %v, want %v", tc.status, got, tc.terminal)
		}
		if got := tc.status.Valid(); got != tc.valid {
			t.Fatalf("%s: Valid = %v, want %v", tc.status, got, tc.valid)
		}
	}
}

func TestMessageLinkExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Second)

	msg := &Message{LinkExpiresAt: &expires}
	if msg.LinkExpired(now) {
		t.Fatal("link should be valid before expiry")
	}
	if msg.LinkExpired(expires) {
		t.Fatal("link should be valid at the exact expiry instant")
	}
	if !msg.LinkExpired(expires.Add(time.Millisecond)) {
		t.Fatal("link should be expired after expiry")
	}

	if (&Message{}).LinkExpired(now) {
		t.Fatal("message without expiry never expires")
	}
}

func TestMessageLinkConsumed(t *testing.T) {
	if (&Message{SingleUse: false, LinkUsed: true}).LinkConsumed() {
		t.Fatal("multi-use links are never consumed")
	}
	if !(&Message{SingleUse: true, LinkUsed: true}).LinkConsumed() {
		t.Fatal("used single-use link should be consumed")
	}

	empty := ""
	if (&Message{RecipientID: &empty}).HasRecipient() {
		t.Fatal("empty recipient is not bound")
	}
}

func TestProximitySessionState(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	session := &ProximitySession{ExpiresAt: now.Add(5 * time.Minute)}

	if session.Expired(now) {
		t.Fatal("session should be active")
	}
	if !session.Expired(now.Add(6 * time.Minute)) {
		t.Fatal("session should be expired")
	}
	if session.HasMessage() {
		t.Fatal("new session has no message")
	}

	id := "msg-1"
	session.MessageID = &id
	if !session.HasMessage() {
		t.Fatal("expected attached message")
	}
}
