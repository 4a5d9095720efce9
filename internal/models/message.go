package models

import "time"

// MessageStatus captures the consent lifecycle. Pending is the only non-terminal state.
type MessageStatus string

const (
	MessageStatusPending  MessageStatus = "pending"
	MessageStatusAccepted MessageStatus = "accepted"
	MessageStatusRejected MessageStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusAccepted || s == MessageStatusRejected
}

// Valid reports whether s is a known status.
func (s MessageStatus) Valid() bool {
	return s == MessageStatusPending || s.IsTerminal()
}

// MessageChannel records how a message was created.
type MessageChannel string

const (
	MessageChannelLink      MessageChannel = "link"
	MessageChannelDirect    MessageChannel = "direct"
	MessageChannelProximity MessageChannel = "proximity"
)

// Message is a consent request from a sender that a recipient accepts or rejects.
// Content is write-once; status only ever moves from pending to a terminal state.
type Message struct {
	BaseModel

	SenderID      string         `gorm:"size:36;index" json:"sender_id"`
	RecipientID   *string        `gorm:"size:36;index" json:"recipient_id,omitempty"`
	Content       string         `gorm:"type:text;not null" json:"content"`
	Status        MessageStatus  `gorm:"size:16;not null;default:pending;index" json:"status"`
	Channel       MessageChannel `gorm:"size:16;not null;default:link" json:"channel"`
	LinkToken     *string        `gorm:"size:64;uniqueIndex" json:"-"`
	LinkExpiresAt *time.Time     `gorm:"index" json:"link_expires_at,omitempty"`
	SingleUse     bool           `gorm:"not null;default:false" json:"single_use"`
	LinkUsed      bool           `gorm:"not null;default:false" json:"link_used"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
}

// LinkExpired reports whether the share link has passed its expiry at now.
func (m *Message) LinkExpired(now time.Time) bool {
	return m.LinkExpiresAt != nil && now.After(*m.LinkExpiresAt)
}

// LinkConsumed reports whether a single-use link has already been redeemed.
func (m *Message) LinkConsumed() bool {
	return m.SingleUse && m.LinkUsed
}

// HasRecipient reports whether a recipient identity is bound to the message.
func (m *Message) HasRecipient() bool {
	return m.RecipientID != nil && *m.RecipientID != ""
}
