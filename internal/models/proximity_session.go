package models

import "time"

// ProximitySession is a short-lived handshake advertised by an initiator so a nearby, not yet
// identified device can pick up exactly one message.
type ProximitySession struct {
	BaseModel

	InitiatorID    string    `gorm:"size:36;not null;index" json:"initiator_id"`
	ProximityToken string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`
	MessageID      *string   `gorm:"size:36" json:"message_id,omitempty"`

	Message *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:SET NULL" json:"message,omitempty"`
}

// Expired reports whether the session can no longer be used at now.
func (s *ProximitySession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// HasMessage reports whether a message has been attached.
func (s *ProximitySession) HasMessage() bool {
	return s.MessageID != nil && *s.MessageID != ""
}
