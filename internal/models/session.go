package models

import "time"

// Session is a refresh-token backed login session. Only the SHA-256 digest of the refresh token
// is persisted.
type Session struct {
	BaseModel

	UserID           string     `gorm:"size:36;not null;index" json:"user_id"`
	RefreshTokenHash string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	IPAddress        string     `json:"ip_address"`
	UserAgent        string     `json:"user_agent"`
	ExpiresAt        time.Time  `gorm:"index" json:"expires_at"`
	LastUsedAt       time.Time  `json:"last_used_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}
