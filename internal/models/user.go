package models

import "time"

// User is the local identity record. Authentication providers beyond email/password are handled
// by the external identity system and only ever surface here as a stable ID and display name.
type User struct {
	BaseModel

	Email       string `gorm:"size:320;uniqueIndex;not null" json:"email"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `gorm:"size:128" json:"display_name"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// DeletedUserName is shown in place of a sender whose account has been removed.
const DeletedUserName = "Deleted user"
