package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole controls access to the admin console.
type UserRole string

const (
	// RoleAdmin manages everything.
	RoleAdmin UserRole = "admin"
	// RoleAuthor writes and manages their own posts.
	RoleAuthor UserRole = "author"
	// RoleReader has no admin console access.
	RoleReader UserRole = "reader"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleAuthor || r == RoleReader
}

// IsStaff reports whether r may use the admin console.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleAuthor
}

// User represents an account.
type User struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Username        *string    `gorm:"size:50;uniqueIndex" json:"username"`
	Password        string     `gorm:"size:255;not null" json:"-"`
	AvatarURL       *string    `gorm:"size:512" json:"avatar_url"`
	Role            UserRole   `gorm:"type:varchar(20);not null;default:'reader'" json:"role"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an ID when none was provided.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsVerified reports whether the email address was confirmed.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// DisplayName falls back from username to the email local part to a placeholder.
func (u *User) DisplayName() string {
	if u == nil {
		return AnonymousAuthorName
	}
	if u.Username != nil && strings.TrimSpace(*u.Username) != "" {
		return *u.Username
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return AnonymousAuthorName
}

// TokenPurpose identifies what a one-time user token unlocks.
type TokenPurpose string

const (
	// TokenPurposeVerifyEmail confirms ownership of an email address.
	TokenPurposeVerifyEmail TokenPurpose = "verify_email"
	// TokenPurposeResetPassword allows setting a new password.
	TokenPurposeResetPassword TokenPurpose = "reset_password"
)

// UserToken is a single-use emailed token. Only its SHA-256 hash is stored.
type UserToken struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Purpose   TokenPurpose `gorm:"type:varchar(32);not null;index" json:"purpose"`
	TokenHash string       `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time    `gorm:"not null;index" json:"expires_at"`
	UsedAt    *time.Time   `json:"used_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (UserToken) TableName() string {
	return "user_tokens"
}

// BeforeCreate assigns an ID when none was provided.
func (t *UserToken) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Usable reports whether the token may still be redeemed at now.
func (t *UserToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
