package models

import "time"

// Account statuses. Banned is terminal and administrative; the refresh
// scheduler and the allocator both skip banned accounts.
const (
	AccountAvailable = "available"
	AccountPending   = "pending"
	AccountAssigned  = "assigned"
	AccountBanned    = "banned"
)

// Account is one pooled Kiro credential that can be leased to a user.
// Token and session fields are opaque blobs: the engine stores and hands
// them out but never interprets them.
type Account struct {
	ID           string `gorm:"primaryKey"` // UUID
	Email        string `gorm:"index"`
	Provider     string `gorm:"index"` // e.g. "social", "enterprise"
	AccessToken  string
	RefreshToken string
	IDToken      string
	ProfileArn   string
	ClientIDHash string
	Region       string
	ClientID     string
	ClientSecret string
	SSOSessionID string
	ExpiresAt    *time.Time // nil = expiry unknown, never selected for refresh
	Status       string     `gorm:"index;default:available"`
	Remark       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
