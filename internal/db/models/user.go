package models

import "time"

// User statuses.
const (
	UserActive   = "active"
	UserInactive = "inactive"
	UserBanned   = "banned"
)

// User is an end user that accounts get leased to.
type User struct {
	ID           string `gorm:"primaryKey"` // UUID
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	Nickname     string
	Status       string `gorm:"index;default:active"`
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Admin is an administrator account for the management API.
type Admin struct {
	ID           string `gorm:"primaryKey"` // UUID
	Username     string `gorm:"uniqueIndex"`
	PasswordHash string
	Role         string `gorm:"default:admin"`
	CreatedAt    time.Time
}
