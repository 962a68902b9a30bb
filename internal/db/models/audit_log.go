package models

import "time"

// UsageLog records user-side account activity (currently: accepting a lease).
type UsageLog struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	AccountID string `gorm:"index"`
	Action    string
	CreatedAt time.Time `gorm:"index"`
}

// AuditLog records an administrative action. Write-only from the engine's
// point of view: nothing in the pool ever reads it back.
type AuditLog struct {
	ID            uint   `gorm:"primaryKey"`
	AdminID       string `gorm:"index"`
	AdminUsername string
	Action        string `gorm:"index"`
	TargetType    string
	TargetID      string
	Details       string // JSON blob
	IPAddress     string
	CreatedAt     time.Time `gorm:"index"`
}
