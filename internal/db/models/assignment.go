package models

import "time"

// Assignment statuses. Accepted and rejected are terminal.
const (
	AssignmentPending  = "pending"
	AssignmentAccepted = "accepted"
	AssignmentRejected = "rejected"
)

// Assignment is a lease offer of one account to one user. It carries its
// own accept/reject lifecycle; the linked account status is kept in lockstep
// by the pool package.
type Assignment struct {
	ID         string `gorm:"primaryKey"` // UUID
	UserID     string `gorm:"index"`
	AccountID  string `gorm:"index"`
	Status     string `gorm:"index;default:pending"`
	AssignedAt time.Time
	AcceptedAt *time.Time
	RejectedAt *time.Time
}
