// Package audit records administrative actions. The sink is write-only and
// best effort: a failed audit write is logged and never fails the action
// that triggered it.
package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"gorm.io/gorm"
)

// Logger writes admin audit entries.
type Logger struct {
	db *gorm.DB
}

// NewLogger creates an audit logger.
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

// Entry identifies who did what to which record.
type Entry struct {
	AdminID       string
	AdminUsername string
	Action        string
	TargetType    string
	TargetID      string
	Details       map[string]interface{}
	IPAddress     string
}

// Log persists one entry.
func (l *Logger) Log(e Entry) {
	var details string
	if e.Details != nil {
		if b, err := json.Marshal(e.Details); err == nil {
			details = string(b)
		}
	}

	rec := models.AuditLog{
		AdminID:       e.AdminID,
		AdminUsername: e.AdminUsername,
		Action:        e.Action,
		TargetType:    e.TargetType,
		TargetID:      e.TargetID,
		Details:       details,
		IPAddress:     e.IPAddress,
		CreatedAt:     time.Now(),
	}
	if err := l.db.Create(&rec).Error; err != nil {
		log.Printf("⚠️ Failed to write audit log (%s): %v", e.Action, err)
	}
}

// Recent returns the newest entries with the total count, for the admin
// audit view.
func (l *Logger) Recent(limit, offset int) ([]models.AuditLog, int64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := l.db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	var total int64
	if err := l.db.Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
