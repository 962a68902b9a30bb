package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/kiro-account-pool/internal/audit"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"github.com/pysugar/kiro-account-pool/internal/pool"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type adminUserView struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Nickname        string     `json:"nickname"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at"`
	AssignmentCount int        `json:"assignment_count"`
	AcceptedCount   int        `json:"accepted_count"`
}

// ListUsersHandler returns all users with their assignment counts (admin).
func ListUsersHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var views []adminUserView
		err := db.Table("users").
			Select(`users.id, users.email, users.nickname, users.status, users.created_at, users.last_login_at,
				COUNT(DISTINCT assignments.id) AS assignment_count,
				COUNT(DISTINCT CASE WHEN assignments.status = 'accepted' THEN assignments.id END) AS accepted_count`).
			Joins("LEFT JOIN assignments ON assignments.user_id = users.id").
			Group("users.id").
			Order("users.created_at DESC").
			Scan(&views).Error
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"users": views})
	}
}

// UpdateUserStatusHandler sets a user's status (admin).
func UpdateUserStatusHandler(db *gorm.DB, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		switch body.Status {
		case models.UserActive, models.UserInactive, models.UserBanned:
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}

		res := db.Model(&models.User{}).Where("id = ?", id).Update("status", body.Status)
		if res.Error != nil {
			writeError(w, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}

		auditor.Log(auditEntry(r, "update_user_status", "user", id, map[string]interface{}{"status": body.Status}))
		writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	}
}

// ResetPasswordHandler sets a user's password (admin).
func ResetPasswordHandler(db *gorm.DB, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var body struct {
			NewPassword string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.NewPassword) < 6 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 6 characters"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, err)
			return
		}

		res := db.Model(&models.User{}).Where("id = ?", id).Update("password_hash", string(hash))
		if res.Error != nil {
			writeError(w, res.Error)
			return
		}
		if res.RowsAffected == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}

		auditor.Log(auditEntry(r, "reset_user_password", "user", id, nil))
		writeJSON(w, http.StatusOK, map[string]string{"message": "password reset"})
	}
}

// DeleteUserHandler removes a user (admin). Pending offers release their
// accounts back to the pool; accepted leases keep their accounts assigned.
func DeleteUserHandler(db *gorm.DB, allocator *pool.Allocator, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var user models.User
		if err := db.First(&user, "id = ?", id).Error; err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}

		if err := allocator.ReleaseUser(id); err != nil {
			writeError(w, err)
			return
		}
		if err := db.Where("user_id = ?", id).Delete(&models.UsageLog{}).Error; err != nil {
			writeError(w, err)
			return
		}
		if err := db.Delete(&models.User{}, "id = ?", id).Error; err != nil {
			writeError(w, err)
			return
		}

		auditor.Log(auditEntry(r, "delete_user", "user", id, nil))
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}
