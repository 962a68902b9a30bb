package handlers

import (
	"net/http"
	"strconv"

	"github.com/pysugar/kiro-account-pool/internal/audit"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"github.com/pysugar/kiro-account-pool/internal/refresh"
	"gorm.io/gorm"
)

// StatsHandler returns pool and assignment counts for the admin dashboard.
func StatsHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count := func(model interface{}, query string, args ...interface{}) int64 {
			var n int64
			q := db.Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			q.Count(&n)
			return n
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stats": map[string]int64{
				"user_count":          count(&models.User{}, ""),
				"account_count":       count(&models.Account{}, ""),
				"available_count":     count(&models.Account{}, "status = ?", models.AccountAvailable),
				"assigned_count":      count(&models.Account{}, "status = ?", models.AccountAssigned),
				"banned_count":        count(&models.Account{}, "status = ?", models.AccountBanned),
				"pending_assignments": count(&models.Assignment{}, "status = ?", models.AssignmentPending),
				"accepted_assignments": count(&models.Assignment{},
					"status = ?", models.AssignmentAccepted),
			},
		})
	}
}

// AuditLogsHandler returns recent admin actions.
func AuditLogsHandler(auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		logs, total, err := auditor.Recent(limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logs":  logs,
			"total": total,
		})
	}
}

// RefreshHandler triggers one manual refresh pass and reports the outcome.
func RefreshHandler(scheduler *refresh.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary := scheduler.RunOnce(r.Context())

		failures := make(map[string]string)
		for _, res := range summary.Results {
			if res.Err != nil {
				failures[res.Email] = res.Err.Error()
			}
		}
		resp := map[string]interface{}{
			"selected":  summary.Selected,
			"refreshed": summary.Refreshed,
			"failed":    summary.Failed,
		}
		if len(failures) > 0 {
			resp["failures"] = failures
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
