package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/kiro-account-pool/internal/api/middleware"
	"github.com/pysugar/kiro-account-pool/internal/audit"
	"github.com/pysugar/kiro-account-pool/internal/pool"
)

// AssignHandler offers an account to a user (admin).
func AssignHandler(allocator *pool.Allocator, coordinator *pool.Coordinator, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID    string `json:"user_id"`
			AccountID string `json:"account_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.UserID == "" || body.AccountID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and account_id are required"})
			return
		}

		assignment, err := allocator.Assign(body.UserID, body.AccountID)
		if err != nil {
			writeError(w, err)
			return
		}

		auditor.Log(auditEntry(r, "assign_account", "assignment", assignment.ID, map[string]interface{}{
			"user_id":    body.UserID,
			"account_id": body.AccountID,
		}))

		// Return the joined view so the admin UI has display fields.
		views, err := coordinator.ListAssignments("", body.UserID)
		if err == nil {
			for _, v := range views {
				if v.ID == assignment.ID {
					writeJSON(w, http.StatusOK, map[string]interface{}{"assignment": v})
					return
				}
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"assignment": assignment})
	}
}

// ListAssignmentsHandler returns assignments joined with display fields,
// with optional status and user filters (admin).
func ListAssignmentsHandler(coordinator *pool.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := coordinator.ListAssignments(r.URL.Query().Get("status"), r.URL.Query().Get("user_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": views})
	}
}

// CancelAssignmentHandler deletes a non-accepted assignment (admin).
func CancelAssignmentHandler(allocator *pool.Allocator, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := allocator.Cancel(id); err != nil {
			writeError(w, err)
			return
		}
		auditor.Log(auditEntry(r, "delete_assignment", "assignment", id, nil))
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}

// BatchCancelHandler cancels a set of assignments with per-item outcomes
// (admin).
func BatchCancelHandler(allocator *pool.Allocator, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.IDs) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids array is required"})
			return
		}

		res := allocator.BatchCancel(body.IDs)
		auditor.Log(auditEntry(r, "batch_cancel_assignments", "assignment", "", map[string]interface{}{
			"cancelled": res.Cancelled,
			"skipped":   res.Skipped,
		}))
		writeJSON(w, http.StatusOK, res)
	}
}

// MyAssignmentsHandler returns the calling user's assignments.
func MyAssignmentsHandler(coordinator *pool.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		views, err := coordinator.ListAssignments(r.URL.Query().Get("status"), claims.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": views})
	}
}

// PendingAssignmentsHandler returns the calling user's pending offers.
func PendingAssignmentsHandler(coordinator *pool.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		views, err := coordinator.ListPending(claims.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"assignments": views})
	}
}

// AcceptAssignmentHandler accepts an offer and returns the credential view.
func AcceptAssignmentHandler(coordinator *pool.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		view, err := coordinator.Accept(chi.URLParam(r, "id"), claims.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "accepted",
			"account": view,
		})
	}
}

// RejectAssignmentHandler rejects an offer.
func RejectAssignmentHandler(coordinator *pool.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if err := coordinator.Reject(chi.URLParam(r, "id"), claims.ID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "rejected"})
	}
}
