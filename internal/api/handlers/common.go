package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/pysugar/kiro-account-pool/internal/api/middleware"
	"github.com/pysugar/kiro-account-pool/internal/audit"
	"github.com/pysugar/kiro-account-pool/internal/pool"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the pool error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is an internal error.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pool.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pool.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, pool.ErrValidation):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// auditEntry builds the common part of an audit entry from the admin session.
func auditEntry(r *http.Request, action, targetType, targetID string, details map[string]interface{}) audit.Entry {
	e := audit.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
		IPAddress:  clientIP(r),
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		e.AdminID = claims.ID
		e.AdminUsername = claims.Email
	}
	return e
}
