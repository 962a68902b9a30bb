package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/kiro-account-pool/internal/audit"
	"github.com/pysugar/kiro-account-pool/internal/pool"
)

// ListAccountsHandler returns the pool, optionally filtered by status and
// provider. Admin-only, so token fields are included as stored.
func ListAccountsHandler(store *pool.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := store.List(r.URL.Query().Get("status"), r.URL.Query().Get("provider"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": accounts,
			"count":    len(accounts),
		})
	}
}

// AddAccountHandler adds one account to the pool.
func AddAccountHandler(store *pool.Store, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in pool.AccountInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		acc, err := store.Add(in)
		if err != nil {
			writeError(w, err)
			return
		}

		auditor.Log(auditEntry(r, "add_account", "account", acc.ID, map[string]interface{}{"email": acc.Email}))
		writeJSON(w, http.StatusOK, map[string]interface{}{"account": acc})
	}
}

// ImportAccountsHandler adds a batch of accounts with per-item outcomes.
func ImportAccountsHandler(store *pool.Store, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Accounts []pool.AccountInput `json:"accounts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(body.Accounts) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "accounts array is required"})
			return
		}

		res := store.Import(body.Accounts)
		auditor.Log(auditEntry(r, "import_accounts", "account", "", map[string]interface{}{
			"success": res.Success,
			"failed":  res.Failed,
		}))
		writeJSON(w, http.StatusOK, res)
	}
}

// UpdateAccountHandler overwrites an account's fields.
func UpdateAccountHandler(store *pool.Store, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var in pool.AccountInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		acc, err := store.Update(id, in)
		if err != nil {
			writeError(w, err)
			return
		}

		auditor.Log(auditEntry(r, "update_account", "account", id, nil))
		writeJSON(w, http.StatusOK, map[string]interface{}{"account": acc})
	}
}

// DeleteAccountHandler removes an account that has no pending assignment.
func DeleteAccountHandler(store *pool.Store, auditor *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.Delete(id); err != nil {
			writeError(w, err)
			return
		}
		auditor.Log(auditEntry(r, "delete_account", "account", id, nil))
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}
