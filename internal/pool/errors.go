// Package pool implements the credential pool: account CRUD, the
// account/assignment state machine, and the lease workflow between
// administrators and users. All account and assignment status writes in
// the whole program happen inside this package.
package pool

import "errors"

// Error taxonomy for pool operations. Callers classify with errors.Is;
// everything else is an internal error.
var (
	// ErrNotFound means a referenced user, account, or assignment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the operation violates the state machine, e.g.
	// assigning a non-available account or cancelling an accepted lease.
	ErrConflict = errors.New("conflict")

	// ErrValidation means the input itself is malformed.
	ErrValidation = errors.New("validation")
)
