package pool

import (
	"errors"
	"testing"

	"github.com/pysugar/kiro-account-pool/internal/db/models"
)

func TestAccept_AssignsAccountAndReturnsSecrets(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(user.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	view, err := coord.Accept(assignment.ID, user.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if view.AccessToken != acc.AccessToken || view.RefreshToken != acc.RefreshToken {
		t.Fatalf("expected credential view to carry the account secrets")
	}
	if got := accountStatus(t, db, acc.ID); got != models.AccountAssigned {
		t.Fatalf("expected account assigned, got %s", got)
	}

	var as models.Assignment
	if err := db.First(&as, "id = ?", assignment.ID).Error; err != nil {
		t.Fatalf("load assignment: %v", err)
	}
	if as.Status != models.AssignmentAccepted || as.AcceptedAt == nil {
		t.Fatalf("expected accepted status with timestamp, got %s / %v", as.Status, as.AcceptedAt)
	}

	var logs int64
	db.Model(&models.UsageLog{}).Where("user_id = ? AND account_id = ? AND action = ?",
		user.ID, acc.ID, "accept").Count(&logs)
	if logs != 1 {
		t.Fatalf("expected one accept usage log, got %d", logs)
	}
}

func TestAccept_SecondCallConflicts(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(user.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := coord.Accept(assignment.ID, user.ID); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	if _, err := coord.Accept(assignment.ID, user.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second accept, got %v", err)
	}
	if err := coord.Reject(assignment.ID, user.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict rejecting an accepted assignment, got %v", err)
	}
}

func TestAccept_WrongUserIsNotFound(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	owner := seedUser(t, db, "owner@example.com")
	other := seedUser(t, db, "other@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(owner.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := coord.Accept(assignment.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign assignment, got %v", err)
	}
}

func TestReject_ReleasesAccountForReassignment(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	u2 := seedUser(t, db, "u2@example.com")
	u3 := seedUser(t, db, "u3@example.com")
	a2 := seedAccount(t, db, "a2@x.com", models.AccountAvailable)

	as2, err := alloc.Assign(u2.ID, a2.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := coord.Reject(as2.ID, u2.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	var rejected models.Assignment
	if err := db.First(&rejected, "id = ?", as2.ID).Error; err != nil {
		t.Fatalf("load assignment: %v", err)
	}
	if rejected.Status != models.AssignmentRejected || rejected.RejectedAt == nil {
		t.Fatalf("expected rejected status with timestamp, got %s / %v", rejected.Status, rejected.RejectedAt)
	}
	if got := accountStatus(t, db, a2.ID); got != models.AccountAvailable {
		t.Fatalf("expected account back to available, got %s", got)
	}

	// The released account can be offered again.
	if _, err := alloc.Assign(u3.ID, a2.ID); err != nil {
		t.Fatalf("reassign after reject: %v", err)
	}
}

func TestListAssignments_JoinsDisplayFields(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(user.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	pending, err := coord.ListPending(user.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending assignment, got %d", len(pending))
	}
	got := pending[0]
	if got.ID != assignment.ID || got.UserEmail != user.Email || got.AccountEmail != acc.Email {
		t.Fatalf("joined view mismatch: %+v", got)
	}

	// Status filter excludes it once processed.
	if _, err := coord.Accept(assignment.ID, user.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	pending, err = coord.ListPending(user.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending assignments after accept, got %d", len(pending))
	}

	accepted, err := coord.ListAssignments(models.AssignmentAccepted, "")
	if err != nil {
		t.Fatalf("list accepted: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected one accepted assignment, got %d", len(accepted))
	}
}

// Full lifecycle: add -> assign -> conflict on re-assign -> accept ->
// undeletable.
func TestLeaseLifecycleScenario(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	u1 := seedUser(t, db, "u1@example.com")

	a1, err := store.Add(AccountInput{Email: "a@x.com", AccessToken: "tok", RefreshToken: "ref"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a1.Status != models.AccountAvailable {
		t.Fatalf("expected new account available, got %s", a1.Status)
	}

	as1, err := alloc.Assign(u1.ID, a1.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := accountStatus(t, db, a1.ID); got != models.AccountPending {
		t.Fatalf("expected pending, got %s", got)
	}

	if _, err := alloc.Assign(u1.ID, a1.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on re-assign, got %v", err)
	}

	view, err := coord.Accept(as1.ID, u1.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if view.AccessToken == "" {
		t.Fatalf("expected secret fields in credential view")
	}
	if got := accountStatus(t, db, a1.ID); got != models.AccountAssigned {
		t.Fatalf("expected assigned, got %s", got)
	}

	if err := alloc.Cancel(as1.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict cancelling accepted lease, got %v", err)
	}
}
