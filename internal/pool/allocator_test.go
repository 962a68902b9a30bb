package pool

import (
	"errors"
	"sync"
	"testing"

	"github.com/pysugar/kiro-account-pool/internal/db/models"
)

func TestAssign_MovesAccountToPending(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(user.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.Status != models.AssignmentPending {
		t.Fatalf("expected pending assignment, got %s", assignment.Status)
	}
	if got := accountStatus(t, db, acc.ID); got != models.AccountPending {
		t.Fatalf("expected account pending, got %s", got)
	}
}

func TestAssign_MissingUserOrAccount(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	if _, err := alloc.Assign("no-such-user", acc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
	if _, err := alloc.Assign(user.ID, "no-such-account"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing account, got %v", err)
	}
}

func TestAssign_DuplicatePendingPairRejected(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	if _, err := alloc.Assign(user.ID, acc.ID); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := alloc.Assign(user.ID, acc.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on repeat assign, got %v", err)
	}
}

func TestAssign_NonAvailableAccountRejected(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	user := seedUser(t, db, "u1@example.com")

	for _, status := range []string{models.AccountPending, models.AccountAssigned, models.AccountBanned} {
		acc := seedAccount(t, db, status+"@x.com", status)
		if _, err := alloc.Assign(user.ID, acc.ID); !errors.Is(err, ErrConflict) {
			t.Fatalf("status %s: expected ErrConflict, got %v", status, err)
		}
	}
}

func TestAssign_ConcurrentSingleWinner(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	u1 := seedUser(t, db, "u1@example.com")
	u2 := seedUser(t, db, "u2@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, uid := range []string{u1.ID, u2.ID} {
		wg.Add(1)
		go func(i int, uid string) {
			defer wg.Done()
			_, errs[i] = alloc.Assign(uid, acc.ID)
		}(i, uid)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got ok=%d conflict=%d", ok, conflict)
	}
	if got := accountStatus(t, db, acc.ID); got != models.AccountPending {
		t.Fatalf("expected account pending, got %s", got)
	}

	var count int64
	db.Model(&models.Assignment{}).Where("account_id = ? AND status = ?", acc.ID, models.AssignmentPending).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one pending assignment, got %d", count)
	}
}

func TestCancel_PendingRevertsAccount(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(user.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := alloc.Cancel(assignment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := accountStatus(t, db, acc.ID); got != models.AccountAvailable {
		t.Fatalf("expected account available after cancel, got %s", got)
	}

	var count int64
	db.Model(&models.Assignment{}).Where("id = ?", assignment.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected assignment row deleted")
	}
}

func TestCancel_AcceptedIsUndeletable(t *testing.T) {
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
		t.Fatalf("accept: %v", err)
	}

	if err := alloc.Cancel(assignment.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict cancelling accepted lease, got %v", err)
	}
	if got := accountStatus(t, db, acc.ID); got != models.AccountAssigned {
		t.Fatalf("cancel must not mutate state, account status = %s", got)
	}
	var count int64
	db.Model(&models.Assignment{}).Where("id = ?", assignment.ID).Count(&count)
	if count != 1 {
		t.Fatalf("cancel must not delete an accepted assignment")
	}
}

func TestCancel_NotFound(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	if err := alloc.Cancel("no-such-assignment"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancel_BannedAccountStaysBanned(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	user := seedUser(t, db, "u1@example.com")
	acc := seedAccount(t, db, "a@x.com", models.AccountAvailable)

	assignment, err := alloc.Assign(user.ID, acc.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	// Admin bans the account while the offer is still open.
	if err := db.Model(&models.Account{}).Where("id = ?", acc.ID).
		Update("status", models.AccountBanned).Error; err != nil {
		t.Fatalf("ban account: %v", err)
	}

	if err := alloc.Cancel(assignment.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := accountStatus(t, db, acc.ID); got != models.AccountBanned {
		t.Fatalf("expected banned account to stay banned, got %s", got)
	}
}

func TestBatchCancel_PartialFailure(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	user := seedUser(t, db, "u1@example.com")
	a1 := seedAccount(t, db, "a1@x.com", models.AccountAvailable)
	a2 := seedAccount(t, db, "a2@x.com", models.AccountAvailable)

	as1, err := alloc.Assign(user.ID, a1.ID)
	if err != nil {
		t.Fatalf("assign a1: %v", err)
	}
	as2, err := alloc.Assign(user.ID, a2.ID)
	if err != nil {
		t.Fatalf("assign a2: %v", err)
	}
	if _, err := coord.Accept(as2.ID, user.ID); err != nil {
		t.Fatalf("accept as2: %v", err)
	}

	res := alloc.BatchCancel([]string{as1.ID, as2.ID, "missing"})
	if res.Cancelled != 1 || res.Skipped != 2 {
		t.Fatalf("expected 1 cancelled / 2 skipped, got %d / %d", res.Cancelled, res.Skipped)
	}
	if _, ok := res.Errors[as2.ID]; !ok {
		t.Fatalf("expected per-id error for accepted assignment")
	}
	if _, ok := res.Errors["missing"]; !ok {
		t.Fatalf("expected per-id error for missing assignment")
	}
}

func TestReleaseUser_PendingRevertsAcceptedStaysAssigned(t *testing.T) {
	db := newTestDB(t)
	alloc := NewAllocator(db)
	coord := NewCoordinator(db)
	user := seedUser(t, db, "u1@example.com")
	a4 := seedAccount(t, db, "a4@x.com", models.AccountAvailable)
	a5 := seedAccount(t, db, "a5@x.com", models.AccountAvailable)

	if _, err := alloc.Assign(user.ID, a4.ID); err != nil {
		t.Fatalf("assign a4: %v", err)
	}
	accepted, err := alloc.Assign(user.ID, a5.ID)
	if err != nil {
		t.Fatalf("assign a5: %v", err)
	}
	if _, err := coord.Accept(accepted.ID, user.ID); err != nil {
		t.Fatalf("accept a5: %v", err)
	}

	if err := alloc.ReleaseUser(user.ID); err != nil {
		t.Fatalf("release user: %v", err)
	}

	if got := accountStatus(t, db, a4.ID); got != models.AccountAvailable {
		t.Fatalf("expected pending account back to available, got %s", got)
	}
	// Orphaned accepted lease: account stays assigned, by policy.
	if got := accountStatus(t, db, a5.ID); got != models.AccountAssigned {
		t.Fatalf("expected accepted account to stay assigned, got %s", got)
	}

	var count int64
	db.Model(&models.Assignment{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected all assignment rows deleted, got %d", count)
	}
}
