package pool

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"gorm.io/gorm"
)

// Allocator is the admin-facing half of the lease state machine: it hands
// accounts out of the pool and takes offers back. Every operation runs in
// one transaction, and every account status flip is a conditional update
// guarded by the expected prior status, so an Assign racing the scheduler
// or another Assign on the same row resolves to one winner per account
// without any pool-wide lock.
type Allocator struct {
	db *gorm.DB
}

// NewAllocator creates an allocator.
func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{db: db}
}

// Assign offers an available account to a user and creates the pending
// assignment. The available->pending conditional update is the authoritative
// exclusivity guard; the duplicate-pair check just gives a clearer error for
// repeat offers.
func (a *Allocator) Assign(userID, accountID string) (*models.Assignment, error) {
	var assignment models.Assignment

	err := a.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("user %s: %w", userID, ErrNotFound)
			}
			return err
		}

		var acc models.Account
		if err := tx.First(&acc, "id = ?", accountID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
			}
			return err
		}

		var dup int64
		if err := tx.Model(&models.Assignment{}).
			Where("user_id = ? AND account_id = ? AND status = ?", userID, accountID, models.AssignmentPending).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fmt.Errorf("user %s already has a pending offer for account %s: %w", userID, accountID, ErrConflict)
		}

		res := tx.Model(&models.Account{}).
			Where("id = ? AND status = ?", accountID, models.AccountAvailable).
			Update("status", models.AccountPending)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("account %s is not available: %w", accountID, ErrConflict)
		}

		assignment = models.Assignment{
			ID:         uuid.New().String(),
			UserID:     userID,
			AccountID:  accountID,
			Status:     models.AssignmentPending,
			AssignedAt: time.Now(),
		}
		return tx.Create(&assignment).Error
	})
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Cancel deletes a non-accepted assignment. A cancelled pending offer puts
// the account back in the pool; a banned account keeps its ban.
func (a *Allocator) Cancel(assignmentID string) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		var assignment models.Assignment
		if err := tx.First(&assignment, "id = ?", assignmentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
			}
			return err
		}

		if assignment.Status == models.AssignmentAccepted {
			return fmt.Errorf("assignment %s is accepted: %w", assignmentID, ErrConflict)
		}

		if err := tx.Delete(&models.Assignment{}, "id = ?", assignmentID).Error; err != nil {
			return err
		}

		// Only a pending offer holds the account; a rejected one already
		// released it, and the account may have moved on since.
		if assignment.Status == models.AssignmentPending {
			if err := tx.Model(&models.Account{}).
				Where("id = ? AND status = ?", assignment.AccountID, models.AccountPending).
				Update("status", models.AccountAvailable).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchCancelResult reports per-item outcomes of a batch cancel.
type BatchCancelResult struct {
	Cancelled int               `json:"cancelled"`
	Skipped   int               `json:"skipped"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// BatchCancel cancels each assignment independently. A failure on one id is
// recorded and the rest still proceed.
func (a *Allocator) BatchCancel(ids []string) BatchCancelResult {
	res := BatchCancelResult{}
	for _, id := range ids {
		if err := a.Cancel(id); err != nil {
			res.Skipped++
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[id] = err.Error()
			continue
		}
		res.Cancelled++
	}
	return res
}

// ReleaseUser tears down a user's leases when the user is deleted: pending
// offers release their accounts back to the pool, and all of the user's
// assignment rows go away. Accounts behind accepted leases deliberately stay
// assigned; reclaiming a credential a departed user may still hold is an
// explicit admin decision, not an automatic one.
func (a *Allocator) ReleaseUser(userID string) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		var assignments []models.Assignment
		if err := tx.Where("user_id = ?", userID).Find(&assignments).Error; err != nil {
			return err
		}

		for _, as := range assignments {
			if as.Status != models.AssignmentPending {
				continue
			}
			if err := tx.Model(&models.Account{}).
				Where("id = ? AND status = ?", as.AccountID, models.AccountPending).
				Update("status", models.AccountAvailable).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.Assignment{}).Error; err != nil {
			return err
		}

		if len(assignments) > 0 {
			log.Printf("♻️ Released %d assignment(s) for user %s", len(assignments), userID)
		}
		return nil
	})
}
