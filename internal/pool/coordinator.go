package pool

import (
	"fmt"
	"time"

	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"gorm.io/gorm"
)

// Coordinator is the user-facing half of the lease state machine: a user
// accepts or rejects an offer made by the allocator. Pending is the only
// state an assignment ever leaves; accepted and rejected are terminal.
type Coordinator struct {
	db *gorm.DB
}

// NewCoordinator creates a coordinator.
func NewCoordinator(db *gorm.DB) *Coordinator {
	return &Coordinator{db: db}
}

// CredentialView is the secret material handed to a user on accept. This is
// the single point where tokens cross the trust boundary out of the pool.
type CredentialView struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Provider     string     `json:"provider"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ProfileArn   string     `json:"profile_arn"`
	ClientIDHash string     `json:"client_id_hash"`
	Region       string     `json:"region"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// loadOwned fetches an assignment and checks it belongs to the caller.
func loadOwned(tx *gorm.DB, assignmentID, userID string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := tx.First(&assignment, "id = ? AND user_id = ?", assignmentID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
		}
		return nil, err
	}
	return &assignment, nil
}

// Accept marks a pending assignment accepted and hands out the account's
// credentials. A second Accept (or an Accept after Reject) fails with
// ErrConflict no matter the interleaving: the pending->accepted flip is a
// conditional update and only one caller wins it.
func (c *Coordinator) Accept(assignmentID, userID string) (*CredentialView, error) {
	var view CredentialView

	err := c.db.Transaction(func(tx *gorm.DB) error {
		assignment, err := loadOwned(tx, assignmentID, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Assignment{}).
			Where("id = ? AND status = ?", assignmentID, models.AssignmentPending).
			Updates(map[string]interface{}{
				"status":      models.AssignmentAccepted,
				"accepted_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("assignment %s already processed: %w", assignmentID, ErrConflict)
		}

		// A banned account stays banned; anything else an accepted lease
		// holds is assigned.
		if err := tx.Model(&models.Account{}).
			Where("id = ? AND status <> ?", assignment.AccountID, models.AccountBanned).
			Update("status", models.AccountAssigned).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.UsageLog{
			UserID:    userID,
			AccountID: assignment.AccountID,
			Action:    "accept",
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}

		var acc models.Account
		if err := tx.First(&acc, "id = ?", assignment.AccountID).Error; err != nil {
			return err
		}
		view = CredentialView{
			ID:           acc.ID,
			Email:        acc.Email,
			Provider:     acc.Provider,
			AccessToken:  acc.AccessToken,
			RefreshToken: acc.RefreshToken,
			ProfileArn:   acc.ProfileArn,
			ClientIDHash: acc.ClientIDHash,
			Region:       acc.Region,
			ClientID:     acc.ClientID,
			ClientSecret: acc.ClientSecret,
			ExpiresAt:    acc.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Reject marks a pending assignment rejected and puts the account back in
// the pool (a banned account keeps its ban).
func (c *Coordinator) Reject(assignmentID, userID string) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		assignment, err := loadOwned(tx, assignmentID, userID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Assignment{}).
			Where("id = ? AND status = ?", assignmentID, models.AssignmentPending).
			Updates(map[string]interface{}{
				"status":      models.AssignmentRejected,
				"rejected_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("assignment %s already processed: %w", assignmentID, ErrConflict)
		}

		return tx.Model(&models.Account{}).
			Where("id = ? AND status = ?", assignment.AccountID, models.AccountPending).
			Update("status", models.AccountAvailable).Error
	})
}

// AssignmentView is an assignment joined with the display fields the list
// endpoints need.
type AssignmentView struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	AccountID    string     `json:"account_id"`
	Status       string     `json:"status"`
	AssignedAt   time.Time  `json:"assigned_at"`
	AcceptedAt   *time.Time `json:"accepted_at"`
	RejectedAt   *time.Time `json:"rejected_at"`
	UserEmail    string     `json:"user_email"`
	UserNickname string     `json:"user_nickname"`
	AccountEmail string     `json:"account_email"`
	Provider     string     `json:"provider"`
	Remark       string     `json:"remark"`
}

const assignmentViewSelect = `assignments.id, assignments.user_id, assignments.account_id,
	assignments.status, assignments.assigned_at, assignments.accepted_at, assignments.rejected_at,
	users.email AS user_email, users.nickname AS user_nickname,
	accounts.email AS account_email, accounts.provider, accounts.remark`

// ListAssignments returns assignments joined with user and account display
// fields, optionally filtered by status and/or user, newest first.
func (c *Coordinator) ListAssignments(status, userID string) ([]AssignmentView, error) {
	q := c.db.Table("assignments").
		Select(assignmentViewSelect).
		Joins("JOIN users ON users.id = assignments.user_id").
		Joins("JOIN accounts ON accounts.id = assignments.account_id").
		Order("assignments.assigned_at DESC")
	if status != "" {
		q = q.Where("assignments.status = ?", status)
	}
	if userID != "" {
		q = q.Where("assignments.user_id = ?", userID)
	}

	var views []AssignmentView
	if err := q.Scan(&views).Error; err != nil {
		return nil, err
	}
	return views, nil
}

// ListPending returns a user's pending offers.
func (c *Coordinator) ListPending(userID string) ([]AssignmentView, error) {
	return c.ListAssignments(models.AssignmentPending, userID)
}
