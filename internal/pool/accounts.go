package pool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"gorm.io/gorm"
)

// Store owns the account records. Everything that writes an account row,
// other than the refresh scheduler's token writeback, goes through here or
// through Allocator/Coordinator in this package.
type Store struct {
	db *gorm.DB
}

// NewStore creates an account store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AccountInput carries the admin-supplied fields for add/import/update.
// Token and session fields are stored verbatim.
type AccountInput struct {
	Email        string     `json:"email"`
	Provider     string     `json:"provider"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	IDToken      string     `json:"id_token"`
	ProfileArn   string     `json:"profile_arn"`
	ClientIDHash string     `json:"client_id_hash"`
	Region       string     `json:"region"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	SSOSessionID string     `json:"sso_session_id"`
	ExpiresAt    *time.Time `json:"expires_at"`
	Status       string     `json:"status"`
	Remark       string     `json:"remark"`
}

func validStatus(s string) bool {
	switch s {
	case models.AccountAvailable, models.AccountPending, models.AccountAssigned, models.AccountBanned:
		return true
	}
	return false
}

// List returns accounts, optionally filtered by status and/or provider,
// newest first.
func (s *Store) List(status, provider string) ([]models.Account, error) {
	q := s.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}
	var accounts []models.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// Get returns a single account by id.
func (s *Store) Get(id string) (*models.Account, error) {
	var acc models.Account
	if err := s.db.First(&acc, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &acc, nil
}

// Add creates a new account in the pool, status available.
func (s *Store) Add(in AccountInput) (*models.Account, error) {
	if in.Email == "" {
		return nil, fmt.Errorf("email is required: %w", ErrValidation)
	}

	acc := models.Account{
		ID:           uuid.New().String(),
		Email:        in.Email,
		Provider:     in.Provider,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		IDToken:      in.IDToken,
		ProfileArn:   in.ProfileArn,
		ClientIDHash: in.ClientIDHash,
		Region:       in.Region,
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		SSOSessionID: in.SSOSessionID,
		ExpiresAt:    in.ExpiresAt,
		Status:       models.AccountAvailable,
		Remark:       in.Remark,
	}
	if err := s.db.Create(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// ImportError reports one failed item of a batch import.
type ImportError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// ImportResult reports per-item outcomes of a batch import. Items are
// attempted independently; one bad entry never aborts the rest.
type ImportResult struct {
	Success int           `json:"success_count"`
	Failed  int           `json:"fail_count"`
	Errors  []ImportError `json:"errors,omitempty"`
}

// Import adds a batch of accounts with best-effort semantics.
func (s *Store) Import(items []AccountInput) ImportResult {
	var res ImportResult
	for _, in := range items {
		if _, err := s.Add(in); err != nil {
			res.Failed++
			email := in.Email
			if email == "" {
				email = "unknown"
			}
			res.Errors = append(res.Errors, ImportError{Email: email, Error: err.Error()})
			continue
		}
		res.Success++
	}
	return res
}

// Update overwrites an account's fields. Status may be set here too: this
// is the admin override path, and in particular the only way an account
// becomes banned.
func (s *Store) Update(id string, in AccountInput) (*models.Account, error) {
	if in.Email == "" {
		return nil, fmt.Errorf("email is required: %w", ErrValidation)
	}
	if in.Status != "" && !validStatus(in.Status) {
		return nil, fmt.Errorf("invalid status %q: %w", in.Status, ErrValidation)
	}

	acc, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	acc.Email = in.Email
	acc.Provider = in.Provider
	acc.AccessToken = in.AccessToken
	acc.RefreshToken = in.RefreshToken
	acc.IDToken = in.IDToken
	acc.ProfileArn = in.ProfileArn
	acc.ClientIDHash = in.ClientIDHash
	acc.Region = in.Region
	acc.ClientID = in.ClientID
	acc.ClientSecret = in.ClientSecret
	acc.SSOSessionID = in.SSOSessionID
	acc.ExpiresAt = in.ExpiresAt
	acc.Remark = in.Remark
	if in.Status != "" {
		acc.Status = in.Status
	}
	if err := s.db.Save(acc).Error; err != nil {
		return nil, err
	}
	return acc, nil
}

// Delete removes an account. An account with a pending assignment cannot
// be deleted: the offer has to be cancelled first.
func (s *Store) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var acc models.Account
		if err := tx.First(&acc, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("account %s: %w", id, ErrNotFound)
			}
			return err
		}

		var pending int64
		if err := tx.Model(&models.Assignment{}).
			Where("account_id = ? AND status = ?", id, models.AssignmentPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return fmt.Errorf("account %s has a pending assignment: %w", id, ErrConflict)
		}

		return tx.Delete(&models.Account{}, "id = ?", id).Error
	})
}
