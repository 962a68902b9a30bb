package pool

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

// newTestDB opens a fresh named in-memory database so parallel connections
// from the pool all see the same data.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:pool_test_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Assignment{},
		&models.User{},
		&models.UsageLog{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Status:    models.UserActive,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedAccount(t *testing.T, db *gorm.DB, email, status string) *models.Account {
	t.Helper()
	acc := models.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Provider:     "social",
		AccessToken:  "at-" + email,
		RefreshToken: "rt-" + email,
		Status:       status,
	}
	if err := db.Create(&acc).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return &acc
}

func accountStatus(t *testing.T, db *gorm.DB, id string) string {
	t.Helper()
	var acc models.Account
	if err := db.First(&acc, "id = ?", id).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	return acc.Status
}
