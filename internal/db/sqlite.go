package db

import (
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitDB opens the SQLite database and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := database.AutoMigrate(
		&models.Account{},
		&models.Assignment{},
		&models.User{},
		&models.Admin{},
		&models.UsageLog{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}

	return database, nil
}

// EnsureAdmin creates the default administrator on first run.
func EnsureAdmin(database *gorm.DB, username, password string) error {
	var admin models.Admin
	if err := database.Where("username = ?", username).First(&admin).Error; err == nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin = models.Admin{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         "admin",
		CreatedAt:    time.Now(),
	}
	if err := database.Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("🔑 Created default admin: %s", username)
	return nil
}
