package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/kiro-account-pool/internal/api/middleware"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Username string `json:"username"`
}

type userView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Nickname    string     `json:"nickname"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func toUserView(u *models.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		Nickname:    u.Nickname,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// RegisterHandler creates a user account and returns a session token.
func RegisterHandler(db *gorm.DB, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentialsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Email == "" || body.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
			return
		}
		if !emailRe.MatchString(body.Email) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email format"})
			return
		}
		if len(body.Password) < 6 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 6 characters"})
			return
		}

		var existing models.User
		if err := db.Where("email = ?", body.Email).First(&existing).Error; err == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email already registered"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
			return
		}

		user := models.User{
			ID:           uuid.New().String(),
			Email:        body.Email,
			PasswordHash: string(hash),
			Nickname:     body.Nickname,
			Status:       models.UserActive,
			CreatedAt:    time.Now(),
		}
		if err := db.Create(&user).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
			return
		}

		token, err := middleware.GenerateToken(secret, user.ID, user.Email, middleware.TokenUser)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"user":  toUserView(&user),
		})
	}
}

// LoginHandler authenticates a user and returns a session token.
func LoginHandler(db *gorm.DB, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentialsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Email == "" || body.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
			return
		}

		var user models.User
		if err := db.Where("email = ?", body.Email).First(&user).Error; err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}
		if user.Status != models.UserActive {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "account disabled"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
			return
		}

		now := time.Now()
		db.Model(&user).Update("last_login_at", now)
		user.LastLoginAt = &now

		token, err := middleware.GenerateToken(secret, user.ID, user.Email, middleware.TokenUser)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"user":  toUserView(&user),
		})
	}
}

// AdminLoginHandler authenticates an administrator.
func AdminLoginHandler(db *gorm.DB, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentialsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Username == "" || body.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
			return
		}

		var admin models.Admin
		if err := db.Where("username = ?", body.Username).First(&admin).Error; err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(body.Password)) != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
			return
		}

		token, err := middleware.GenerateToken(secret, admin.ID, admin.Username, middleware.TokenAdmin)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token": token,
			"admin": map[string]string{
				"id":       admin.ID,
				"username": admin.Username,
				"role":     admin.Role,
			},
		})
	}
}

// MeHandler returns the current user's profile.
func MeHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		var user models.User
		if err := db.First(&user, "id = ?", claims.ID).Error; err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserView(&user)})
	}
}
