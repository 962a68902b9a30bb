package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TokenUser  = "user"
	TokenAdmin = "admin"
)

// Claims are the session claims for both users and admins.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsKey contextKey = "claims"

// GenerateToken signs a 7-day session token.
func GenerateToken(secret, id, email, tokenType string) (string, error) {
	claims := Claims{
		ID:    id,
		Email: email,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ClaimsFromContext returns the verified claims set by the auth middleware.
func ClaimsFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(claimsKey).(*Claims); ok {
		return c
	}
	return nil
}

func parseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func requireType(secret, tokenType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				http.Error(w, `{"error": "not logged in"}`, http.StatusUnauthorized)
				return
			}
			claims, err := parseToken(secret, raw)
			if err != nil {
				http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
				return
			}
			if claims.Type != tokenType {
				http.Error(w, `{"error": "forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// UserAuth requires a valid user session token.
func UserAuth(secret string) func(http.Handler) http.Handler {
	return requireType(secret, TokenUser)
}

// AdminAuth requires a valid admin session token.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	return requireType(secret, TokenAdmin)
}
