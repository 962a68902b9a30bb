// Package auth defines the token provider boundary: given an account's
// refresh material, a provider returns fresh credentials. The pool engine
// treats providers as opaque and only ever calls Refresh.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pysugar/kiro-account-pool/internal/db/models"
)

// Credentials is the result of a successful token refresh. RefreshToken is
// empty unless the provider rotated it.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenProvider exchanges an account's refresh material for a new access
// token.
type TokenProvider interface {
	Refresh(ctx context.Context, acc *models.Account) (*Credentials, error)
}

// Mux routes refresh calls to the provider registered for the account's
// provider class. Accounts with no provider set use the default class.
type Mux struct {
	providers    map[string]TokenProvider
	defaultClass string
}

// NewMux creates a provider mux routing to defaultClass when the account
// row carries no provider.
func NewMux(defaultClass string) *Mux {
	return &Mux{
		providers:    make(map[string]TokenProvider),
		defaultClass: defaultClass,
	}
}

// Register binds a provider class name to its implementation.
func (m *Mux) Register(class string, p TokenProvider) {
	m.providers[class] = p
}

// Refresh dispatches to the account's provider.
func (m *Mux) Refresh(ctx context.Context, acc *models.Account) (*Credentials, error) {
	class := acc.Provider
	if class == "" {
		class = m.defaultClass
	}
	p, ok := m.providers[class]
	if !ok {
		return nil, fmt.Errorf("no token provider for class %q", class)
	}
	return p.Refresh(ctx, acc)
}
