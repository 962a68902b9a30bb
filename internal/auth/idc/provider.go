// Package idc refreshes enterprise-class accounts (IAM Identity Center
// logins) through the standard OAuth2 refresh-token grant against the
// regional OIDC token endpoint.
package idc

import (
	"context"
	"fmt"

	"github.com/pysugar/kiro-account-pool/internal/auth"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"golang.org/x/oauth2"
)

// DefaultRegion is used when the account row carries no region.
const DefaultRegion = "us-east-1"

// Provider implements auth.TokenProvider for enterprise accounts.
type Provider struct{}

// NewProvider creates an enterprise token provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Refresh runs the refresh-token grant with the account's own client
// credentials.
func (p *Provider) Refresh(ctx context.Context, acc *models.Account) (*auth.Credentials, error) {
	if acc.RefreshToken == "" {
		return nil, fmt.Errorf("account %s has no refresh token", acc.ID)
	}
	if acc.ClientID == "" || acc.ClientSecret == "" {
		return nil, fmt.Errorf("account %s has no client credentials", acc.ID)
	}

	region := acc.Region
	if region == "" {
		region = DefaultRegion
	}

	conf := &oauth2.Config{
		ClientID:     acc.ClientID,
		ClientSecret: acc.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: fmt.Sprintf("https://oidc.%s.amazonaws.com/token", region),
		},
	}

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: acc.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("oidc refresh failed: %w", err)
	}

	creds := &auth.Credentials{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
	}
	// Persist rotated refresh token if provided (RFC 6749 compliance)
	if tok.RefreshToken != "" && tok.RefreshToken != acc.RefreshToken {
		creds.RefreshToken = tok.RefreshToken
	}
	return creds, nil
}
