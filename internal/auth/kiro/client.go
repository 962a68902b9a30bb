// Package kiro talks to the Kiro desktop auth service, which backs the
// social-login account class.
package kiro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pysugar/kiro-account-pool/internal/auth"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
)

// DefaultEndpoint is the production Kiro auth service.
const DefaultEndpoint = "https://prod.us-east-1.auth.desktop.kiro.dev"

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

// Client calls the Kiro auth service refreshToken endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a Kiro auth service client. An empty endpoint selects
// the production service.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // generous, the service is slow behind proxies
		},
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // seconds
	ExpiresAt    string `json:"expiresAt"` // RFC3339, some responses carry this instead
}

// Refresh exchanges the account's refresh token for a new access token.
// Network errors are retried up to three times; a 401 means the refresh
// material is revoked and is not retried.
func (c *Client) Refresh(ctx context.Context, acc *models.Account) (*auth.Credentials, error) {
	if acc.RefreshToken == "" {
		return nil, fmt.Errorf("account %s has no refresh token", acc.ID)
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: acc.RefreshToken})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/refreshToken", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("kiro auth service request failed: %w", err)
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("kiro auth service read body failed: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("refresh token expired or revoked")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("kiro auth service refresh failed: %d - %s", resp.StatusCode, data)
		}

		var parsed refreshResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("kiro auth service refresh parse failed: %w", err)
		}
		if parsed.AccessToken == "" {
			return nil, fmt.Errorf("kiro auth service returned no access token")
		}

		return &auth.Credentials{
			AccessToken:  parsed.AccessToken,
			RefreshToken: parsed.RefreshToken,
			ExpiresAt:    parsed.expiry(),
		}, nil
	}

	return nil, lastErr
}

func (r refreshResponse) expiry() time.Time {
	if r.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
			return t
		}
	}
	if r.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	// The service has always returned one of the two; an hour is its
	// observed token lifetime.
	return time.Now().Add(time.Hour)
}
