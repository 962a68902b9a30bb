// Package refresh keeps pool credentials alive: a background scheduler
// scans for soon-to-expire accounts and refreshes each one concurrently
// through its token provider. It writes token and expiry columns only and
// never touches account status, so it cannot corrupt the allocator's state
// machine no matter how the two interleave.
package refresh

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pysugar/kiro-account-pool/internal/auth"
	"github.com/pysugar/kiro-account-pool/internal/db/models"
	"gorm.io/gorm"
)

// Defaults. Kiro access tokens live for about an hour, so a pass every
// 50 minutes with a 5 minute threshold renews each token once per lifetime.
const (
	DefaultInterval  = 50 * time.Minute
	DefaultThreshold = 5 * time.Minute
)

// Result is the outcome of one account's refresh within a pass.
type Result struct {
	AccountID string
	Email     string
	Err       error
}

// Summary aggregates one full pass. Failures are per-account; a pass as a
// whole never fails.
type Summary struct {
	Selected  int
	Refreshed int
	Failed    int
	Results   []Result
}

// Scheduler owns the refresh timer. At most one timer is armed per
// scheduler instance; Reconfigure swaps the interval without ever leaving
// two armed at once. An in-flight pass is never cancelled by Stop or
// Reconfigure, it just runs to completion.
type Scheduler struct {
	db        *gorm.DB
	provider  auth.TokenProvider
	threshold time.Duration

	mu   sync.Mutex
	stop chan struct{} // non-nil while a timer is armed
}

// NewScheduler creates a scheduler. A zero threshold selects the default.
func NewScheduler(db *gorm.DB, provider auth.TokenProvider, threshold time.Duration) *Scheduler {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Scheduler{db: db, provider: provider, threshold: threshold}
}

// Start arms the timer and runs one eager pass. Starting an already-running
// scheduler is a no-op; use Reconfigure to change the interval.
func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		log.Printf("⚠️ Refresh scheduler already running, ignoring Start")
		return
	}
	s.stop = make(chan struct{})
	go s.loop(interval, s.stop)
	log.Printf("🔄 Token refresh scheduler started (interval: %s, threshold: %s)", interval, s.threshold)
}

// Stop disarms the timer. Any pass already underway finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	log.Printf("🛑 Token refresh scheduler stopped")
}

// Reconfigure stops the current timer and arms a new one with the given
// interval, as one step under the scheduler lock.
func (s *Scheduler) Reconfigure(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
	}
	s.stop = make(chan struct{})
	go s.loop(interval, s.stop)
	log.Printf("🔄 Token refresh scheduler reconfigured (interval: %s)", interval)
}

func (s *Scheduler) loop(interval time.Duration, stop chan struct{}) {
	s.RunOnce(context.Background())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs one refresh pass: select every non-banned account whose
// known expiry falls inside the threshold, refresh them all concurrently,
// and wait for every result. Accounts with no recorded expiry are not
// actionable and are skipped. Re-running against an already-fresh account
// is a harmless redundant exchange, so overlapping passes are safe.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	cutoff := time.Now().Add(s.threshold)

	var accounts []models.Account
	if err := s.db.
		Where("status <> ? AND expires_at IS NOT NULL AND expires_at < ?", models.AccountBanned, cutoff).
		Find(&accounts).Error; err != nil {
		log.Printf("⚠️ Refresh pass aborted, account scan failed: %v", err)
		return Summary{}
	}

	if len(accounts) == 0 {
		return Summary{}
	}

	results := make(chan Result, len(accounts))
	var wg sync.WaitGroup
	for i := range accounts {
		acc := accounts[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.refreshOne(ctx, &acc)
		}()
	}
	wg.Wait()
	close(results)

	summary := Summary{Selected: len(accounts)}
	for r := range results {
		summary.Results = append(summary.Results, r)
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Refreshed++
		}
	}
	log.Printf("🔄 Refresh pass done: %d selected, %d refreshed, %d failed",
		summary.Selected, summary.Refreshed, summary.Failed)
	return summary
}

// refreshOne refreshes a single account and writes back token and expiry
// columns. On failure the row is left untouched; the account stays eligible
// for the next pass.
func (s *Scheduler) refreshOne(ctx context.Context, acc *models.Account) Result {
	creds, err := s.provider.Refresh(ctx, acc)
	if err != nil {
		log.Printf("❌ Refresh failed for %s: %v", acc.Email, err)
		return Result{AccountID: acc.ID, Email: acc.Email, Err: err}
	}

	updates := map[string]interface{}{
		"access_token": creds.AccessToken,
		"expires_at":   creds.ExpiresAt,
	}
	if creds.RefreshToken != "" && creds.RefreshToken != acc.RefreshToken {
		log.Printf("🔄 Rotating refresh token for: %s", acc.Email)
		updates["refresh_token"] = creds.RefreshToken
	}

	if err := s.db.Model(&models.Account{}).Where("id = ?", acc.ID).Updates(updates).Error; err != nil {
		log.Printf("⚠️ Failed to save refreshed token for %s: %v", acc.Email, err)
		return Result{AccountID: acc.ID, Email: acc.Email, Err: err}
	}

	log.Printf("✅ Refreshed token for: %s (expires: %s)", acc.Email, creds.ExpiresAt.Format(time.RFC3339))
	return Result{AccountID: acc.ID, Email: acc.Email}
}
