package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/northbeam/tokend/internal/auth/domain"
	"github.com/northbeam/tokend/internal/auth/identity"
)

// DefaultSweepInterval is how often the expiration sweep runs when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// TokenExpirationService periodically deletes stale token rows: expired
// fingerprints and rows with a blank value. It is a janitor, not a
// correctness mechanism; the token service already rejects stale
// fingerprints on use.
type TokenExpirationService struct {
	store    identity.Store
	log      *slog.Logger
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewTokenExpirationService(store identity.Store, log *slog.Logger, interval time.Duration) *TokenExpirationService {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &TokenExpirationService{
		store:    store,
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. Sweeps run one at a time on a single
// goroutine; a slow sweep delays the next tick rather than overlapping it.
func (s *TokenExpirationService) Start() {
	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("token expiration sweeper started", "interval", s.interval)
		for {
			select {
			case <-ticker.C:
				s.sweep(context.Background())
			case <-s.stopCh:
				s.log.Info("token expiration sweeper stopped")
				return
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight sweep to finish.
func (s *TokenExpirationService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// sweep scans every token name the service maintains. Errors are logged
// and swallowed; the next tick retries. Shutdown is honored between store
// round-trips, never mid-batch.
func (s *TokenExpirationService) sweep(ctx context.Context) {
	now := time.Now().UTC()
	for _, name := range []string{TokenNameRefresh, TokenNameMFALogin} {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.sweepName(ctx, name, now); err != nil {
			s.log.Error("token sweep failed", "name", name, "error", err)
		}
	}
}

func (s *TokenExpirationService) sweepName(ctx context.Context, name string, now time.Time) error {
	tokens, err := s.store.ListAuthTokens(ctx, Provider, name)
	if err != nil {
		return err
	}

	var stale []domain.AuthToken
	for _, t := range tokens {
		if t.Value == "" || (t.ExpiresAt != nil && t.ExpiresAt.Before(now)) {
			stale = append(stale, t)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	if err := s.store.DeleteAuthTokens(ctx, stale); err != nil {
		return err
	}
	s.log.Info("swept stale tokens", "name", name, "count", len(stale))
	return nil
}
