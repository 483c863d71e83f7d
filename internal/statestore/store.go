// Package statestore provides a string-keyed value store with optional
// expiry, used for deduplication windows, cached lookups, and lightweight
// locks. Expired entries are logically absent on read; a traffic-triggered
// sweep reclaims storage as a side effect of ordinary calls.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/repository"
	"go.uber.org/zap"
)

const defaultSweepInterval = time.Hour

type Store struct {
	repo   repository.StateRepository
	logger *zap.Logger

	sweepInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	lastSweep time.Time
}

func NewStore(repo repository.StateRepository, sweepInterval time.Duration, logger *zap.Logger) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("state repository is required")
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		repo:          repo,
		logger:        logger,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}, nil
}

// Get returns the live value for key. The second return is false when the
// key is absent or its expiry has passed; a passed expiry also triggers a
// best-effort delete of the stale row.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.maybeSweep(ctx)

	entry, err := s.repo.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if entry.Expired(s.now()) {
		if err := s.repo.Delete(ctx, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to delete expired state entry",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return "", false, nil
	}

	return entry.Value, true, nil
}

// Set upserts key with value. A positive ttl expires the entry after now+ttl;
// a non-positive ttl stores it without expiry.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.maybeSweep(ctx)

	entry := &domain.StateEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}
	if ttl > 0 {
		expiresAt := s.now().Add(ttl)
		entry.ExpiresAt = &expiresAt
	}

	return s.repo.Upsert(ctx, entry)
}

// Expire refreshes the expiry of an existing entry without touching its
// value. Returns ErrNotFound when the key is absent.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", domain.ErrValidation)
	}
	return s.repo.SetExpiry(ctx, key, s.now().Add(ttl))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

// Cleanup removes every entry whose expiry has passed and returns the count.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// maybeSweep runs Cleanup when more than sweepInterval has elapsed since the
// last sweep. Exactly one concurrent caller wins the sweep; losers proceed
// without waiting. Sweep failures are logged and retried on the next window
// because lazy expiry on Get keeps reads correct regardless.
func (s *Store) maybeSweep(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	due := now.Sub(s.lastSweep) >= s.sweepInterval
	if due {
		s.lastSweep = now
	}
	s.mu.Unlock()

	if !due {
		return
	}

	removed, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Warn("state sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Debug("state sweep removed expired entries", zap.Int64("removed", removed))
	}
}
