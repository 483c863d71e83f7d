// Package registry selects among ranked, interchangeable providers and
// records their outcome statistics. Priority is a static operator-assigned
// rank: error counters never demote a provider automatically, so a flapping
// backend stays in rotation until an operator (or a supervisory process
// reading the counters) deactivates it.
package registry

import (
	"context"
	"fmt"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/repository"
	"go.uber.org/zap"
)

type Registry struct {
	providers repository.ProviderRepository
	logger    *zap.Logger
}

func NewRegistry(providers repository.ProviderRepository, logger *zap.Logger) (*Registry, error) {
	if providers == nil {
		return nil, fmt.Errorf("provider repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		providers: providers,
		logger:    logger,
	}, nil
}

// ActiveProviders returns active providers in ascending priority order.
func (r *Registry) ActiveProviders(ctx context.Context) ([]domain.Provider, error) {
	return r.providers.ListActive(ctx)
}

// Get returns a provider by id.
func (r *Registry) Get(ctx context.Context, providerID string) (*domain.Provider, error) {
	return r.providers.GetByID(ctx, providerID)
}

// BestProvider returns the highest-ranked active provider, or nil when the
// rotation is empty. Callers must treat nil as "skip or bypass", not as a
// retryable provider error.
func (r *Registry) BestProvider(ctx context.Context) (*domain.Provider, error) {
	active, err := r.providers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	best := active[0]
	return &best, nil
}

// RecordOutcome reports one delivery or analysis outcome for a provider. The
// repository increments counters atomically, so concurrent reporters for the
// same provider cannot lose updates.
func (r *Registry) RecordOutcome(ctx context.Context, providerID string, success bool, outcomeErr error) error {
	var lastError *string
	if outcomeErr != nil {
		msg := outcomeErr.Error()
		lastError = &msg
	}

	if err := r.providers.RecordOutcome(ctx, providerID, success, lastError); err != nil {
		return err
	}

	if !success {
		r.logger.Debug("provider outcome recorded",
			zap.String("providerId", providerID),
			zap.Bool("success", success),
			zap.Error(outcomeErr),
		)
	}
	return nil
}

// SetActive toggles a provider in or out of rotation. Counters are kept.
func (r *Registry) SetActive(ctx context.Context, providerID string, active bool) error {
	if err := r.providers.SetActive(ctx, providerID, active); err != nil {
		return err
	}

	r.logger.Info("provider active flag changed",
		zap.String("providerId", providerID),
		zap.Bool("active", active),
	)
	return nil
}

// Seed upserts operator-configured providers at boot.
func (r *Registry) Seed(ctx context.Context, providers []domain.Provider) error {
	for i := range providers {
		p := providers[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if err := r.providers.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed provider %q: %w", p.Name, err)
		}
	}
	return nil
}
