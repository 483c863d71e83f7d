// Package analyzer classifies monitored posts with ranked LLM backends and
// decides whether a notification should be pushed. Selection reuses the
// provider registry: active providers are walked in priority order and the
// first successful structured verdict wins.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/registry"
	"go.uber.org/zap"
)

// Post is the unit of content submitted for classification.
type Post struct {
	AccountID string
	PostID    string
	Content   string
}

// Classification is the structured verdict returned by a backend.
type Classification struct {
	ShouldPush bool    `json:"should_push"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
}

// Client performs one classification call against one provider.
type Client interface {
	Classify(ctx context.Context, provider domain.Provider, post Post) (*Classification, error)
}

type Service struct {
	registry *registry.Registry
	client   Client
	logger   *zap.Logger
}

func NewService(reg *registry.Registry, client Client, logger *zap.Logger) (*Service, error) {
	if reg == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if client == nil {
		return nil, fmt.Errorf("analyzer client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		registry: reg,
		client:   client,
		logger:   logger,
	}, nil
}

// Analyze walks active providers in priority order until one returns a
// verdict. Every attempted provider gets an outcome recorded, so the counters
// reflect per-backend reliability even when a later fallback succeeds.
func (s *Service) Analyze(ctx context.Context, post Post) (*Classification, error) {
	if strings.TrimSpace(post.Content) == "" {
		return nil, fmt.Errorf("%w: post content is required", domain.ErrValidation)
	}

	providers, err := s.registry.ActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, domain.ErrNoProvider
	}

	var lastErr error
	for i := range providers {
		provider := providers[i]

		verdict, classifyErr := s.client.Classify(ctx, provider, post)
		if recordErr := s.registry.RecordOutcome(ctx, provider.ID, classifyErr == nil, classifyErr); recordErr != nil {
			s.logger.Error("failed to record analysis outcome",
				zap.String("providerId", provider.ID),
				zap.Error(recordErr),
			)
		}

		if classifyErr == nil {
			s.logger.Debug("post classified",
				zap.String("provider", provider.Name),
				zap.String("postId", post.PostID),
				zap.Bool("shouldPush", verdict.ShouldPush),
				zap.Float64("confidence", verdict.Confidence),
			)
			return verdict, nil
		}

		if errors.Is(classifyErr, context.Canceled) || errors.Is(classifyErr, context.DeadlineExceeded) {
			return nil, classifyErr
		}

		lastErr = classifyErr
		s.logger.Warn("analysis provider failed, trying next",
			zap.String("provider", provider.Name),
			zap.String("postId", post.PostID),
			zap.Error(classifyErr),
		)
	}

	return nil, fmt.Errorf("all analysis providers failed: %w", lastErr)
}
