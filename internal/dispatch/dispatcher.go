// Package dispatch owns the notification lifecycle: enqueue with
// deduplication, claim of due work, provider selection, bounded delivery,
// backoff-scheduled retry, and terminal failure.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/observability"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/ratelimit"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/registry"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/repository"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/sender"
	"github.com/zhumao520/TweetAnalyst-sub001/internal/statestore"
	"go.uber.org/zap"
)

const (
	defaultDedupTTL       = 10 * time.Minute
	defaultSenderTimeout  = 10 * time.Second
	defaultBaseRetryDelay = 30 * time.Second
	defaultMaxRetryDelay  = time.Hour
	defaultBatchLimit     = 100

	// How long a claimed notification may sit in sending before it is
	// presumed abandoned. Must comfortably exceed the sender timeout.
	defaultStaleSendingAfter = 5 * time.Minute

	maxRetryJitterMillis = 250

	reasonNoProvider = "no_provider_available"
	maxErrorMsgLen   = 255
)

// Options tune the dispatcher. Zero values fall back to defaults.
type Options struct {
	DedupTTL           time.Duration
	SenderTimeout      time.Duration
	BaseRetryDelay     time.Duration
	MaxRetryDelay      time.Duration
	StaleSendingAfter  time.Duration
	BatchLimit         int
	DefaultMaxAttempts int
}

// Draft is the caller-supplied input to Enqueue.
type Draft struct {
	Title       *string
	Message     string
	Tag         *string
	Targets     *string
	MaxAttempts int
	AccountID   *string
	PostID      *string
	MetaData    map[string]any
}

type Dispatcher struct {
	notifications repository.NotificationRepository
	registry      *registry.Registry
	state         *statestore.Store
	sender        sender.Sender
	limiter       ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics

	dedupTTL           time.Duration
	senderTimeout      time.Duration
	baseRetryDelay     time.Duration
	maxRetryDelay      time.Duration
	staleSendingAfter  time.Duration
	batchLimit         int
	defaultMaxAttempts int

	now      func() time.Time
	randIntn func(n int) int
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	reg *registry.Registry,
	state *statestore.Store,
	snd sender.Sender,
	limiter ratelimit.RateLimiter,
	opts Options,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if state == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if snd == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.DedupTTL <= 0 {
		opts.DedupTTL = defaultDedupTTL
	}
	if opts.SenderTimeout <= 0 {
		opts.SenderTimeout = defaultSenderTimeout
	}
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = defaultBaseRetryDelay
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = defaultMaxRetryDelay
	}
	if opts.StaleSendingAfter <= 0 {
		opts.StaleSendingAfter = defaultStaleSendingAfter
	}
	if opts.StaleSendingAfter <= opts.SenderTimeout {
		return nil, fmt.Errorf("stale sending threshold %s must exceed sender timeout %s", opts.StaleSendingAfter, opts.SenderTimeout)
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultBatchLimit
	}
	if opts.DefaultMaxAttempts < 1 {
		opts.DefaultMaxAttempts = domain.DefaultMaxAttempts
	}

	return &Dispatcher{
		notifications:      notifications,
		registry:           reg,
		state:              state,
		sender:             snd,
		limiter:            limiter,
		logger:             logger,
		dedupTTL:           opts.DedupTTL,
		senderTimeout:      opts.SenderTimeout,
		baseRetryDelay:     opts.BaseRetryDelay,
		maxRetryDelay:      opts.MaxRetryDelay,
		staleSendingAfter:  opts.StaleSendingAfter,
		batchLimit:         opts.BatchLimit,
		defaultMaxAttempts: opts.DefaultMaxAttempts,
		now:                time.Now,
		randIntn:           rand.Intn,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// Enqueue accepts a notification draft. Within the dedup window, a draft
// carrying the same tag and correlation ids as a previously accepted one
// returns the existing notification instead of creating a duplicate.
func (d *Dispatcher) Enqueue(ctx context.Context, draft Draft) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	maxAttempts := draft.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = d.defaultMaxAttempts
	}

	n := &domain.Notification{
		ID:          uuid.NewString(),
		Title:       normalizeOptionalString(draft.Title),
		Message:     strings.TrimSpace(draft.Message),
		Tag:         normalizeOptionalString(draft.Tag),
		Targets:     normalizeOptionalString(draft.Targets),
		Status:      domain.StatusPending,
		MaxAttempts: maxAttempts,
		AccountID:   normalizeOptionalString(draft.AccountID),
		PostID:      normalizeOptionalString(draft.PostID),
		MetaData:    draft.MetaData,
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	dedupKey := n.DedupKey()
	if dedupKey != "" {
		existing, err := d.findDuplicate(ctx, dedupKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if d.metrics != nil {
				d.metrics.IncDedupHit()
			}
			observability.WithContextLogger(d.logger, ctx).Debug("duplicate notification suppressed",
				zap.String("dedupKey", dedupKey),
				zap.String("existingId", existing.ID),
			)
			return existing, nil
		}
	}

	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, err
	}

	if dedupKey != "" {
		// Best effort: a lost dedup marker only widens the duplicate window.
		if err := d.state.Set(ctx, dedupKey, n.ID, d.dedupTTL); err != nil {
			observability.WithContextLogger(d.logger, ctx).Warn("failed to record dedup key",
				zap.String("dedupKey", dedupKey),
				zap.Error(err),
			)
		}
	}

	return n, nil
}

func (d *Dispatcher) findDuplicate(ctx context.Context, dedupKey string) (*domain.Notification, error) {
	existingID, ok, err := d.state.Get(ctx, dedupKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	existing, err := d.notifications.GetByID(ctx, existingID)
	if errors.Is(err, domain.ErrNotFound) {
		// Stale marker pointing at a purged row; drop it and proceed.
		if delErr := d.state.Delete(ctx, dedupKey); delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
			d.logger.Warn("failed to drop stale dedup key",
				zap.String("dedupKey", dedupKey),
				zap.Error(delErr),
			)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// GetStatus returns the notification by id.
func (d *Dispatcher) GetStatus(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return d.notifications.GetByID(ctx, strings.TrimSpace(id))
}

// List returns a page of notifications.
func (d *Dispatcher) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	return d.notifications.List(ctx, params)
}

// DispatchDue claims every due pending notification and attempts delivery for
// each, returning how many were processed. Sender failures never escape: they
// become state transitions. Only a failure to claim is surfaced.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	claimed, err := d.notifications.ClaimDue(ctx, d.now(), d.batchLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to claim due notifications: %w", err)
	}

	for i := range claimed {
		d.deliver(ctx, &claimed[i])
	}

	return len(claimed), nil
}

// RequeueStale returns notifications stranded in sending to pending so the
// next sweep can retry them. A row strands when the process dies between
// claim and outcome, or when the outcome write itself fails.
func (d *Dispatcher) RequeueStale(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	olderThan := d.now().Add(-d.staleSendingAfter)
	recovered, err := d.notifications.RequeueStale(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale notifications: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn("requeued stale notifications",
			zap.Int64("count", recovered),
			zap.Time("olderThan", olderThan),
		)
	}
	return recovered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification) {
	provider, err := d.registry.BestProvider(ctx)
	if err != nil {
		d.logger.Error("provider lookup failed",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
		d.finishFailure(ctx, n, nil, fmt.Errorf("provider lookup failed: %w", err), true)
		return
	}
	if provider == nil {
		d.finishFailure(ctx, n, nil, errors.New(reasonNoProvider), true)
		return
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, provider.Name); err != nil {
			d.finishFailure(ctx, n, nil, fmt.Errorf("rate limiter wait failed: %w", err), true)
			return
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.senderTimeout)
	sendStart := d.now()
	result, sendErr := d.sender.Send(sendCtx, *provider, *n)
	cancel()
	if d.metrics != nil {
		d.metrics.ObserveSendDuration(provider.Name, d.now().Sub(sendStart))
	}

	if err := d.registry.RecordOutcome(ctx, provider.ID, sendErr == nil, sendErr); err != nil {
		d.logger.Error("failed to record provider outcome",
			zap.String("providerId", provider.ID),
			zap.Error(err),
		)
	}

	if sendErr == nil {
		if err := d.notifications.MarkSent(ctx, n.ID, d.now()); err != nil {
			d.logger.Error("failed to mark notification as sent",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
			return
		}
		if d.metrics != nil {
			d.metrics.IncNotificationSent(provider.Name)
		}
		d.logger.Info("notification sent",
			zap.String("notificationId", n.ID),
			zap.String("provider", provider.Name),
			zap.Int("statusCode", statusCodeOf(result)),
		)
		return
	}

	d.finishFailure(ctx, n, provider, sendErr, sender.IsTransient(sendErr))
}

// finishFailure records a failed attempt and either reschedules or
// terminally fails the notification. attempt_count tracks the attempt just
// made, so it is bumped on every branch.
func (d *Dispatcher) finishFailure(ctx context.Context, n *domain.Notification, provider *domain.Provider, cause error, transient bool) {
	attemptNumber := n.AttemptCount + 1
	maxAttempts := n.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = d.defaultMaxAttempts
	}

	errMsg := truncate(cause.Error(), maxErrorMsgLen)
	errDetails := cause.Error()

	providerName := ""
	if provider != nil {
		providerName = provider.Name
	}

	if transient && attemptNumber < maxAttempts {
		scheduledFor := d.now().Add(d.computeRetryDelay(attemptNumber))
		if err := d.notifications.ScheduleRetry(ctx, n.ID, scheduledFor, errMsg, errDetails); err != nil {
			d.logger.Error("failed to schedule retry",
				zap.String("notificationId", n.ID),
				zap.Error(err),
			)
			return
		}
		if d.metrics != nil {
			d.metrics.IncRetryScheduled(providerName)
		}
		d.logger.Warn("delivery failed, retry scheduled",
			zap.String("notificationId", n.ID),
			zap.String("provider", providerName),
			zap.Int("attempt", attemptNumber),
			zap.Time("scheduledFor", scheduledFor),
			zap.Error(cause),
		)
		return
	}

	if err := d.notifications.MarkFailed(ctx, n.ID, errMsg, errDetails); err != nil {
		d.logger.Error("failed to mark notification as failed",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
		return
	}
	if d.metrics != nil {
		reason := "permanent_error"
		if transient {
			reason = "retry_exhausted"
		}
		d.metrics.IncNotificationFailed(providerName, reason)
	}
	d.logger.Error("notification failed terminally",
		zap.String("notificationId", n.ID),
		zap.String("provider", providerName),
		zap.Int("attempt", attemptNumber),
		zap.Bool("transient", transient),
		zap.Error(cause),
	)
}

func (d *Dispatcher) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := d.baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= d.maxRetryDelay {
			delay = d.maxRetryDelay
			break
		}
	}

	if delay > d.maxRetryDelay {
		delay = d.maxRetryDelay
	}

	jitterMillis := 0
	if d.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = d.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func statusCodeOf(result *sender.Result) int {
	if result == nil {
		return 0
	}
	return result.StatusCode
}

// truncate cuts s to at most limit bytes without splitting a multibyte rune;
// the column rejects invalid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
