package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultLoopInterval = 5 * time.Second

// Loop periodically sweeps due notifications through the dispatcher.
type Loop struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
	interval   time.Duration
}

func NewLoop(dispatcher *Dispatcher, interval time.Duration, logger *zap.Logger) (*Loop, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if interval <= 0 {
		interval = defaultLoopInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
	}, nil
}

func (l *Loop) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial sweep so already-due notifications do not wait for the
	// first ticker edge.
	l.sweep(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *Loop) sweep(ctx context.Context) {
	if _, err := l.dispatcher.RequeueStale(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("stale requeue failed", zap.Error(err))
	}

	processed, err := l.dispatcher.DispatchDue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("dispatch sweep failed", zap.Error(err))
		return
	}
	if processed > 0 {
		l.logger.Debug("dispatch sweep completed", zap.Int("processed", processed))
	}
}
