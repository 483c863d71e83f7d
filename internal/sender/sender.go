package sender

import (
	"context"

	"github.com/zhumao520/TweetAnalyst-sub001/internal/domain"
)

// Sender is the outbound notification delivery port. The provider argument
// identifies which ranked delivery service the payload is routed through.
type Sender interface {
	Send(ctx context.Context, provider domain.Provider, notification domain.Notification) (*Result, error)
}

// Result stores delivery call metadata for diagnostics.
type Result struct {
	StatusCode int
	Body       string
	MessageID  string
}
