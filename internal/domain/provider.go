package domain

import (
	"fmt"
	"strings"
	"time"
)

// Provider is a ranked delivery or analysis backend. A lower priority value
// means higher precedence. Counters only ever grow; selection never reads
// them, an operator (or supervisory process) toggles IsActive instead.
type Provider struct {
	ID           string
	Name         string
	Priority     int
	IsActive     bool
	RequestCount int64
	SuccessCount int64
	ErrorCount   int64
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Provider) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: provider name is required", ErrValidation)
	}
	if p.Priority < 0 {
		return fmt.Errorf("%w: provider priority must not be negative (got %d)", ErrValidation, p.Priority)
	}
	return nil
}
