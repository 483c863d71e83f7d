package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may occur.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// DefaultMaxAttempts applies when a notification is enqueued without an
// explicit attempt budget.
const DefaultMaxAttempts = 3

// Notification is the core domain entity representing an alert to be pushed.
type Notification struct {
	ID           string
	Title        *string
	Message      string
	Tag          *string
	Targets      *string
	Status       Status
	AttemptCount int
	MaxAttempts  int
	ErrorMessage *string
	ErrorDetails *string
	AccountID    *string
	PostID       *string
	MetaData     map[string]any
	ScheduledFor *time.Time
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if n.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1 (got %d)", ErrValidation, n.MaxAttempts)
	}
	if !n.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, n.Status)
	}
	return nil
}

// DedupKey derives the duplicate-suppression key from the classification tag
// and correlation ids. It returns "" when the notification carries no tag or
// no correlation id, in which case deduplication does not apply.
func (n *Notification) DedupKey() string {
	tag := ""
	if n.Tag != nil {
		tag = strings.TrimSpace(*n.Tag)
	}
	accountID := ""
	if n.AccountID != nil {
		accountID = strings.TrimSpace(*n.AccountID)
	}
	postID := ""
	if n.PostID != nil {
		postID = strings.TrimSpace(*n.PostID)
	}

	if tag == "" || (accountID == "" && postID == "") {
		return ""
	}
	return fmt.Sprintf("dedup:%s:%s:%s", tag, accountID, postID)
}
