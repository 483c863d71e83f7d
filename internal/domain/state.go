package domain

import "time"

// StateEntry is a keyed value with optional expiry. A nil ExpiresAt means the
// entry never expires. Entries past their expiry are logically absent even
// before a sweep removes them.
type StateEntry struct {
	Key       string
	Value     string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (e *StateEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}
