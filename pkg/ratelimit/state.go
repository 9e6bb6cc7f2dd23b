// Package ratelimit paces outgoing search requests and tracks upstream throttling.
// Throttle responses (429/503) open a cooldown window that is shared through
// Redis so that concurrent estimation runs back off together.
package ratelimit

import (
	"time"
)

// Redis keys for throttle state storage.
const (
	RedisKeyBlockedUntil = "jsm:throttle:blocked_until"
	RedisKeyConsecutive  = "jsm:throttle:consecutive"
	RedisKeyLastStatus   = "jsm:throttle:last_status"
	RedisKeyLastUpdate   = "jsm:throttle:last_update"
)

// Cooldown bounds.
const (
	// DefaultCooldown applies when a throttle response carries no Retry-After header.
	DefaultCooldown = 30 * time.Second

	// MaxCooldown caps the cooldown regardless of Retry-After or consecutive throttles.
	MaxCooldown = 5 * time.Minute
)

// ThrottleState represents the current upstream throttle state.
type ThrottleState struct {
	// BlockedUntil is the end of the current cooldown window.
	// Zero when the upstream has not throttled us.
	BlockedUntil time.Time `json:"blocked_until"`

	// Consecutive counts throttle responses since the last successful response.
	Consecutive int `json:"consecutive"`

	// LastStatus is the HTTP status of the most recent recorded response.
	LastStatus int `json:"last_status"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *ThrottleState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsBlocked returns true while the cooldown window is open.
func (s *ThrottleState) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// TimeUntilUnblocked returns the remaining cooldown.
// Returns 0 if the cooldown has already passed.
func (s *ThrottleState) TimeUntilUnblocked() time.Duration {
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}

// NextCooldown returns the cooldown to apply after one more throttle response,
// doubling DefaultCooldown per consecutive throttle up to MaxCooldown.
func (s *ThrottleState) NextCooldown() time.Duration {
	d := DefaultCooldown
	for i := 0; i < s.Consecutive && d < MaxCooldown; i++ {
		d *= 2
	}
	if d > MaxCooldown {
		d = MaxCooldown
	}
	return d
}
