package session

import (
	"time"

	"go-verification-gateway/internal/domain"
)

// Remaining computes the time left in the verification window, floored at
// zero. It is always derived from the session's creation timestamp so that a
// page reload, or a poll tick, never resets the countdown.
func Remaining(s *domain.Session, now time.Time, window time.Duration) time.Duration {
	rem := window - now.Sub(s.CreatedAt())
	if rem < 0 {
		return 0
	}
	return rem
}

// Expired reports whether the verification window has lapsed. Expiry is
// terminal and overrides step progress.
func Expired(s *domain.Session, now time.Time, window time.Duration) bool {
	return now.Sub(s.CreatedAt()) >= window
}
