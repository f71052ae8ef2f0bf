// Package session holds the verification session lifecycle: the key-value
// store abstraction, the hydration rules that keep the token authoritative
// over storage, and the checkpoint state machine.
package session

import (
	"context"
	"errors"

	"go-verification-gateway/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the per-device key-value persistence for sessions plus the
// last-active-token pointer. Implementations provide get/put semantics with
// no cross-key transactions; records are never purged.
type Store interface {
	// GetSession returns the stored session for the exact token string key.
	GetSession(ctx context.Context, tokenString string) (*domain.Session, bool, error)
	// PutSession persists the session under its token string key,
	// overwriting any previous record.
	PutSession(ctx context.Context, s *domain.Session) error

	// ActiveToken returns the most recently visited token for a device. It
	// is the fallback for callbacks whose query parameters were stripped by
	// a link shortener.
	ActiveToken(ctx context.Context, deviceID string) (string, bool, error)
	// SetActiveToken records the device's active token, last write wins.
	SetActiveToken(ctx context.Context, deviceID, tokenString string) error
}

func sessionKey(tokenString string) string { return "session:" + tokenString }

func activeKey(deviceID string) string { return "active:" + deviceID }
