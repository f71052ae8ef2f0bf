package session

import (
	"context"
	"sync"

	"go-verification-gateway/internal/domain"
	"go-verification-gateway/internal/observability"
)

// MemoryStore keeps sessions in process memory. It backs tests and
// single-node development; nothing is ever evicted, matching the
// records-are-never-purged lifecycle.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	active   map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		active:   make(map[string]string),
	}
}

func (s *MemoryStore) GetSession(ctx context.Context, tokenString string) (*domain.Session, bool, error) {
	s.mu.RLock()
	stored, ok := s.sessions[sessionKey(tokenString)]
	s.mu.RUnlock()
	if !ok {
		observability.RecordStoreOperation(ctx, "memory", "get_session", "not_found")
		return nil, false, nil
	}
	observability.RecordStoreOperation(ctx, "memory", "get_session", "success")
	copied := stored
	return &copied, true, nil
}

func (s *MemoryStore) PutSession(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	s.sessions[sessionKey(sess.Token)] = *sess
	s.mu.Unlock()
	observability.RecordStoreOperation(ctx, "memory", "put_session", "success")
	return nil
}

func (s *MemoryStore) ActiveToken(ctx context.Context, deviceID string) (string, bool, error) {
	s.mu.RLock()
	tokenString, ok := s.active[activeKey(deviceID)]
	s.mu.RUnlock()
	if !ok || tokenString == "" {
		observability.RecordStoreOperation(ctx, "memory", "active_token", "not_found")
		return "", false, nil
	}
	observability.RecordStoreOperation(ctx, "memory", "active_token", "success")
	return tokenString, true, nil
}

func (s *MemoryStore) SetActiveToken(ctx context.Context, deviceID, tokenString string) error {
	s.mu.Lock()
	s.active[activeKey(deviceID)] = tokenString
	s.mu.Unlock()
	observability.RecordStoreOperation(ctx, "memory", "set_active_token", "success")
	return nil
}
