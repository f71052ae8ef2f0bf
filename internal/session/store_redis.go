package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"go-verification-gateway/internal/domain"
	"go-verification-gateway/internal/observability"
)

// RedisStore persists sessions as JSON values in redis. Session records are
// written without a TTL; expiry is a property of the token's timestamp, not
// of storage.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "verifygw"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return fmt.Sprintf("%s:%s", s.prefix, k) }

func (s *RedisStore) GetSession(ctx context.Context, tokenString string) (*domain.Session, bool, error) {
	raw, err := s.client.Get(ctx, s.key(sessionKey(tokenString))).Bytes()
	if err == redis.Nil {
		observability.RecordStoreOperation(ctx, "redis", "get_session", "not_found")
		return nil, false, nil
	}
	if err != nil {
		observability.RecordStoreOperation(ctx, "redis", "get_session", "error")
		return nil, false, err
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		observability.RecordStoreOperation(ctx, "redis", "get_session", "error")
		return nil, false, fmt.Errorf("decode session record: %w", err)
	}
	observability.RecordStoreOperation(ctx, "redis", "get_session", "success")
	return &sess, true, nil
}

func (s *RedisStore) PutSession(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionKey(sess.Token)), raw, 0).Err(); err != nil {
		observability.RecordStoreOperation(ctx, "redis", "put_session", "error")
		return err
	}
	observability.RecordStoreOperation(ctx, "redis", "put_session", "success")
	return nil
}

func (s *RedisStore) ActiveToken(ctx context.Context, deviceID string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.key(activeKey(deviceID))).Result()
	if err == redis.Nil {
		observability.RecordStoreOperation(ctx, "redis", "active_token", "not_found")
		return "", false, nil
	}
	if err != nil {
		observability.RecordStoreOperation(ctx, "redis", "active_token", "error")
		return "", false, err
	}
	observability.RecordStoreOperation(ctx, "redis", "active_token", "success")
	return val, val != "", nil
}

func (s *RedisStore) SetActiveToken(ctx context.Context, deviceID, tokenString string) error {
	if err := s.client.Set(ctx, s.key(activeKey(deviceID)), tokenString, 0).Err(); err != nil {
		observability.RecordStoreOperation(ctx, "redis", "set_active_token", "error")
		return err
	}
	observability.RecordStoreOperation(ctx, "redis", "set_active_token", "success")
	return nil
}

// Ping reports backend reachability for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
