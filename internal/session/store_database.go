package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go-verification-gateway/internal/domain"
	"go-verification-gateway/internal/observability"
)

// DatabaseStore keeps the key-value layout in a single gorm table. Writes are
// single-row upserts; the store keeps the same no-transaction semantics as
// the other backends.
type DatabaseStore struct {
	db *gorm.DB
}

func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) GetSession(ctx context.Context, tokenString string) (*domain.Session, bool, error) {
	raw, ok, err := s.get(ctx, sessionKey(tokenString), "get_session")
	if err != nil || !ok {
		return nil, false, err
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, fmt.Errorf("decode session record: %w", err)
	}
	return &sess, true, nil
}

func (s *DatabaseStore) PutSession(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	return s.put(ctx, sessionKey(sess.Token), raw, "put_session")
}

func (s *DatabaseStore) ActiveToken(ctx context.Context, deviceID string) (string, bool, error) {
	raw, ok, err := s.get(ctx, activeKey(deviceID), "active_token")
	if err != nil || !ok {
		return "", false, err
	}
	return string(raw), len(raw) > 0, nil
}

func (s *DatabaseStore) SetActiveToken(ctx context.Context, deviceID, tokenString string) error {
	return s.put(ctx, activeKey(deviceID), []byte(tokenString), "set_active_token")
}

func (s *DatabaseStore) get(ctx context.Context, key, op string) ([]byte, bool, error) {
	var rec domain.StoreRecord
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordStoreOperation(ctx, "database", op, "not_found")
			return nil, false, nil
		}
		observability.RecordStoreOperation(ctx, "database", op, "error")
		return nil, false, err
	}
	observability.RecordStoreOperation(ctx, "database", op, "success")
	return rec.Value, true, nil
}

func (s *DatabaseStore) put(ctx context.Context, key string, value []byte, op string) error {
	rec := domain.StoreRecord{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		observability.RecordStoreOperation(ctx, "database", op, "error")
		return err
	}
	observability.RecordStoreOperation(ctx, "database", op, "success")
	return nil
}

// Ping reports backend reachability for readiness probes.
func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
