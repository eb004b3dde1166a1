package postgres

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	datamodel "github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/idempotency"
	"github.com/frahmantamala/hyperswitch-gateway/internal/webhook"
	"gorm.io/gorm"
)

// IdempotencyStore implements webhook.Store on the unique-indexed
// idempotency table. Reservation is the insert itself: the database
// rejects the second insert of a key, so exactly one concurrent
// delivery wins.
type IdempotencyStore struct {
	db *gorm.DB
}

// NewIdempotencyStore creates a new gorm-backed idempotency store
func NewIdempotencyStore(db *gorm.DB) webhook.Store {
	return &IdempotencyStore{db: db}
}

// Reserve inserts the key, reporting false when it already exists
func (s *IdempotencyStore) Reserve(ctx context.Context, key string, meta webhook.RecordMeta) (bool, error) {
	record := &datamodel.Record{
		Key:           key,
		RequestPath:   meta.Path,
		RequestMethod: meta.Method,
		RequestParams: meta.Params,
	}
	err := s.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkSucceeded stamps the completion time on a reserved record
func (s *IdempotencyStore) MarkSucceeded(ctx context.Context, key string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&datamodel.Record{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]interface{}{
			"completed_at": now,
		}).Error
}

// MarkFailed records the processor failure. The record is kept so a
// redelivery of the same event is skipped rather than re-run.
func (s *IdempotencyStore) MarkFailed(ctx context.Context, key, errorCode, errorMessage string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&datamodel.Record{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]interface{}{
			"error_code":    errorCode,
			"error_message": errorMessage,
			"completed_at":  now,
		}).Error
}

// isDuplicateKeyError detects unique violations across drivers: gorm's
// translated error, postgres 23505 and the sqlite constraint message.
func isDuplicateKeyError(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
