package idempotency

import (
	"encoding/json"
	"time"
)

// Record marks a webhook event as durably handled (or being handled). The key
// is unique; a second insert for the same key must fail at the store level,
// which is what makes the reservation atomic under concurrent delivery.
type Record struct {
	ID            int64           `gorm:"primaryKey"`
	Key           string          `gorm:"column:idempotency_key;not null;uniqueIndex"`
	RequestPath   string          `gorm:"column:request_path"`
	RequestMethod string          `gorm:"column:request_method"`
	RequestParams json.RawMessage `gorm:"column:request_params;type:jsonb"`
	ErrorCode     *string         `gorm:"column:error_code"`
	ErrorMessage  *string         `gorm:"column:error_message"`
	CompletedAt   *time.Time      `gorm:"column:completed_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;default:now()"`
}

func (Record) TableName() string {
	return "webhook_idempotency_records"
}
