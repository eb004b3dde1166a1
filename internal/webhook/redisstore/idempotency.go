package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/frahmantamala/hyperswitch-gateway/internal/webhook"
	"github.com/go-redis/redis/v8"
)

// defaultTTL bounds how long a processed delivery stays deduplicated.
// Gateways stop redelivering well inside a week.
const defaultTTL = 7 * 24 * time.Hour

type record struct {
	Status        string          `json:"status"`
	RequestPath   string          `json:"request_path"`
	RequestMethod string          `json:"request_method"`
	RequestParams json.RawMessage `json:"request_params,omitempty"`
	ErrorCode     string          `json:"error_code,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// IdempotencyStore implements webhook.Store on redis. SETNX is the
// atomic reservation: exactly one concurrent delivery sets the key.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyStore(client *redis.Client) webhook.Store {
	return &IdempotencyStore{client: client, ttl: defaultTTL}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string, meta webhook.RecordMeta) (bool, error) {
	payload, err := json.Marshal(record{
		Status:        "reserved",
		RequestPath:   meta.Path,
		RequestMethod: meta.Method,
		RequestParams: meta.Params,
	})
	if err != nil {
		return false, err
	}
	return s.client.SetNX(ctx, key, payload, s.ttl).Result()
}

func (s *IdempotencyStore) MarkSucceeded(ctx context.Context, key string) error {
	return s.finalize(ctx, key, "succeeded", "", "")
}

func (s *IdempotencyStore) MarkFailed(ctx context.Context, key, errorCode, errorMessage string) error {
	return s.finalize(ctx, key, "failed", errorCode, errorMessage)
}

// finalize rewrites the reserved record with the outcome, preserving the
// original request context and the remaining TTL.
func (s *IdempotencyStore) finalize(ctx context.Context, key, status, errorCode, errorMessage string) error {
	var rec record
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if uerr := json.Unmarshal(raw, &rec); uerr != nil {
			rec = record{}
		}
	}

	now := time.Now()
	rec.Status = status
	rec.ErrorCode = errorCode
	rec.ErrorMessage = errorMessage
	rec.CompletedAt = &now

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, redis.KeepTTL).Err()
}
