package webhook

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
)

// IdempotencyKey derives the deterministic deduplication key for one
// webhook delivery from its event type and entity id.
func IdempotencyKey(eventType gateway.EventType, entityID string) string {
	return fmt.Sprintf("webhook_%s_%s", eventType, entityID)
}

// RecordMeta is the request context persisted alongside a reservation.
type RecordMeta struct {
	Path   string
	Method string
	Params json.RawMessage
}

// Store reserves and finalizes idempotency records. Reserve must be
// atomic: under concurrent deliveries of the same key exactly one call
// returns true, every other call returns false.
type Store interface {
	Reserve(ctx context.Context, key string, meta RecordMeta) (bool, error)
	MarkSucceeded(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, errorCode, errorMessage string) error
}

// Guard runs a processor at most once per idempotency key. The key is
// reserved before the processor executes; a failed reservation means a
// concurrent or earlier delivery already holds it and the processor is
// skipped. Processor failures are recorded but the reservation is kept,
// so redeliveries of a failed event are also skipped.
type Guard struct {
	store  Store
	logger *slog.Logger
}

func NewGuard(store Store, logger *slog.Logger) *Guard {
	return &Guard{store: store, logger: logger}
}

// Execute returns whether the processor ran, and the processor's error
// when it did. A duplicate delivery returns (false, nil).
func (g *Guard) Execute(ctx context.Context, key string, meta RecordMeta, processor func(ctx context.Context) error) (bool, error) {
	reserved, err := g.store.Reserve(ctx, key, meta)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !reserved {
		g.logger.Info("duplicate webhook delivery skipped", "idempotency_key", key)
		return false, nil
	}

	if err := processor(ctx); err != nil {
		code, message := errorDetail(err)
		if markErr := g.store.MarkFailed(ctx, key, code, message); markErr != nil {
			g.logger.Error("failed to record webhook failure",
				"error", markErr,
				"idempotency_key", key)
		}
		return true, err
	}

	if err := g.store.MarkSucceeded(ctx, key); err != nil {
		g.logger.Error("failed to finalize idempotency record",
			"error", err,
			"idempotency_key", key)
	}
	return true, nil
}

func errorDetail(err error) (code, message string) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return string(appErr.Code), appErr.Message
	}
	return "INTERNAL_ERROR", err.Error()
}
