package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
)

// Repository defines the data access methods for payment records.
type Repository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id int64) (*payment.Payment, error)
	GetByProviderTransactionID(ctx context.Context, txnID string) (*payment.Payment, error)
	GetByCartID(ctx context.Context, cartID string) (*payment.Payment, error)
	Update(ctx context.Context, p *payment.Payment) error

	// UpdateStatusIf transitions status only when the current status is in
	// allowedFrom, returning whether the row was changed. Concurrent
	// handlers race on status; the conditional update keeps the last
	// terminal state from being overwritten by a stale handler.
	UpdateStatusIf(ctx context.Context, id int64, to payment.Status, allowedFrom []payment.Status) (bool, error)

	MergeRaw(ctx context.Context, id int64, raw json.RawMessage) error
	SetProcessingStartedAt(ctx context.Context, id int64, at time.Time) error
	ListStuckPending(ctx context.Context, olderThan time.Time, limit int) ([]*payment.Payment, error)
}

// RefundRepository defines the data access methods for refund sub-records.
type RefundRepository interface {
	Create(ctx context.Context, r *payment.Refund) error
	GetPendingByPaymentID(ctx context.Context, paymentID int64) (*payment.Refund, error)
	MarkSucceeded(ctx context.Context, id int64, metadata json.RawMessage) error
	SumSucceededByPaymentID(ctx context.Context, paymentID int64) (int64, error)
}
