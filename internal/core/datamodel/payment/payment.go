package payment

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Status is the local payment-session state. The set is closed: gateway
// statuses are folded into it by the gateway status mapper.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAuthorized   Status = "authorized"
	StatusCaptured     Status = "captured"
	StatusError        Status = "error"
	StatusCanceled     Status = "canceled"
	StatusRequiresMore Status = "requires_more"
)

// IsTerminal reports whether a status may no longer be overwritten by a
// non-refund webhook.
func (s Status) IsTerminal() bool {
	return s == StatusCaptured || s == StatusError || s == StatusCanceled
}

// Payment represents one payment attempt tied to one cart/order. Records are
// soft-deleted together with the order, never hard-deleted.
type Payment struct {
	ID                    int64           `gorm:"primaryKey"`
	ProviderTransactionID string          `gorm:"column:provider_transaction_id;uniqueIndex"`
	ProviderID            string          `gorm:"column:provider_id;default:hyperswitch"`
	CartID                string          `gorm:"column:cart_id;index"`
	OrderID               *string         `gorm:"column:order_id"`
	Status                Status          `gorm:"column:status;default:pending"`
	Amount                int64           `gorm:"column:amount;not null"`
	Currency              string          `gorm:"column:currency;not null"`
	Raw                   json.RawMessage `gorm:"column:raw;type:jsonb"`
	ProcessingStartedAt   *time.Time      `gorm:"column:processing_started_at"`
	CreatedAt             time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;default:now()"`
	DeletedAt             gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (Payment) TableName() string {
	return "payments"
}

// Refund sub-record statuses.
const (
	RefundStatusPending   = "pending"
	RefundStatusSucceeded = "succeeded"
)

// Refund is the refund sub-record attached to a payment. A refund_processed
// webhook marks it succeeded; the parent payment status is untouched.
type Refund struct {
	ID        int64           `gorm:"primaryKey"`
	PaymentID int64           `gorm:"column:payment_id;not null;index"`
	Amount    int64           `gorm:"column:amount;not null"`
	Status    string          `gorm:"column:status;default:pending"`
	Metadata  json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Refund) TableName() string {
	return "refunds"
}
