package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentAuthorized = "payment.authorized"
	EventTypePaymentSucceeded  = "payment.succeeded"
	EventTypePaymentProcessing = "payment.processing"
	EventTypePaymentFailed     = "payment.failed"
	EventTypeRefundProcessed   = "refund.processed"
)

// PaymentEvent is emitted by the webhook dispatcher after a local state
// transition has been applied.
type PaymentEvent struct {
	BaseEvent
	PaymentID             int64  `json:"payment_id"`
	ProviderTransactionID string `json:"provider_transaction_id"`
	CartID                string `json:"cart_id"`
	Status                string `json:"status"`
	FailureReason         string `json:"failure_reason,omitempty"`
}

func newPaymentEvent(eventType string, paymentID int64, txnID, cartID, status, failureReason string) *PaymentEvent {
	return &PaymentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":              paymentID,
				"provider_transaction_id": txnID,
				"cart_id":                 cartID,
				"status":                  status,
				"failure_reason":          failureReason,
			},
		},
		PaymentID:             paymentID,
		ProviderTransactionID: txnID,
		CartID:                cartID,
		Status:                status,
		FailureReason:         failureReason,
	}
}

func NewPaymentAuthorizedEvent(paymentID int64, txnID, cartID string) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentAuthorized, paymentID, txnID, cartID, "authorized", "")
}

func NewPaymentSucceededEvent(paymentID int64, txnID, cartID string) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentSucceeded, paymentID, txnID, cartID, "authorized", "")
}

func NewPaymentProcessingEvent(paymentID int64, txnID, cartID string) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentProcessing, paymentID, txnID, cartID, "pending", "")
}

func NewPaymentFailedEvent(paymentID int64, txnID, cartID, failureReason string) *PaymentEvent {
	return newPaymentEvent(EventTypePaymentFailed, paymentID, txnID, cartID, "error", failureReason)
}

// RefundProcessedEvent is emitted when a refund sub-record is marked
// succeeded. The parent payment status is unchanged.
type RefundProcessedEvent struct {
	BaseEvent
	RefundID  int64  `json:"refund_id"`
	PaymentID int64  `json:"payment_id"`
	CartID    string `json:"cart_id"`
	Amount    int64  `json:"amount"`
}

func NewRefundProcessedEvent(refundID, paymentID int64, cartID string, amount int64) *RefundProcessedEvent {
	return &RefundProcessedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRefundProcessed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"refund_id":  refundID,
				"payment_id": paymentID,
				"cart_id":    cartID,
				"amount":     amount,
			},
		},
		RefundID:  refundID,
		PaymentID: paymentID,
		CartID:    cartID,
		Amount:    amount,
	}
}
