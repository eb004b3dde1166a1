package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
)

// SignatureHeader carries the HMAC-SHA512 digest of the webhook body.
const SignatureHeader = "x-webhook-signature-512"

// EventType enumerates the webhook notifications the gateway delivers.
type EventType string

const (
	EventPaymentAuthorized EventType = "payment_authorized"
	EventPaymentSucceeded  EventType = "payment_succeeded"
	EventPaymentProcessing EventType = "payment_processing"
	EventPaymentFailed     EventType = "payment_failed"
	EventPaymentCancelled  EventType = "payment_cancelled"
	EventRefundProcessed   EventType = "refund_processed"
)

// ParseEventType reports whether the raw value names a known event.
func ParseEventType(raw string) (EventType, bool) {
	switch EventType(raw) {
	case EventPaymentAuthorized,
		EventPaymentSucceeded,
		EventPaymentProcessing,
		EventPaymentFailed,
		EventPaymentCancelled,
		EventRefundProcessed:
		return EventType(raw), true
	}
	return "", false
}

// WebhookEvent is the normalized view of a webhook delivery.
type WebhookEvent struct {
	Type         EventType
	EntityID     string
	PaymentID    string
	Status       string
	Amount       int64
	Currency     string
	ErrorMessage string
	Metadata     map[string]interface{}
	Raw          json.RawMessage
}

// CartID returns the originating cart id carried in the payment metadata.
func (e *WebhookEvent) CartID() string {
	if e.Metadata == nil {
		return ""
	}
	if id, ok := e.Metadata["cart_id"].(string); ok {
		return id
	}
	return ""
}

type webhookObject struct {
	PaymentID    string                 `json:"payment_id"`
	RefundID     string                 `json:"refund_id"`
	Status       string                 `json:"status"`
	Amount       int64                  `json:"amount"`
	Currency     string                 `json:"currency"`
	ErrorMessage string                 `json:"error_message"`
	Metadata     map[string]interface{} `json:"metadata"`
}

type webhookEnvelope struct {
	EventType string `json:"event_type"`
	Content   *struct {
		Type   string        `json:"type"`
		Object webhookObject `json:"object"`
	} `json:"content"`
	webhookObject
}

// ParseWebhookEvent decodes a webhook body. The gateway delivers two
// shapes: a flat object, and an envelope nesting the entity under
// content.object. Both normalize to the same WebhookEvent.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.NewValidationError("malformed webhook payload", errors.ErrCodeMalformedPayload)
	}

	eventType, ok := ParseEventType(env.EventType)
	if !ok {
		return nil, errors.NewUnsupportedEventTypeError(env.EventType)
	}

	obj := env.webhookObject
	if env.Content != nil {
		obj = env.Content.Object
	}

	entityID := obj.PaymentID
	if eventType == EventRefundProcessed && obj.RefundID != "" {
		entityID = obj.RefundID
	}
	if entityID == "" {
		return nil, errors.NewValidationError("webhook payload missing entity id", errors.ErrCodeMalformedPayload)
	}

	return &WebhookEvent{
		Type:         eventType,
		EntityID:     entityID,
		PaymentID:    obj.PaymentID,
		Status:       obj.Status,
		Amount:       obj.Amount,
		Currency:     obj.Currency,
		ErrorMessage: obj.ErrorMessage,
		Metadata:     obj.Metadata,
		Raw:          json.RawMessage(body),
	}, nil
}

// SignatureVerifier checks webhook authenticity with HMAC-SHA512 over
// the raw request body, keyed with the payment hash key.
type SignatureVerifier struct {
	key []byte
}

func NewSignatureVerifier(paymentHashKey string) *SignatureVerifier {
	return &SignatureVerifier{key: []byte(paymentHashKey)}
}

// Verify compares the hex digest from the signature header against a
// locally computed one. Comparison is constant-time.
func (v *SignatureVerifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return errors.ErrMissingSignature
	}
	mac := hmac.New(sha512.New, v.key)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.ErrInvalidSignature
	}
	return nil
}
