// Package host defines the surface the payment engine expects from the
// commerce platform it is embedded in: order and cart lookups plus the
// hooks it triggers when a payment settles. Bindings are injected at
// wiring time; the log-only binding stands in when no platform is wired.
package host

import (
	"context"
	"encoding/json"
	"log/slog"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/events"
)

const (
	SessionStatusPending    = "pending"
	SessionStatusAuthorized = "authorized"
)

// PaymentSession is the payment session the host keeps attached to a cart.
type PaymentSession struct {
	ID     string          `json:"id"`
	CartID string          `json:"cart_id"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Order is the host-side order created from a cart at checkout completion.
type Order struct {
	ID            string `json:"id"`
	CartID        string `json:"cart_id"`
	PaymentStatus string `json:"payment_status"`
}

var ErrOrderNotFound = errors.NewNotFoundError("order not found", "ORDER_NOT_FOUND")

// OrderStore looks up and settles host orders.
type OrderStore interface {
	RetrieveByCartID(ctx context.Context, cartID string) (*Order, error)
	CapturePayment(ctx context.Context, orderID string) error
}

// CartStore exposes the cart's payment session and the authorization hook.
type CartStore interface {
	RetrieveSession(ctx context.Context, cartID string) (*PaymentSession, error)
	AuthorizePayment(ctx context.Context, cartID string) error
	MarkSessionPending(ctx context.Context, cartID string) error
}

// LogOnlyBinding records what the engine would have asked the host to do.
// Order lookups report not-found so capture hooks stay dormant.
type LogOnlyBinding struct {
	Logger *slog.Logger
}

func (b *LogOnlyBinding) RetrieveByCartID(ctx context.Context, cartID string) (*Order, error) {
	b.Logger.Debug("host binding: order lookup skipped", "cart_id", cartID)
	return nil, ErrOrderNotFound
}

func (b *LogOnlyBinding) CapturePayment(ctx context.Context, orderID string) error {
	b.Logger.Info("host binding: capture hook skipped", "order_id", orderID)
	return nil
}

func (b *LogOnlyBinding) RetrieveSession(ctx context.Context, cartID string) (*PaymentSession, error) {
	b.Logger.Debug("host binding: session lookup skipped", "cart_id", cartID)
	return nil, nil
}

func (b *LogOnlyBinding) AuthorizePayment(ctx context.Context, cartID string) error {
	b.Logger.Info("host binding: authorize hook skipped", "cart_id", cartID)
	return nil
}

func (b *LogOnlyBinding) MarkSessionPending(ctx context.Context, cartID string) error {
	b.Logger.Debug("host binding: session pending mark skipped", "cart_id", cartID)
	return nil
}

// RegisterAutoCapture subscribes the host capture hook to succeeded
// payments: when an order already exists for the cart, the order's
// payment is captured without waiting for an operator.
func RegisterAutoCapture(bus *events.EventBus, orders OrderStore, logger *slog.Logger) {
	bus.Subscribe(events.EventTypePaymentSucceeded, func(ctx context.Context, e events.Event) error {
		evt, ok := e.(*events.PaymentEvent)
		if !ok || evt.CartID == "" {
			return nil
		}

		order, err := orders.RetrieveByCartID(ctx, evt.CartID)
		if err != nil {
			logger.Debug("no order for cart, capture deferred", "cart_id", evt.CartID)
			return nil
		}

		if err := orders.CapturePayment(ctx, order.ID); err != nil {
			logger.Error("auto capture failed",
				"error", err,
				"order_id", order.ID,
				"cart_id", evt.CartID)
			return err
		}

		logger.Info("order payment captured",
			"order_id", order.ID,
			"cart_id", evt.CartID,
			"transaction_id", evt.ProviderTransactionID)
		return nil
	})
}
