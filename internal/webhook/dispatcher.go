package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	datamodel "github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/events"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
	"github.com/frahmantamala/hyperswitch-gateway/internal/host"
	paymentpkg "github.com/frahmantamala/hyperswitch-gateway/internal/payment"
)

const (
	providerID = "hyperswitch"

	processingTimeoutReason = "payment processing timeout exceeded"
)

// nonTerminalStatuses are the source states a webhook may transition from.
var nonTerminalStatuses = []datamodel.Status{
	datamodel.StatusPending,
	datamodel.StatusAuthorized,
	datamodel.StatusRequiresMore,
}

var allStatuses = []datamodel.Status{
	datamodel.StatusPending,
	datamodel.StatusAuthorized,
	datamodel.StatusCaptured,
	datamodel.StatusError,
	datamodel.StatusCanceled,
	datamodel.StatusRequiresMore,
}

// Dispatcher applies webhook deliveries to local payment records. One
// delivery runs at most once (via the idempotency guard), waits out the
// settle delay so the gateway's own state is readable, resolves the
// payment record and applies the transition for its event type.
type Dispatcher struct {
	repo    paymentpkg.Repository
	refunds paymentpkg.RefundRepository
	guard   *Guard
	bus     *events.EventBus
	carts   host.CartStore
	logger  *slog.Logger

	settleDelay       time.Duration
	processingTimeout time.Duration

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func NewDispatcher(
	repo paymentpkg.Repository,
	refunds paymentpkg.RefundRepository,
	guard *Guard,
	bus *events.EventBus,
	carts host.CartStore,
	cfg errors.WebhookConfig,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:              repo,
		refunds:           refunds,
		guard:             guard,
		bus:               bus,
		carts:             carts,
		logger:            logger,
		settleDelay:       cfg.SettleDelay,
		processingTimeout: cfg.ProcessingTimeout,
		timers:            make(map[int64]*time.Timer),
	}
}

// Dispatch runs one webhook delivery through the idempotency guard and
// the transition table. It returns nil for duplicates.
func (d *Dispatcher) Dispatch(ctx context.Context, event *gateway.WebhookEvent, meta RecordMeta) error {
	key := IdempotencyKey(event.Type, event.EntityID)

	executed, err := d.guard.Execute(ctx, key, meta, func(ctx context.Context) error {
		return d.process(ctx, event)
	})
	if err != nil {
		d.logger.Error("webhook processing failed",
			"error", err,
			"event_type", event.Type,
			"entity_id", event.EntityID)
		return err
	}
	if !executed {
		return nil
	}

	d.logger.Info("webhook processed",
		"event_type", event.Type,
		"entity_id", event.EntityID)
	return nil
}

func (d *Dispatcher) process(ctx context.Context, event *gateway.WebhookEvent) error {
	if err := d.waitSettle(ctx); err != nil {
		return err
	}

	rec, err := d.resolvePayment(ctx, event)
	if err != nil {
		return err
	}

	switch event.Type {
	case gateway.EventPaymentAuthorized:
		return d.handleAuthorized(ctx, rec, event)
	case gateway.EventPaymentSucceeded:
		return d.handleSucceeded(ctx, rec, event)
	case gateway.EventPaymentProcessing:
		return d.handleProcessing(ctx, rec, event)
	case gateway.EventPaymentFailed:
		return d.handleFailed(ctx, rec, event)
	case gateway.EventRefundProcessed:
		return d.handleRefundProcessed(ctx, rec, event)
	case gateway.EventPaymentCancelled:
		d.logger.Info("payment_cancelled acknowledged without action",
			"transaction_id", rec.ProviderTransactionID)
		return nil
	}
	return errors.NewUnsupportedEventTypeError(string(event.Type))
}

// waitSettle holds processing briefly so a read-back at the gateway sees
// the state the webhook announces.
func (d *Dispatcher) waitSettle(ctx context.Context) error {
	if d.settleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(d.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolvePayment finds the local record for a delivery. Order: cart id
// from the payment metadata (a record from another provider counts as a
// miss), then the gateway transaction id, then the payment session the
// host still has attached to the cart.
func (d *Dispatcher) resolvePayment(ctx context.Context, event *gateway.WebhookEvent) (*datamodel.Payment, error) {
	cartID := event.CartID()

	if cartID != "" {
		rec, err := d.repo.GetByCartID(ctx, cartID)
		if err == nil {
			if rec.ProviderID == providerID {
				return rec, nil
			}
			d.logger.Debug("cart payment belongs to another provider",
				"cart_id", cartID,
				"provider_id", rec.ProviderID)
		}
	}

	if event.PaymentID != "" {
		rec, err := d.repo.GetByProviderTransactionID(ctx, event.PaymentID)
		if err == nil {
			return rec, nil
		}
	}

	if cartID != "" && d.carts != nil {
		session, err := d.carts.RetrieveSession(ctx, cartID)
		if err == nil && session != nil {
			data, derr := paymentpkg.SessionDataFromJSON(session.Data)
			if derr == nil && data.PaymentID != "" {
				rec, rerr := d.repo.GetByProviderTransactionID(ctx, data.PaymentID)
				if rerr == nil {
					return rec, nil
				}
			}
		}
	}

	d.logger.Warn("no payment record for webhook",
		"event_type", event.Type,
		"entity_id", event.EntityID,
		"cart_id", cartID)
	return nil, errors.ErrPaymentNotFound
}

func (d *Dispatcher) handleAuthorized(ctx context.Context, rec *datamodel.Payment, event *gateway.WebhookEvent) error {
	if rec.Status == datamodel.StatusAuthorized {
		d.logger.Info("payment already authorized", "transaction_id", rec.ProviderTransactionID)
		return nil
	}

	changed, err := d.repo.UpdateStatusIf(ctx, rec.ID, datamodel.StatusAuthorized, nonTerminalStatuses)
	if err != nil {
		return err
	}
	if !changed {
		d.logger.Info("authorization skipped, payment already terminal",
			"transaction_id", rec.ProviderTransactionID,
			"status", rec.Status)
		return nil
	}
	d.cancelProcessingTimeout(rec.ID)

	if err := d.repo.MergeRaw(ctx, rec.ID, event.Raw); err != nil {
		d.logger.Warn("failed to store webhook payload", "error", err, "payment_id", rec.ID)
	}

	if err := d.authorizeHostSession(ctx, rec); err != nil {
		if _, uerr := d.repo.UpdateStatusIf(ctx, rec.ID, datamodel.StatusError, allStatuses); uerr != nil {
			d.logger.Error("failed to mark payment errored after host rejection",
				"error", uerr, "payment_id", rec.ID)
		}
		return err
	}

	return d.bus.Publish(ctx, events.NewPaymentAuthorizedEvent(rec.ID, rec.ProviderTransactionID, rec.CartID))
}

// authorizeHostSession triggers the host authorization hook when the
// cart no longer holds a pending session of its own.
func (d *Dispatcher) authorizeHostSession(ctx context.Context, rec *datamodel.Payment) error {
	if d.carts == nil || rec.CartID == "" {
		return nil
	}
	session, err := d.carts.RetrieveSession(ctx, rec.CartID)
	if err == nil && session != nil && session.Status == host.SessionStatusPending {
		return nil
	}
	if err := d.carts.AuthorizePayment(ctx, rec.CartID); err != nil {
		d.logger.Error("host authorization hook failed",
			"error", err,
			"cart_id", rec.CartID,
			"transaction_id", rec.ProviderTransactionID)
		return errors.NewInternalError("host authorization failed", err)
	}
	return nil
}

func (d *Dispatcher) handleSucceeded(ctx context.Context, rec *datamodel.Payment, event *gateway.WebhookEvent) error {
	if rec.Status == datamodel.StatusAuthorized {
		d.logger.Info("payment already authorized", "transaction_id", rec.ProviderTransactionID)
		return nil
	}

	changed, err := d.repo.UpdateStatusIf(ctx, rec.ID, datamodel.StatusAuthorized, nonTerminalStatuses)
	if err != nil {
		return err
	}
	if !changed {
		d.logger.Info("success skipped, payment already terminal",
			"transaction_id", rec.ProviderTransactionID,
			"status", rec.Status)
		return nil
	}
	d.cancelProcessingTimeout(rec.ID)

	if err := d.repo.MergeRaw(ctx, rec.ID, event.Raw); err != nil {
		d.logger.Warn("failed to store webhook payload", "error", err, "payment_id", rec.ID)
	}

	return d.bus.Publish(ctx, events.NewPaymentSucceededEvent(rec.ID, rec.ProviderTransactionID, rec.CartID))
}

func (d *Dispatcher) handleProcessing(ctx context.Context, rec *datamodel.Payment, event *gateway.WebhookEvent) error {
	if rec.Status.IsTerminal() || rec.Status == datamodel.StatusAuthorized {
		d.logger.Info("processing notification ignored, payment settled",
			"transaction_id", rec.ProviderTransactionID,
			"status", rec.Status)
		return nil
	}

	// requires_more moves back to pending so the watchdog and the
	// reconcile sweep can see the record
	changed, err := d.repo.UpdateStatusIf(ctx, rec.ID, datamodel.StatusPending, nonTerminalStatuses)
	if err != nil {
		return err
	}
	if !changed {
		d.logger.Info("processing skipped, payment already terminal",
			"transaction_id", rec.ProviderTransactionID,
			"status", rec.Status)
		return nil
	}

	now := time.Now()
	if err := d.repo.SetProcessingStartedAt(ctx, rec.ID, now); err != nil {
		return err
	}
	d.scheduleProcessingTimeout(rec.ID, rec.ProviderTransactionID, rec.CartID)

	if d.carts != nil && rec.CartID != "" {
		if err := d.carts.MarkSessionPending(ctx, rec.CartID); err != nil {
			d.logger.Warn("failed to mark host session pending",
				"error", err,
				"cart_id", rec.CartID,
				"transaction_id", rec.ProviderTransactionID)
		}
	}

	return d.bus.Publish(ctx, events.NewPaymentProcessingEvent(rec.ID, rec.ProviderTransactionID, rec.CartID))
}

func (d *Dispatcher) handleFailed(ctx context.Context, rec *datamodel.Payment, event *gateway.WebhookEvent) error {
	changed, err := d.repo.UpdateStatusIf(ctx, rec.ID, datamodel.StatusError, nonTerminalStatuses)
	if err != nil {
		return err
	}
	if !changed {
		d.logger.Info("failure skipped, payment already terminal",
			"transaction_id", rec.ProviderTransactionID,
			"status", rec.Status)
		return nil
	}
	d.cancelProcessingTimeout(rec.ID)

	if err := d.repo.MergeRaw(ctx, rec.ID, event.Raw); err != nil {
		d.logger.Warn("failed to store webhook payload", "error", err, "payment_id", rec.ID)
	}

	reason := event.ErrorMessage
	if reason == "" {
		reason = "payment failed"
	}
	return d.bus.Publish(ctx, events.NewPaymentFailedEvent(rec.ID, rec.ProviderTransactionID, rec.CartID, reason))
}

func (d *Dispatcher) handleRefundProcessed(ctx context.Context, rec *datamodel.Payment, event *gateway.WebhookEvent) error {
	refund, err := d.refunds.GetPendingByPaymentID(ctx, rec.ID)
	if err != nil {
		d.logger.Error("refund webhook without matching refund record",
			"error", err,
			"transaction_id", rec.ProviderTransactionID,
			"refund_id", event.EntityID)
		return err
	}

	if err := d.refunds.MarkSucceeded(ctx, refund.ID, event.Raw); err != nil {
		return err
	}

	return d.bus.Publish(ctx, events.NewRefundProcessedEvent(refund.ID, rec.ID, rec.CartID, refund.Amount))
}

// scheduleProcessingTimeout arms a one-shot timer that synthesizes a
// payment_failed delivery when the gateway never settles the payment.
// Re-arming replaces any running timer for the same record.
func (d *Dispatcher) scheduleProcessingTimeout(paymentID int64, txnID, cartID string) {
	if d.processingTimeout <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.timers[paymentID]; ok {
		existing.Stop()
	}
	d.timers[paymentID] = time.AfterFunc(d.processingTimeout, func() {
		d.onProcessingTimeout(paymentID, txnID, cartID)
	})
}

func (d *Dispatcher) cancelProcessingTimeout(paymentID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if timer, ok := d.timers[paymentID]; ok {
		timer.Stop()
		delete(d.timers, paymentID)
	}
}

// onProcessingTimeout re-checks the record and, when it is still
// pending, routes a synthesized failure through the full pipeline so
// idempotency and event emission behave exactly like a real delivery.
func (d *Dispatcher) onProcessingTimeout(paymentID int64, txnID, cartID string) {
	d.mu.Lock()
	delete(d.timers, paymentID)
	d.mu.Unlock()

	ctx := context.Background()
	rec, err := d.repo.GetByID(ctx, paymentID)
	if err != nil {
		d.logger.Error("timeout check failed to load payment", "error", err, "payment_id", paymentID)
		return
	}
	if rec.Status != datamodel.StatusPending {
		return
	}

	d.logger.Warn("payment processing timeout, synthesizing failure",
		"payment_id", paymentID,
		"transaction_id", txnID)

	event := syntheticFailureEvent(txnID, cartID)
	meta := RecordMeta{Path: "internal/processing-timeout", Method: "SYNTHETIC", Params: event.Raw}
	if err := d.Dispatch(ctx, event, meta); err != nil {
		d.logger.Error("synthesized failure dispatch failed",
			"error", err,
			"payment_id", paymentID)
	}
}

func syntheticFailureEvent(txnID, cartID string) *gateway.WebhookEvent {
	metadata := map[string]interface{}{}
	if cartID != "" {
		metadata["cart_id"] = cartID
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"event_type":    string(gateway.EventPaymentFailed),
		"payment_id":    txnID,
		"error_message": processingTimeoutReason,
		"metadata":      metadata,
	})
	return &gateway.WebhookEvent{
		Type:         gateway.EventPaymentFailed,
		EntityID:     txnID,
		PaymentID:    txnID,
		ErrorMessage: processingTimeoutReason,
		Metadata:     metadata,
		Raw:          raw,
	}
}

// ReconcileStuck sweeps payments left pending past the processing
// timeout and routes a synthesized failure for each through the full
// pipeline. In-process timers die with the server; the sweep catches
// what they missed.
func (d *Dispatcher) ReconcileStuck(ctx context.Context, limit int) (int, error) {
	if d.processingTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-d.processingTimeout)
	stuck, err := d.repo.ListStuckPending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, rec := range stuck {
		d.logger.Warn("reconciling stuck pending payment",
			"payment_id", rec.ID,
			"transaction_id", rec.ProviderTransactionID,
			"processing_started_at", rec.ProcessingStartedAt)

		event := syntheticFailureEvent(rec.ProviderTransactionID, rec.CartID)
		meta := RecordMeta{Path: "internal/reconcile", Method: "SYNTHETIC", Params: event.Raw}
		if err := d.Dispatch(ctx, event, meta); err != nil {
			d.logger.Error("reconcile dispatch failed", "error", err, "payment_id", rec.ID)
			continue
		}
		reconciled++
	}
	return reconciled, nil
}

// Stop cancels all armed processing-timeout timers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, timer := range d.timers {
		timer.Stop()
		delete(d.timers, id)
	}
}
