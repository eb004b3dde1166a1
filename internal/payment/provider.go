package payment

import (
	"context"
	stderrors "errors"
	"log/slog"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
)

// TransactionsAPI is the slice of the gateway client the provider needs.
type TransactionsAPI interface {
	Create(ctx context.Context, params *gateway.TransactionCreateParams) (*gateway.TransactionResponse, error)
	Update(ctx context.Context, paymentID string, params *gateway.TransactionUpdateParams) (*gateway.TransactionResponse, error)
	Fetch(ctx context.Context, paymentID string) (*gateway.TransactionResponse, error)
	Capture(ctx context.Context, paymentID string, amountToCapture int64) (*gateway.TransactionResponse, error)
	Cancel(ctx context.Context, paymentID, reason string) (*gateway.TransactionResponse, error)
}

// RefundsAPI is the refund endpoint surface of the gateway client.
type RefundsAPI interface {
	Create(ctx context.Context, params *gateway.RefundCreateParams) (*gateway.RefundResponse, error)
}

// WebhookVerifier authenticates raw webhook bodies.
type WebhookVerifier interface {
	Verify(body []byte, signature string) error
}

// WebhookAction summarizes a webhook for the host order system.
type WebhookAction string

const (
	ActionAuthorized   WebhookAction = "AUTHORIZED"
	ActionSuccessful   WebhookAction = "SUCCESSFUL"
	ActionFailed       WebhookAction = "FAILED"
	ActionNotSupported WebhookAction = "NOT_SUPPORTED"
)

// WebhookActionResult is the host-facing summary of a webhook delivery.
type WebhookActionResult struct {
	Action    WebhookAction `json:"action"`
	PaymentID string        `json:"payment_id"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
}

const cancellationReason = "requested_by_customer"

// Provider is the synchronous payment facade the host platform calls.
type Provider struct {
	transactions TransactionsAPI
	refunds      RefundsAPI
	verifier     WebhookVerifier
	repo         Repository
	refundRepo   RefundRepository
	cfg          *errors.GatewayConfig
	logger       *slog.Logger
}

func NewProvider(
	transactions TransactionsAPI,
	refunds RefundsAPI,
	verifier WebhookVerifier,
	repo Repository,
	refundRepo RefundRepository,
	cfg *errors.GatewayConfig,
	logger *slog.Logger,
) *Provider {
	return &Provider{
		transactions: transactions,
		refunds:      refunds,
		verifier:     verifier,
		repo:         repo,
		refundRepo:   refundRepo,
		cfg:          cfg,
		logger:       logger,
	}
}

// Initiate opens a transaction at the gateway and records it locally.
func (p *Provider) Initiate(ctx context.Context, dto InitiateDTO) (*SessionData, error) {
	if err := dto.Validate(); err != nil {
		p.logger.Error("initiate validation failed", "error", err, "cart_id", dto.CartID)
		return nil, err
	}

	minorAmount, err := gateway.ToMinorUnits(dto.Amount, dto.Currency)
	if err != nil {
		return nil, err
	}

	params := &gateway.TransactionCreateParams{
		Amount:        minorAmount,
		Currency:      dto.Currency,
		CaptureMethod: p.cfg.CaptureMethod,
		ProfileID:     p.cfg.ProfileID,
		Billing:       toGatewayAddress(dto.BillingAddress),
		Shipping:      toGatewayAddress(dto.ShippingAddress),
		Customer:      toGatewayCustomer(dto.Customer, dto.ShippingAddress, dto.Email),
		Metadata: map[string]interface{}{
			"cart_id": dto.CartID,
		},
	}
	if p.cfg.SaveCards {
		params.SetupFutureUsage = "off_session"
	} else {
		params.SetupFutureUsage = "on_session"
	}

	resp, err := p.transactions.Create(ctx, params)
	if err != nil {
		p.logger.Error("failed to create gateway transaction", "error", err, "cart_id", dto.CartID)
		return nil, asAppError(err, "failed to create payment")
	}

	record := &payment.Payment{
		ProviderTransactionID: resp.PaymentID,
		CartID:                dto.CartID,
		Status:                payment.StatusPending,
		Amount:                resp.Amount,
		Currency:              resp.Currency,
	}
	if err := p.repo.Create(ctx, record); err != nil {
		p.logger.Error("failed to persist payment record", "error", err, "transaction_id", resp.PaymentID)
		return nil, errors.NewInternalError("failed to persist payment", err)
	}

	p.logger.Info("payment initiated",
		"transaction_id", resp.PaymentID,
		"cart_id", dto.CartID,
		"amount", resp.Amount,
		"currency", resp.Currency)

	return sessionDataFromResponse(resp), nil
}

// Update amends an open transaction with fresh amount and contact detail.
func (p *Provider) Update(ctx context.Context, data *SessionData, dto UpdateDTO) (*SessionData, error) {
	minorAmount, err := gateway.ToMinorUnits(dto.Amount, dto.Currency)
	if err != nil {
		return nil, err
	}

	params := &gateway.TransactionUpdateParams{
		Amount:    minorAmount,
		Billing:   toGatewayAddress(dto.BillingAddress),
		Shipping:  toGatewayAddress(dto.ShippingAddress),
		Customer:  toGatewayCustomer(dto.Customer, dto.ShippingAddress, dto.Email),
		ReturnURL: dto.ReturnURL,
	}

	resp, err := p.transactions.Update(ctx, data.PaymentID, params)
	if err != nil {
		p.logger.Error("failed to update gateway transaction", "error", err, "transaction_id", data.PaymentID)
		return nil, asAppError(err, "failed to update payment")
	}

	if rec, rerr := p.repo.GetByProviderTransactionID(ctx, data.PaymentID); rerr == nil {
		rec.Amount = resp.Amount
		rec.Currency = resp.Currency
		if uerr := p.repo.Update(ctx, rec); uerr != nil {
			p.logger.Warn("failed to refresh payment record", "error", uerr, "transaction_id", data.PaymentID)
		}
	}

	return sessionDataFromResponse(resp), nil
}

// Capture settles an authorized transaction. Capturing an already
// captured transaction is a no-op that returns the current state.
func (p *Provider) Capture(ctx context.Context, data *SessionData) (*SessionData, error) {
	current, err := p.transactions.Fetch(ctx, data.PaymentID)
	if err != nil {
		return nil, asAppError(err, "failed to fetch payment before capture")
	}
	if gateway.MapStatus(current.Status) == payment.StatusCaptured {
		p.logger.Info("payment already captured", "transaction_id", data.PaymentID)
		return sessionDataFromResponse(current), nil
	}

	resp, err := p.transactions.Capture(ctx, data.PaymentID, current.Amount)
	if err != nil {
		p.logger.Error("failed to capture payment", "error", err, "transaction_id", data.PaymentID)
		return nil, asAppError(err, "failed to capture payment")
	}

	if rec, rerr := p.repo.GetByProviderTransactionID(ctx, data.PaymentID); rerr == nil {
		if _, uerr := p.repo.UpdateStatusIf(ctx, rec.ID, payment.StatusCaptured,
			[]payment.Status{payment.StatusAuthorized, payment.StatusPending}); uerr != nil {
			p.logger.Warn("failed to mark payment captured", "error", uerr, "transaction_id", data.PaymentID)
		}
	}

	p.logger.Info("payment captured", "transaction_id", data.PaymentID, "amount", current.Amount)
	return sessionDataFromResponse(resp), nil
}

// Cancel voids a transaction when the gateway still allows it.
func (p *Provider) Cancel(ctx context.Context, data *SessionData) (*SessionData, error) {
	current, err := p.transactions.Fetch(ctx, data.PaymentID)
	if err != nil {
		return nil, asAppError(err, "failed to fetch payment before cancel")
	}
	if !gateway.CanCancel(current.Status) {
		p.logger.Warn("cancel rejected by status",
			"transaction_id", data.PaymentID,
			"gateway_status", current.Status)
		return nil, errors.ErrCancelNotAllowed
	}

	resp, err := p.transactions.Cancel(ctx, data.PaymentID, cancellationReason)
	if err != nil {
		p.logger.Error("failed to cancel payment", "error", err, "transaction_id", data.PaymentID)
		return nil, asAppError(err, "failed to cancel payment")
	}

	if rec, rerr := p.repo.GetByProviderTransactionID(ctx, data.PaymentID); rerr == nil {
		if _, uerr := p.repo.UpdateStatusIf(ctx, rec.ID, payment.StatusCanceled,
			[]payment.Status{payment.StatusPending, payment.StatusRequiresMore}); uerr != nil {
			p.logger.Warn("failed to mark payment canceled", "error", uerr, "transaction_id", data.PaymentID)
		}
	}

	p.logger.Info("payment canceled", "transaction_id", data.PaymentID)
	return sessionDataFromResponse(resp), nil
}

// Refund returns part or all of a captured amount. The requested amount
// must not exceed what the gateway reports as captured.
func (p *Provider) Refund(ctx context.Context, data *SessionData, dto RefundDTO) (*gateway.RefundResponse, error) {
	current, err := p.transactions.Fetch(ctx, data.PaymentID)
	if err != nil {
		return nil, asAppError(err, "failed to fetch payment before refund")
	}

	minorAmount, err := gateway.ToMinorUnits(dto.Amount, current.Currency)
	if err != nil {
		return nil, err
	}

	captured := current.AmountReceived
	if captured == 0 {
		captured = current.Amount
	}
	if minorAmount > captured {
		p.logger.Warn("refund exceeds captured amount",
			"transaction_id", data.PaymentID,
			"requested", minorAmount,
			"captured", captured)
		return nil, errors.ErrRefundExceedsCaptured
	}

	resp, err := p.refunds.Create(ctx, &gateway.RefundCreateParams{
		PaymentID: data.PaymentID,
		Amount:    minorAmount,
		Reason:    dto.Reason,
	})
	if err != nil {
		p.logger.Error("failed to create refund", "error", err, "transaction_id", data.PaymentID)
		return nil, asAppError(err, "failed to refund payment")
	}

	if rec, rerr := p.repo.GetByProviderTransactionID(ctx, data.PaymentID); rerr == nil {
		refund := &payment.Refund{
			PaymentID: rec.ID,
			Amount:    minorAmount,
			Status:    payment.RefundStatusPending,
		}
		if cerr := p.refundRepo.Create(ctx, refund); cerr != nil {
			p.logger.Warn("failed to persist refund record", "error", cerr, "transaction_id", data.PaymentID)
		}
	}

	p.logger.Info("refund requested",
		"transaction_id", data.PaymentID,
		"refund_id", resp.RefundID,
		"amount", minorAmount)
	return resp, nil
}

// GetStatus fetches the transaction and maps it to the local status set.
func (p *Provider) GetStatus(ctx context.Context, data *SessionData) (payment.Status, error) {
	current, err := p.transactions.Fetch(ctx, data.PaymentID)
	if err != nil {
		return "", asAppError(err, "failed to fetch payment status")
	}
	return gateway.MapStatus(current.Status), nil
}

// Retrieve fetches the transaction as the gateway reports it.
func (p *Provider) Retrieve(ctx context.Context, data *SessionData) (*gateway.TransactionResponse, error) {
	current, err := p.transactions.Fetch(ctx, data.PaymentID)
	if err != nil {
		return nil, asAppError(err, "failed to fetch payment")
	}
	return current, nil
}

// GetWebhookActionAndData authenticates a webhook body and summarizes it
// as a host-facing action. Event types the host does not act on map to
// NOT_SUPPORTED rather than an error.
func (p *Provider) GetWebhookActionAndData(body []byte, signature string) (*WebhookActionResult, error) {
	if err := p.verifier.Verify(body, signature); err != nil {
		p.logger.Warn("webhook signature rejected", "error", err)
		return nil, err
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		return nil, err
	}

	var action WebhookAction
	switch event.Type {
	case gateway.EventPaymentAuthorized:
		action = ActionAuthorized
	case gateway.EventPaymentSucceeded:
		action = ActionSuccessful
	case gateway.EventPaymentFailed:
		action = ActionFailed
	case gateway.EventPaymentProcessing, gateway.EventPaymentCancelled, gateway.EventRefundProcessed:
		action = ActionNotSupported
	}

	return &WebhookActionResult{
		Action:    action,
		PaymentID: event.PaymentID,
		Amount:    gateway.FromMinorUnits(event.Amount, event.Currency),
		Currency:  event.Currency,
	}, nil
}

func sessionDataFromResponse(resp *gateway.TransactionResponse) *SessionData {
	return &SessionData{
		PaymentID:    resp.PaymentID,
		ClientSecret: resp.ClientSecret,
		Amount:       resp.Amount,
		Currency:     resp.Currency,
		Status:       string(gateway.MapStatus(resp.Status)),
	}
}

// asAppError passes AppErrors through and wraps gateway failures as
// external errors so transport can map them to 502.
func asAppError(err error, message string) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if gerr, ok := gateway.AsError(err); ok {
		return errors.NewExternalError(message, errors.ErrCodeGatewayError, gerr)
	}
	return errors.NewInternalError(message, err)
}
