package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	City      string `json:"city,omitempty"`
	Country   string `json:"country,omitempty"`
	Line1     string `json:"line1,omitempty"`
	Line2     string `json:"line2,omitempty"`
	Zip       string `json:"zip,omitempty"`
	State     string `json:"state,omitempty"`
}

type BillingDetails struct {
	Address *Address `json:"address,omitempty"`
}

type CustomerDetails struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type TransactionCreateParams struct {
	Amount           int64                  `json:"amount"`
	Currency         string                 `json:"currency"`
	CaptureMethod    string                 `json:"capture_method,omitempty"`
	SetupFutureUsage string                 `json:"setup_future_usage,omitempty"`
	ProfileID        string                 `json:"profile_id,omitempty"`
	Description      string                 `json:"description,omitempty"`
	Billing          *BillingDetails        `json:"billing,omitempty"`
	Shipping         *BillingDetails        `json:"shipping,omitempty"`
	Customer         *CustomerDetails       `json:"customer,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type TransactionUpdateParams struct {
	Amount     int64                  `json:"amount,omitempty"`
	Billing    *BillingDetails        `json:"billing,omitempty"`
	Shipping   *BillingDetails        `json:"shipping,omitempty"`
	Customer   *CustomerDetails       `json:"customer,omitempty"`
	CustomerID string                 `json:"customer_id,omitempty"`
	ReturnURL  string                 `json:"return_url,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type TransactionResponse struct {
	PaymentID      string                 `json:"payment_id"`
	ClientSecret   string                 `json:"client_secret"`
	Amount         int64                  `json:"amount"`
	AmountReceived int64                  `json:"amount_received"`
	Currency       string                 `json:"currency"`
	Status         string                 `json:"status"`
	CaptureMethod  string                 `json:"capture_method,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	ErrorCode      string                 `json:"error_code,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
}

type RefundCreateParams struct {
	PaymentID string                 `json:"payment_id"`
	Amount    int64                  `json:"amount,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type RefundResponse struct {
	RefundID  string `json:"refund_id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// TransactionsService groups the payment endpoints.
type TransactionsService struct {
	client *Client
}

func (s *TransactionsService) Create(ctx context.Context, params *TransactionCreateParams) (*TransactionResponse, error) {
	return s.roundTrip(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   "/payments",
		Body:   params,
	})
}

func (s *TransactionsService) Update(ctx context.Context, paymentID string, params *TransactionUpdateParams) (*TransactionResponse, error) {
	return s.roundTrip(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   "/payments/" + paymentID,
		Body:   params,
	})
}

func (s *TransactionsService) Fetch(ctx context.Context, paymentID string) (*TransactionResponse, error) {
	return s.roundTrip(ctx, RequestOptions{
		Method: http.MethodGet,
		Path:   "/payments/" + paymentID,
	})
}

func (s *TransactionsService) Capture(ctx context.Context, paymentID string, amountToCapture int64) (*TransactionResponse, error) {
	return s.roundTrip(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   "/payments/" + paymentID + "/capture",
		Body: map[string]interface{}{
			"amount_to_capture": amountToCapture,
		},
	})
}

func (s *TransactionsService) Cancel(ctx context.Context, paymentID, reason string) (*TransactionResponse, error) {
	return s.roundTrip(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   "/payments/" + paymentID + "/cancel",
		Body: map[string]interface{}{
			"cancellation_reason": reason,
		},
	})
}

func (s *TransactionsService) roundTrip(ctx context.Context, opts RequestOptions) (*TransactionResponse, error) {
	resp, err := s.client.Request(ctx, opts)
	if err != nil {
		return nil, err
	}
	var txn TransactionResponse
	if err := json.Unmarshal(resp.Body, &txn); err != nil {
		return nil, newTransportError(fmt.Errorf("decode transaction response: %w", err))
	}
	return &txn, nil
}

// RefundsService groups the refund endpoints.
type RefundsService struct {
	client *Client
}

func (s *RefundsService) Create(ctx context.Context, params *RefundCreateParams) (*RefundResponse, error) {
	resp, err := s.client.Request(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   "/refunds",
		Body:   params,
	})
	if err != nil {
		return nil, err
	}
	var refund RefundResponse
	if err := json.Unmarshal(resp.Body, &refund); err != nil {
		return nil, newTransportError(fmt.Errorf("decode refund response: %w", err))
	}
	return &refund, nil
}
