package payment

import (
	"encoding/json"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/common/validation"
)

// AddressDTO carries a billing or shipping address from the host platform.
type AddressDTO struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address_1"`
	Address2    string `json:"address_2"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Province    string `json:"province"`
	PostalCode  string `json:"postal_code"`
	Phone       string `json:"phone"`
}

// CustomerDTO carries the customer attached to a checkout.
type CustomerDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// InitiateDTO is the input for starting a payment session.
type InitiateDTO struct {
	Amount          float64      `json:"amount"`
	Currency        string       `json:"currency"`
	CartID          string       `json:"cart_id"`
	Email           string       `json:"email"`
	BillingAddress  *AddressDTO  `json:"billing_address,omitempty"`
	ShippingAddress *AddressDTO  `json:"shipping_address,omitempty"`
	Customer        *CustomerDTO `json:"customer,omitempty"`
	ReturnURL       string       `json:"return_url,omitempty"`
}

// Validate checks the initiate input before any gateway call is made.
func (d InitiateDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("currency", d.Currency).Required().Length(3)
	v.Field("cart_id", d.CartID).Required()
	if err := v.Validate(); err != nil {
		return err
	}
	if d.Amount < 0 {
		return errors.NewValidationError("amount must not be negative", errors.ErrCodeInvalidAmount)
	}
	return nil
}

// UpdateDTO is the input for amending an open payment session.
type UpdateDTO struct {
	Amount          float64      `json:"amount"`
	Currency        string       `json:"currency"`
	BillingAddress  *AddressDTO  `json:"billing_address,omitempty"`
	ShippingAddress *AddressDTO  `json:"shipping_address,omitempty"`
	Customer        *CustomerDTO `json:"customer,omitempty"`
	Email           string       `json:"email"`
	ReturnURL       string       `json:"return_url,omitempty"`
}

// RefundDTO is the input for refunding a captured payment.
type RefundDTO struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason,omitempty"`
}

// SessionData is the provider-side state stored against the host's
// payment session. It round-trips through the host as opaque JSON.
type SessionData struct {
	PaymentID    string `json:"payment_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
}

// SessionDataFromJSON decodes stored session data, tolerating empty input.
func SessionDataFromJSON(raw json.RawMessage) (*SessionData, error) {
	var data SessionData
	if len(raw) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.NewValidationError("malformed session data", errors.ErrCodeMalformedPayload)
	}
	return &data, nil
}
