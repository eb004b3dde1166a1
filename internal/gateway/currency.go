package gateway

import (
	"math"
	"strings"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
)

// zeroDecimalCurrencies have no minor unit: the gateway expects the major
// unit amount unscaled.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var supportedCurrencies = map[string]struct{}{
	"AED": {}, "AUD": {}, "BIF": {}, "BRL": {}, "CAD": {}, "CHF": {},
	"CLP": {}, "CNY": {}, "CZK": {}, "DJF": {}, "DKK": {}, "EUR": {},
	"GBP": {}, "GNF": {}, "HKD": {}, "IDR": {}, "ILS": {}, "INR": {},
	"JPY": {}, "KMF": {}, "KRW": {}, "MGA": {}, "MXN": {}, "MYR": {},
	"NOK": {}, "NZD": {}, "PHP": {}, "PLN": {}, "PYG": {}, "RON": {},
	"RWF": {}, "SAR": {}, "SEK": {}, "SGD": {}, "THB": {}, "TRY": {},
	"UGX": {}, "USD": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {},
	"XPF": {}, "ZAR": {},
}

// IsValidCurrency reports whether the currency code is supported by the
// gateway integration.
func IsValidCurrency(currency string) bool {
	if currency == "" {
		return false
	}
	_, ok := supportedCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// IsZeroDecimal reports whether the currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]
	return ok
}

// ToMinorUnits converts a decimal amount to the gateway's integer
// representation in the currency's smallest denomination.
func ToMinorUnits(amount float64, currency string) (int64, error) {
	if !IsValidCurrency(currency) {
		return 0, errors.NewValidationError("currency "+currency+" is not supported", errors.ErrCodeUnsupportedCurrency)
	}
	if amount < 0 {
		return 0, errors.NewValidationError("amount must be a positive number", errors.ErrCodeInvalidAmount)
	}

	if IsZeroDecimal(currency) {
		return int64(math.Round(amount)), nil
	}
	return int64(math.Round(amount * 100)), nil
}

// FromMinorUnits converts a gateway integer amount back to decimal form.
func FromMinorUnits(amount int64, currency string) float64 {
	if IsZeroDecimal(currency) {
		return float64(amount)
	}
	return float64(amount) / 100
}
