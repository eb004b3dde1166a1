package gateway

import (
	"github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
)

// Gateway-reported transaction statuses.
const (
	ProcessorStatusSucceeded              = "succeeded"
	ProcessorStatusFailed                 = "failed"
	ProcessorStatusCancelled              = "cancelled"
	ProcessorStatusProcessing             = "processing"
	ProcessorStatusRequiresCapture        = "requires_capture"
	ProcessorStatusRequiresConfirmation   = "requires_confirmation"
	ProcessorStatusRequiresPaymentMethod  = "requires_payment_method"
	ProcessorStatusRequiresCustomerAction = "requires_customer_action"
	ProcessorStatusRequiresMerchantAction = "requires_merchant_action"
)

// MapStatus folds a gateway-reported status into the local closed set. It is
// total: anything unrecognized maps to pending so callers can always render
// a state.
func MapStatus(gatewayStatus string) payment.Status {
	switch gatewayStatus {
	case ProcessorStatusSucceeded:
		return payment.StatusAuthorized
	case ProcessorStatusFailed:
		return payment.StatusError
	case ProcessorStatusRequiresCapture,
		ProcessorStatusRequiresConfirmation,
		ProcessorStatusRequiresPaymentMethod,
		ProcessorStatusRequiresCustomerAction,
		ProcessorStatusRequiresMerchantAction:
		return payment.StatusRequiresMore
	default:
		return payment.StatusPending
	}
}

// CanCancel reports whether a transaction in the given gateway status may
// still be voided. Anything already succeeded, failed or captured cannot.
func CanCancel(gatewayStatus string) bool {
	switch gatewayStatus {
	case ProcessorStatusRequiresPaymentMethod,
		ProcessorStatusRequiresCapture,
		ProcessorStatusRequiresConfirmation,
		ProcessorStatusRequiresCustomerAction:
		return true
	}
	return false
}
