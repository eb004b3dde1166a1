package gateway

import (
	"encoding/json"
	"fmt"
)

type ErrorCode string

const (
	// ErrCodeTransport means no response was received at all.
	ErrCodeTransport ErrorCode = "transport_error"
	// ErrCodeAuthentication is a 401 from the gateway: bad or missing api key.
	ErrCodeAuthentication ErrorCode = "authentication_error"
	// ErrCodeRejected is any other 4xx: the gateway refused the request.
	ErrCodeRejected ErrorCode = "gateway_rejected"
	// ErrCodeServer is a 5xx, surfaced after retries were exhausted.
	ErrCodeServer ErrorCode = "server_error"
)

// Error is the single error shape callers see from the client. Raw carries
// the gateway's own error body when one was received.
type Error struct {
	Code    ErrorCode       `json:"code"`
	Status  int             `json:"status,omitempty"`
	Message string          `json:"message"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("hyperswitch: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("hyperswitch: %s: %s", e.Code, e.Message)
}

// Retryable reports whether the failure is worth another attempt: network
// level errors and gateway-side 5xx. Client errors surface immediately.
func (e *Error) Retryable() bool {
	return e.Code == ErrCodeTransport || e.Code == ErrCodeServer
}

func newTransportError(cause error) *Error {
	return &Error{
		Code:    ErrCodeTransport,
		Message: cause.Error(),
	}
}

func newStatusError(status int, body []byte) *Error {
	code := ErrCodeRejected
	switch {
	case status == 401:
		code = ErrCodeAuthentication
	case status >= 500:
		code = ErrCodeServer
	}

	message := fmt.Sprintf("gateway returned status %d", status)
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		message = fmt.Sprintf("%s: %s", payload.Error.Code, payload.Error.Message)
	}

	return &Error{
		Code:    code,
		Status:  status,
		Message: message,
		Raw:     json.RawMessage(body),
	}
}

// AsError extracts a gateway *Error from err if it is one.
func AsError(err error) (*Error, bool) {
	gerr, ok := err.(*Error)
	return gerr, ok
}
