// Package errors defines the error taxonomy for the StakeKit SDK.
//
// All SDK errors are represented as StakeKitError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Component: Which component produced the error (identity, registry, funding, account, issuance, staking, store)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (owner address, transaction id, stage, etc.)
//
// Error kinds are assigned at the source of the failure and never inferred
// downstream from message text. The distinction that matters most to callers
// is encoded in the codes themselves: PAYMENT_FAILED means nothing happened
// and the purchase is safe to retry, while ISSUANCE_AFTER_PAYMENT_FAILED
// means money moved but the asset was not delivered; the payment receipt is
// attached so the caller can offer a retry-issuance-only path instead of
// re-charging.
package errors

import "fmt"

// Code is a machine-readable error identifier.
type Code string

// Error codes - local validation and storage
const (
	// STORAGE_CORRUPTION means a persisted record could not be decoded.
	// Fatal and surfaced immediately; the SDK never silently regenerates a
	// corrupt identity or registration, since doing so would orphan assets
	// already issued under the old key.
	STORAGE_CORRUPTION Code = "STORAGE_CORRUPTION"

	// STORE_ERROR is a read or write failure in the durable local store.
	STORE_ERROR Code = "STORE_ERROR"

	// INVALID_AMOUNT is a locally rejected amount; it never reaches the network.
	INVALID_AMOUNT Code = "INVALID_AMOUNT"
)

// Error codes - network operations
const (
	// NETWORK_UNAVAILABLE is an unrecoverable chain access failure.
	NETWORK_UNAVAILABLE Code = "NETWORK_UNAVAILABLE"

	// CHECKPOINT_UNAVAILABLE means checkpoint retrieval failed after the
	// bounded retries were exhausted.
	CHECKPOINT_UNAVAILABLE Code = "CHECKPOINT_UNAVAILABLE"

	// FUNDING_UNAVAILABLE means the authority could not be topped up. Fatal
	// for the calling operation and never retried automatically, so an
	// exhausted faucet or rate limit surfaces instead of looping.
	FUNDING_UNAVAILABLE Code = "FUNDING_UNAVAILABLE"

	// CREATION_REJECTED means the asset registration submission failed.
	// Safe for the caller to retry.
	CREATION_REJECTED Code = "CREATION_REJECTED"

	// ACCOUNT_RESOLUTION_FAILED means a holding account could not be
	// resolved or created. Safe for the caller to retry.
	ACCOUNT_RESOLUTION_FAILED Code = "ACCOUNT_RESOLUTION_FAILED"
)

// Error codes - issuance orchestration
const (
	// PAYMENT_FAILED means the payment phase failed or was rejected. No
	// funds moved and no assets were minted; fully safe to retry.
	PAYMENT_FAILED Code = "PAYMENT_FAILED"

	// ISSUANCE_AFTER_PAYMENT_FAILED means payment confirmed but the mint
	// did not. A recognized inconsistent state: the payment transaction id
	// is attached via Context and PaymentTx. Not safe to blindly retry as a
	// fresh purchase.
	ISSUANCE_AFTER_PAYMENT_FAILED Code = "ISSUANCE_AFTER_PAYMENT_FAILED"
)

// paymentTxKey is the Context key carrying a payment receipt.
const paymentTxKey = "payment_tx"

// StakeKitError is the base error type for all SDK errors.
type StakeKitError struct {
	Code      Code
	Message   string
	Component string // "identity", "registry", "funding", "account", "issuance", "staking", "store"
	Cause     error
	Context   map[string]any
}

// Error returns a formatted error string.
func (e *StakeKitError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *StakeKitError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error is a StakeKitError with the same code.
func (e *StakeKitError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*StakeKitError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// WithContext attaches a key/value detail and returns the error.
func (e *StakeKitError) WithContext(key string, value any) *StakeKitError {
	e.Context[key] = value
	return e
}

// WithPaymentTx attaches the confirmed payment transaction id to an
// ISSUANCE_AFTER_PAYMENT_FAILED error.
func (e *StakeKitError) WithPaymentTx(id string) *StakeKitError {
	return e.WithContext(paymentTxKey, id)
}

// PaymentTx returns the attached payment transaction id, if any.
func (e *StakeKitError) PaymentTx() (string, bool) {
	id, ok := e.Context[paymentTxKey].(string)
	return id, ok
}

// New creates an error for the given component.
func New(component string, code Code, message string, cause error) *StakeKitError {
	return &StakeKitError{
		Code:      code,
		Message:   message,
		Component: component,
		Cause:     cause,
		Context:   make(map[string]any),
	}
}

// As checks if err is a StakeKitError and assigns it.
func As(err error, target **StakeKitError) bool {
	if err == nil {
		return false
	}
	if v, ok := err.(*StakeKitError); ok {
		*target = v
		return true
	}
	return false
}

// CodeOf returns the code of err if it is a StakeKitError, or "" otherwise.
func CodeOf(err error) Code {
	var ske *StakeKitError
	if As(err, &ske) {
		return ske.Code
	}
	return ""
}
