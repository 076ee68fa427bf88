package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
)

// FailureKind classifies why a request did not complete its action. Every
// kind is reported to the caller as a plain-language message.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureProductNotFound   FailureKind = "product_not_found"
	FailureInvalidQuantity   FailureKind = "invalid_quantity"
	FailureInsufficientStock FailureKind = "insufficient_stock"
	FailureStoreTransaction  FailureKind = "store_transaction"
	FailureModelUnavailable  FailureKind = "model_unavailable"
	FailureMalformedResponse FailureKind = "malformed_response"
)
