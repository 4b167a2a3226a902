// Package domainerrors defines the coded error taxonomy shared by all vault
// components. Services and the transaction pipeline return these; transport
// translates codes to HTTP statuses without inspecting messages.
package domainerrors

import (
	"errors"
	"net/http"
)

type Code string

const (
	// CodeValidation marks malformed local input. The request never reached
	// the network; correcting the input and retrying is always safe.
	CodeValidation Code = "validation_error"
	// CodeSimulation marks a ledger-side rejection during the dry run,
	// before any signature was requested. No state changed anywhere.
	CodeSimulation Code = "simulation_error"
	// CodeSigningRejected marks a declined or unreachable signing agent.
	// Nothing was submitted, so retrying is always safe.
	CodeSigningRejected Code = "signing_rejected"
	// CodeSubmission marks a network or timeout failure during final submit.
	// The effect on the ledger is ambiguous; callers must reconcile before
	// retrying a non-idempotent action.
	CodeSubmission Code = "submission_error"
	// CodeFeed marks an event-log query failure. Partial results aggregated
	// before the failure remain valid.
	CodeFeed Code = "feed_error"
	// CodeStateConflict marks a transition that violates the proposal guard
	// table. Rejected locally, before any network call.
	CodeStateConflict Code = "state_conflict"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"
)

// DomainError carries a machine-readable code alongside a human message and an
// optional wrapped cause.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Message == "" && e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// New builds a DomainError with the given code and message.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Wrap builds a DomainError that keeps the cause reachable via errors.Is/As.
func Wrap(code Code, message string, err error) error {
	return &DomainError{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with the
// given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in the domain layer.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to the HTTP status transport should
// respond with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeStateConflict:
		return http.StatusConflict
	case CodeSimulation, CodeSigningRejected:
		return http.StatusUnprocessableEntity
	case CodeSubmission, CodeFeed:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
