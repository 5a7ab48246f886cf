// Package aeternaerr implements the wire-level error taxonomy shared by
// every public operation across the Memory Engine, Knowledge Repository,
// Governance Engine, and Sync Bridge (spec §6.4). Every error returned
// across a public operation boundary is an *Error; internal packages wrap
// lower-level errors into one with Wrap before returning.
package aeternaerr

import (
	"errors"
	"fmt"
)

// Code is the standard wire-level error taxonomy.
type Code string

const (
	CodeInvalidInput            Code = "InvalidInput"
	CodeMissingTenantContext    Code = "MissingTenantContext"
	CodeMissingIdentifier       Code = "MissingIdentifier"
	CodeInvalidTenantContext    Code = "InvalidTenantContext"
	CodeNotFound                Code = "NotFound"
	CodeDuplicateId              Code = "DuplicateId"
	CodePolicyViolation         Code = "PolicyViolation"
	CodeInsufficientPermissions Code = "InsufficientPermissions"
	CodeInvalidStatusTransition Code = "InvalidStatusTransition"
	CodeInvalidConstraint       Code = "InvalidConstraint"
	CodeManifestCorrupted       Code = "ManifestCorrupted"
	CodeStorageError            Code = "StorageError"
	CodeFederationConflict      Code = "FederationConflict"
	CodeThrottled               Code = "Throttled"
	CodeCircuitOpen             Code = "CircuitOpen"
	CodeInternal                Code = "Internal"
	CodeDimensionMismatch       Code = "DimensionMismatch"
)

// retryableCodes lists the codes that are safe for a caller to retry
// without additional intervention (§7 local recovery).
var retryableCodes = map[Code]bool{
	CodeStorageError: true,
	CodeThrottled:    true,
	CodeCircuitOpen:  true,
}

// Error is the shape every public operation error takes: { code, message,
// operation, details, retryable }.
type Error struct {
	Code      Code
	Message   string
	Operation string
	Details   map[string]any
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", e.Operation, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error for the given code and operation.
func New(code Code, operation, message string) *Error {
	return &Error{Code: code, Operation: operation, Message: message, Retryable: retryableCodes[code]}
}

// Wrap attaches a lower-level cause to a typed error without leaking its
// text into Message (spec §6.4: "never leaks details" for Internal).
func Wrap(code Code, operation string, cause error) *Error {
	msg := cause.Error()
	if code == CodeInternal {
		msg = "an unexpected internal error occurred"
	}
	return &Error{Code: code, Operation: operation, Message: msg, Retryable: retryableCodes[code], cause: cause}
}

// WithDetails attaches structured details and returns the same error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	ae, ok := err.(*Error)
	return ok && ae.Code == code
}

// As unwraps err looking for an *Error, for callers (e.g. the HTTP layer)
// that need its Code/Message/Details rather than just a pass-through.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func MissingTenantContext(operation string) *Error {
	return New(CodeMissingTenantContext, operation, "tenant context is required")
}

func MissingIdentifier(operation, layer string) *Error {
	return New(CodeMissingIdentifier, operation, fmt.Sprintf("layer %q requires an identifier not present in the tenant context", layer)).
		WithDetails(map[string]any{"layer": layer})
}

func NotFound(operation, kind, id string) *Error {
	return New(CodeNotFound, operation, fmt.Sprintf("%s %q not found", kind, id))
}

func DuplicateID(operation, id string) *Error {
	return New(CodeDuplicateId, operation, fmt.Sprintf("id %q already exists", id)).
		WithDetails(map[string]any{"id": id})
}

func InsufficientPermissions(operation string, required string, actual string) *Error {
	return New(CodeInsufficientPermissions, operation, fmt.Sprintf("requires role >= %s, actor has %s", required, actual))
}

func InvalidInput(operation, message string) *Error {
	return New(CodeInvalidInput, operation, message)
}

func DimensionMismatch(operation string, want, got int) *Error {
	return New(CodeDimensionMismatch, operation, fmt.Sprintf("embedding dimension mismatch: want %d, got %d", want, got)).
		WithDetails(map[string]any{"want": want, "got": got})
}
