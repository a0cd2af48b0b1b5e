package engine

import (
	"errors"
	"fmt"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// ErrorClass tells callers whether re-running a reconciliation can help.
type ErrorClass string

const (
	// ErrorClassTransient covers failures of the session with the daemon:
	// vtysh exiting non-zero, a dropped SSH connection, a timeout.
	// Re-running the reconciliation converges idempotently.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassConflict covers desired state that contradicts itself,
	// such as two desired instances with the same identity.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent covers caller contract violations and policy
	// denials. Re-running without changing the input fails the same way.
	ErrorClassPermanent ErrorClass = "permanent"
)

// EngineError is a classified error with resource context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`

	// Resource is the instance identifier, e.g. "bgp_router[65000]".
	Resource string `json:"resource,omitempty"`

	// Operation is the planned operation when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details carries extra context such as the offending property.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		msg += fmt.Sprintf(" (resource=%s, operation=%s)", e.Resource, e.Operation)
	case e.Resource != "":
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches on class and code so callers can compare against sentinels.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// NewInvalidPropertyValueError reports a value outside its property's type
// domain, detected while rendering commands.
func NewInvalidPropertyValueError(in *schema.Instance, err error) *EngineError {
	e := NewPermanentError("invalid property value", err).
		WithCode(ErrCodeInvalidPropertyValue).
		WithResource(in.ID())
	var ve *schema.ValueError
	if errors.As(err, &ve) {
		e.WithDetail("property", ve.Property).WithDetail("expected", ve.Expected.String())
	}
	return e
}

// WithResource adds resource context to an error.
func (e *EngineError) WithResource(resourceID string) *EngineError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	return classOf(err) == ErrorClassTransient
}

// IsConflict returns true if the error is classified as a conflict.
func IsConflict(err error) bool {
	return classOf(err) == ErrorClassConflict
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	return classOf(err) == ErrorClassPermanent
}

// IsRetryable returns true if re-running the reconciliation may succeed.
func IsRetryable(err error) bool {
	return IsTransient(err)
}

// HasCode reports whether err carries an EngineError with the given code.
func HasCode(err error, code string) bool {
	var e *EngineError
	return errors.As(err, &e) && e.Code == code
}

func classOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Error codes.
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidPropertyValue = "INVALID_PROPERTY_VALUE"
	ErrCodeUnknownKind          = "UNKNOWN_KIND"
	ErrCodeDuplicateResource    = "DUPLICATE_RESOURCE"
	ErrCodeMissingParent        = "MISSING_PARENT"
	ErrCodeExecutionFailed      = "EXECUTION_FAILED"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodePolicyDenied         = "POLICY_DENIED"
	ErrCodeCycle                = "DEPENDENCY_CYCLE"
	ErrCodeInternal             = "INTERNAL_ERROR"
)
