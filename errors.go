package propria

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeReference  ErrorType = "reference"
	ErrorTypeJoin       ErrorType = "join"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes surfaced to clients
const (
	ErrCodeDuplicateIdentifier       = "DUPLICATE_IDENTIFIER"
	ErrCodeNotFound                  = "NOT_FOUND"
	ErrCodeInvalidTemplateReference  = "INVALID_TEMPLATE_REFERENCE"
	ErrCodeInvalidPropertyReference  = "INVALID_PROPERTY_REFERENCE"
	ErrCodeJoinMismatch              = "JOIN_MISMATCH"
	ErrCodeValidationFailed          = "VALIDATION_FAILED"
	ErrCodeValueSchemaViolation      = "VALUE_SCHEMA_VIOLATION"
	ErrCodeInternalError             = "INTERNAL_ERROR"
	ErrCodeConnectionFailed          = "CONNECTION_FAILED"
	ErrCodeTransactionFailed         = "TRANSACTION_FAILED"
	ErrCodePartialFanOut             = "PARTIAL_FAN_OUT"
	ErrCodeSnapshotExportFailed      = "SNAPSHOT_EXPORT_FAILED"
	ErrCodeSnapshotManifestCorrupted = "SNAPSHOT_MANIFEST_CORRUPTED"
)

// PropriaError is the unified error type for all service operations.
type PropriaError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *PropriaError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *PropriaError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail to the error
func (e *PropriaError) WithDetail(key string, value any) *PropriaError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds an underlying cause to the error
func (e *PropriaError) WithCause(cause error) *PropriaError {
	e.Cause = cause
	return e
}

// NewPropriaError creates a new PropriaError
func NewPropriaError(errorType ErrorType, code, message string) *PropriaError {
	return &PropriaError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewDuplicateIdentifierError reports a create that conflicts with an
// existing unique key.
func NewDuplicateIdentifierError(collection, identifier string) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeDuplicateIdentifier,
		Message: fmt.Sprintf("%s with identifier '%s' already exists", collection, identifier),
		Details: map[string]any{
			"collection": collection,
			"identifier": identifier,
		},
	}
}

// NewNotFoundError reports a missing record by id or name.
func NewNotFoundError(collection, key string) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s '%s' not found", collection, key),
		Details: map[string]any{
			"collection": collection,
			"key":        key,
		},
	}
}

// NewInvalidTemplateReferenceError reports a property (or embedded form
// property) naming a template identifier that does not exist.
func NewInvalidTemplateReferenceError(identifier string) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeReference,
		Code:    ErrCodeInvalidTemplateReference,
		Message: fmt.Sprintf("template '%s' does not exist", identifier),
		Details: map[string]any{
			"template_identifier": identifier,
		},
	}
}

// NewInvalidPropertyReferenceError reports a form payload naming a property
// row id that does not exist.
func NewInvalidPropertyReferenceError(id string) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeReference,
		Code:    ErrCodeInvalidPropertyReference,
		Message: fmt.Sprintf("property '%s' does not exist", id),
		Details: map[string]any{
			"property_id": id,
		},
	}
}

// NewJoinMismatchError reports a unified projection that cannot resolve a
// stored record for one of a form's references.
func NewJoinMismatchError(message string) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeJoin,
		Code:    ErrCodeJoinMismatch,
		Message: message,
		Details: make(map[string]any),
	}
}

// NewValidationError creates a validation error for a specific field
func NewValidationError(field, message string) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Details: map[string]any{
			"field": field,
		},
	}
}

// NewValueSchemaViolationError reports a value rejected by opt-in template
// schema validation.
func NewValueSchemaViolationError(templateIdentifier string, cause error) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeValueSchemaViolation,
		Message: fmt.Sprintf("value does not conform to template '%s'", templateIdentifier),
		Details: map[string]any{
			"template_identifier": templateIdentifier,
		},
		Cause: cause,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewTransactionError creates a transaction error
func NewTransactionError(message string, cause error) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeTransactionFailed,
		Message: message,
		Cause:   cause,
		Details: make(map[string]any),
	}
}

// NewPartialFanOutError reports a publish fan-out that touched some forms but
// failed before reaching all of them. The write is not rolled back.
func NewPartialFanOutError(touched, total int, cause error) *PropriaError {
	return &PropriaError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodePartialFanOut,
		Message: fmt.Sprintf("property published to %d of %d forms", touched, total),
		Details: map[string]any{
			"forms_touched": touched,
			"forms_total":   total,
		},
		Cause: cause,
	}
}

// Error checking utilities

func asPropriaError(err error) (*PropriaError, bool) {
	var pe *PropriaError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool {
	pe, ok := asPropriaError(err)
	return ok && pe.Type == ErrorTypeNotFound
}

// IsDuplicateIdentifier checks if an error is a duplicate identifier error
func IsDuplicateIdentifier(err error) bool {
	pe, ok := asPropriaError(err)
	return ok && pe.Code == ErrCodeDuplicateIdentifier
}

// IsInvalidReference checks if an error is a template or property reference error
func IsInvalidReference(err error) bool {
	pe, ok := asPropriaError(err)
	return ok && pe.Type == ErrorTypeReference
}

// IsJoinMismatch checks if an error is a join mismatch error
func IsJoinMismatch(err error) bool {
	pe, ok := asPropriaError(err)
	return ok && pe.Code == ErrCodeJoinMismatch
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	pe, ok := asPropriaError(err)
	return ok && pe.Type == ErrorTypeValidation
}

// HTTPStatus maps a service error to the client-facing status code.
func HTTPStatus(err error) int {
	pe, ok := asPropriaError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch pe.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict, ErrorTypeValidation, ErrorTypeReference:
		return http.StatusBadRequest
	case ErrorTypeJoin:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
