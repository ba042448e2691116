package propria

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	dup := NewDuplicateIdentifierError("template", "employee_name")
	assert.Equal(t, ErrorTypeConflict, dup.Type)
	assert.Equal(t, ErrCodeDuplicateIdentifier, dup.Code)
	assert.Contains(t, dup.Message, "employee_name")
	assert.Equal(t, "template", dup.Details["collection"])

	nf := NewNotFoundError("form", "onboarding")
	assert.Equal(t, ErrorTypeNotFound, nf.Type)
	assert.Contains(t, nf.Error(), "NOT_FOUND")

	ref := NewInvalidTemplateReferenceError("ghost")
	assert.Equal(t, ErrorTypeReference, ref.Type)
	assert.Equal(t, "ghost", ref.Details["template_identifier"])

	join := NewJoinMismatchError("dangling reference")
	assert.Equal(t, ErrCodeJoinMismatch, join.Code)

	fanOut := NewPartialFanOutError(2, 5, errors.New("boom"))
	assert.Equal(t, 2, fanOut.Details["forms_touched"])
	assert.Equal(t, 5, fanOut.Details["forms_total"])
	assert.EqualError(t, fanOut.Unwrap(), "boom")
}

func TestErrorCheckersSeeThroughWrapping(t *testing.T) {
	base := NewNotFoundError("property", "abc")
	wrapped := fmt.Errorf("loading property: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsDuplicateIdentifier(wrapped))
	assert.False(t, IsNotFound(errors.New("plain")))

	assert.True(t, IsValidationError(NewValidationError("name", "name is required")))
	assert.True(t, IsValidationError(NewValueSchemaViolationError("rating", errors.New("not a number"))))
	assert.True(t, IsInvalidReference(NewInvalidPropertyReferenceError("abc")))
	assert.True(t, IsJoinMismatch(NewJoinMismatchError("mismatch")))
}

func TestWithDetailAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternalError("store unavailable", nil).
		WithCause(cause).
		WithDetail("attempt", 3)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, 3, err.Details["attempt"])
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", NewNotFoundError("template", "x"), http.StatusNotFound},
		{"duplicate", NewDuplicateIdentifierError("form", "x"), http.StatusBadRequest},
		{"validation", NewValidationError("name", "required"), http.StatusBadRequest},
		{"bad reference", NewInvalidTemplateReferenceError("x"), http.StatusBadRequest},
		{"join mismatch", NewJoinMismatchError("x"), http.StatusConflict},
		{"internal", NewInternalError("x", nil), http.StatusInternalServerError},
		{"transaction", NewTransactionError("x", nil), http.StatusInternalServerError},
		{"plain error", errors.New("x"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("ctx: %w", NewNotFoundError("form", "x")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
