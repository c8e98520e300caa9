package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	e := NewDomainError("amount_mismatch", "amounts disagree", ErrAmountMismatch)
	assert.Equal(t, "amounts disagree: payment amount does not match order total", e.Error())

	bare := NewDomainError("order_not_found", "no binding for session", nil)
	assert.Equal(t, "no binding for session", bare.Error())
}

func TestDomainError_Unwrap(t *testing.T) {
	e := NewDomainError("already_processed", "order settled", ErrAlreadyProcessed)
	assert.ErrorIs(t, e, ErrAlreadyProcessed)
}

func TestProviderStatusError(t *testing.T) {
	e := NewProviderStatusError(502, []byte("bad gateway"))
	assert.ErrorIs(t, e, ErrUnexpectedStatus)
	assert.Equal(t, 502, e.StatusCode)
	assert.Equal(t, "bad gateway", e.Body)
	assert.Contains(t, e.Error(), "502")
}

func TestProviderStatusError_TruncatesBody(t *testing.T) {
	body := make([]byte, 2048)
	for i := range body {
		body[i] = 'x'
	}
	e := NewProviderStatusError(500, body)
	assert.Len(t, e.Body, 512)
}

func TestValidationError(t *testing.T) {
	e := NewValidationError("token", "must not be empty")
	assert.Equal(t, "validation failed for field token: must not be empty", e.Error())

	var ve *ValidationError
	require.True(t, errors.As(error(e), &ve))
	assert.Equal(t, "token", ve.Field)
}
