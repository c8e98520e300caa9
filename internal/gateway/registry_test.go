package gateway

import (
	"context"
	"testing"

	domainErrors "github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/token"
	"github.com/storekit/paygate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Get(t *testing.T) {
	gw := testutil.NewMockGateway()
	r := NewRegistry(gw)

	got, err := r.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", got.Name())

	_, err = r.Get("nope")
	assert.Error(t, err)
}

func TestRegistry_BreakerOpensOnTransportErrors(t *testing.T) {
	gw := testutil.NewMockGateway()
	gw.ValidateFunc = func(context.Context, string, bool) (*token.ValidationResult, error) {
		return nil, domainErrors.ErrTransport
	}

	r := NewRegistry(gw)
	wrapped, err := r.Get("mock")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := wrapped.ValidateToken(context.Background(), "abc123", false)
		assert.ErrorIs(t, err, domainErrors.ErrTransport)
	}

	// Circuit is open now; the provider must not be called again.
	_, err = wrapped.ValidateToken(context.Background(), "abc123", false)
	assert.ErrorIs(t, err, domainErrors.ErrTransport)
	assert.Equal(t, 10, gw.ValidateCalls())
}

func TestRegistry_TokenErrorsDoNotTrip(t *testing.T) {
	gw := testutil.NewMockGateway()
	gw.ValidateFunc = func(context.Context, string, bool) (*token.ValidationResult, error) {
		return nil, domainErrors.ErrTokenNotFound
	}

	r := NewRegistry(gw)
	wrapped, err := r.Get("mock")
	require.NoError(t, err)

	// A flood of unknown tokens is customer input, not provider
	// sickness; the circuit must stay closed.
	for i := 0; i < 25; i++ {
		_, err := wrapped.ValidateToken(context.Background(), "deadtoken", false)
		assert.ErrorIs(t, err, domainErrors.ErrTokenNotFound)
	}
	assert.Equal(t, 25, gw.ValidateCalls())
}
