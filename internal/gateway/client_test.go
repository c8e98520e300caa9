package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domainErrors "github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.GatewayConfig {
	return config.GatewayConfig{
		Enabled:        true,
		APIKey:         "K",
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		UserAgent:      "paygate-test/1.0",
	}
}

func TestValidateToken_Success(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"abc123","payment":500,"routing_from":"A","routing_to":"B","auth_key":"K","sandbox":false,"token_expired":false}`))
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)
	result, err := c.ValidateToken(context.Background(), "abc123", false)
	require.NoError(t, err)

	assert.Equal(t, "/validate/abc123", gotPath)
	assert.Equal(t, "paygate-test/1.0", gotUA)
	assert.Equal(t, "abc123", result.Token)
	assert.Equal(t, int64(500), result.PaymentAmount)
	assert.Equal(t, "A", result.RoutingFrom)
	assert.Equal(t, "B", result.RoutingTo)
	assert.False(t, result.IsSandbox)
}

func TestValidateToken_StrictPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"token":"abc123","payment":500,"auth_key":"K"}`))
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)
	_, err := c.ValidateToken(context.Background(), "abc123", true)
	require.NoError(t, err)
	assert.Equal(t, "/validate/abc123/strict", gotPath)
}

func TestValidateToken_InvalidFormat_NoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)

	_, err := c.ValidateToken(context.Background(), "abc 123", false)
	assert.ErrorIs(t, err, domainErrors.ErrInvalidFormat)

	_, err = c.ValidateToken(context.Background(), "", false)
	assert.ErrorIs(t, err, domainErrors.ErrMissingToken)

	assert.Equal(t, int64(0), calls.Load())
}

func TestValidateToken_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)
	_, err := c.ValidateToken(context.Background(), "deadtoken", false)
	assert.ErrorIs(t, err, domainErrors.ErrTokenNotFound)
}

func TestValidateToken_ProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)
	_, err := c.ValidateToken(context.Background(), "abc123", false)
	assert.ErrorIs(t, err, domainErrors.ErrProviderRateLimited)
}

func TestValidateToken_AuthKeyMismatch(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong key", `{"token":"abc123","payment":500,"auth_key":"WRONG"}`},
		{"missing key", `{"token":"abc123","payment":500}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewBankClient(testConfig(srv.URL), nil)
			_, err := c.ValidateToken(context.Background(), "abc123", false)
			assert.ErrorIs(t, err, domainErrors.ErrAuthKeyMismatch)
		})
	}
}

func TestValidateToken_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)
	_, err := c.ValidateToken(context.Background(), "abc123", false)
	assert.ErrorIs(t, err, domainErrors.ErrMalformedResponse)
}

func TestValidateToken_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c := NewBankClient(testConfig(srv.URL), nil)
	_, err := c.ValidateToken(context.Background(), "abc123", false)
	require.ErrorIs(t, err, domainErrors.ErrUnexpectedStatus)

	var statusErr *domainErrors.ProviderStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "upstream exploded", statusErr.Body)
}

func TestValidateToken_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewBankClient(testConfig(srv.URL), nil)
	_, err := c.ValidateToken(context.Background(), "abc123", false)
	assert.ErrorIs(t, err, domainErrors.ErrTransport)
}

func TestValidateToken_GatewayDisabled(t *testing.T) {
	cfg := testConfig("https://example.test")
	cfg.Enabled = false

	c := NewBankClient(cfg, nil)
	_, err := c.ValidateToken(context.Background(), "abc123", false)
	assert.ErrorIs(t, err, domainErrors.ErrGatewayDisabled)
}

func TestPaymentRedirectURL(t *testing.T) {
	c := NewBankClient(testConfig("https://webgate.bank.example/"), nil)

	o := &order.Order{ID: 42, TotalAmount: 500}
	u, err := c.PaymentRedirectURL(o)
	require.NoError(t, err)
	assert.Equal(t, "https://webgate.bank.example/gateway/K/0/500/", u)
}

func TestPaymentRedirectURL_CoercesAmountToPositive(t *testing.T) {
	c := NewBankClient(testConfig("https://webgate.bank.example"), nil)

	o := &order.Order{ID: 42, TotalAmount: 0}
	u, err := c.PaymentRedirectURL(o)
	require.NoError(t, err)
	assert.Equal(t, "https://webgate.bank.example/gateway/K/0/1/", u)
}

func TestPaymentRedirectURL_Disabled(t *testing.T) {
	cfg := testConfig("https://webgate.bank.example")
	cfg.APIKey = ""

	c := NewBankClient(cfg, nil)
	_, err := c.PaymentRedirectURL(&order.Order{ID: 1, TotalAmount: 100})
	assert.ErrorIs(t, err, domainErrors.ErrGatewayDisabled)
}
