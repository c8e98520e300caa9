package controller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	domainErrors "github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/domain/token"
	"github.com/storekit/paygate/internal/infrastructure/config"
	"github.com/storekit/paygate/internal/service"
	"github.com/storekit/paygate/internal/session"
	"github.com/storekit/paygate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callbackFixture struct {
	handler  *CallbackController
	gateway  *testutil.MockGateway
	orders   *testutil.MockOrderStore
	bindings *testutil.MockBindingStore
	limiter  *testutil.MemoryLimiter
	sink     *testutil.RecordingSink
}

func newCallbackFixture() *callbackFixture {
	gw := testutil.NewMockGateway()
	gw.ValidateFunc = func(_ context.Context, tok string, _ bool) (*token.ValidationResult, error) {
		return &token.ValidationResult{Token: tok, PaymentAmount: 500, AuthKey: "K"}, nil
	}

	orders := testutil.NewMockOrderStore()
	bindings := testutil.NewMockBindingStore()
	limiter := testutil.NewMemoryLimiter(5, time.Minute)
	sink := testutil.NewRecordingSink()

	validator := service.NewTokenValidator(gw, testutil.NewMemoryTokenCache(), 5*time.Minute, nil, zerolog.Nop())
	reconciler := service.NewPaymentReconciler(validator, orders, bindings, sink, nil, zerolog.Nop())

	store := config.StoreConfig{
		CheckoutURL:        "/checkout",
		ReceiptURLTemplate: "/orders/%d/receipt",
	}

	return &callbackFixture{
		handler:  NewCallbackController(reconciler, limiter, sink, nil, store),
		gateway:  gw,
		orders:   orders,
		bindings: bindings,
		limiter:  limiter,
		sink:     sink,
	}
}

func (f *callbackFixture) seedPendingOrder(t *testing.T, id, amount int64) {
	t.Helper()
	o, err := order.NewOrder(id, amount, "EUR", nil)
	require.NoError(t, err)
	f.orders.AddOrder(o)
	require.NoError(t, f.bindings.Put(context.Background(), "sess-1", session.Binding{OrderID: id}, time.Hour))
}

func callbackRequest(tok string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/payments/callback?token="+tok, nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess-1"})
	req.RemoteAddr = "203.0.113.9:4711"
	return req
}

func redirectTarget(t *testing.T, rec *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return u
}

func TestHandleCallback_SuccessRedirectsToReceipt(t *testing.T) {
	f := newCallbackFixture()
	f.seedPendingOrder(t, 42, 500)

	rec := httptest.NewRecorder()
	f.handler.HandleCallback(rec, callbackRequest("abc123"))

	target := redirectTarget(t, rec)
	assert.Equal(t, "/orders/42/receipt", target.Path)
	assert.Equal(t, "success", target.Query().Get("payment"))

	assert.Equal(t, order.StatusPaid, f.orders.GetOrderByID(42).Status)
}

func TestHandleCallback_FailureRedirectsToCheckout(t *testing.T) {
	f := newCallbackFixture()
	f.seedPendingOrder(t, 42, 500)
	f.gateway.ValidateFunc = func(_ context.Context, _ string, _ bool) (*token.ValidationResult, error) {
		return nil, domainErrors.ErrTokenNotFound
	}

	rec := httptest.NewRecorder()
	f.handler.HandleCallback(rec, callbackRequest("deadtoken"))

	target := redirectTarget(t, rec)
	assert.Equal(t, "/checkout", target.Path)
	assert.NotEmpty(t, target.Query().Get("payment_error"))

	assert.Equal(t, order.StatusPending, f.orders.GetOrderByID(42).Status)
}

func TestHandleCallback_AmountMismatchRedirectsToReview(t *testing.T) {
	f := newCallbackFixture()
	f.seedPendingOrder(t, 42, 750) // provider reports 500

	rec := httptest.NewRecorder()
	f.handler.HandleCallback(rec, callbackRequest("abc123"))

	target := redirectTarget(t, rec)
	assert.Equal(t, "/orders/42/receipt", target.Path)
	assert.Equal(t, "review", target.Query().Get("payment"))

	assert.Equal(t, order.StatusOnHold, f.orders.GetOrderByID(42).Status)
}

func TestHandleCallback_ReplayRedirectsToReceipt(t *testing.T) {
	f := newCallbackFixture()
	f.seedPendingOrder(t, 42, 500)

	rec := httptest.NewRecorder()
	f.handler.HandleCallback(rec, callbackRequest("abc123"))
	require.Equal(t, http.StatusFound, rec.Code)

	// Provider retries the redirect; binding restored as it would be if
	// the browser re-hit the link within the TTL.
	require.NoError(t, f.bindings.Put(context.Background(), "sess-1", session.Binding{OrderID: 42}, time.Hour))

	rec = httptest.NewRecorder()
	f.handler.HandleCallback(rec, callbackRequest("abc123"))

	target := redirectTarget(t, rec)
	assert.Equal(t, "/orders/42/receipt", target.Path)
	assert.Equal(t, 1, len(f.orders.NotesText(42)), "replay must not duplicate side effects")
}

func TestHandleCallback_RateLimited(t *testing.T) {
	f := newCallbackFixture()
	f.seedPendingOrder(t, 42, 500)
	f.gateway.ValidateFunc = func(_ context.Context, _ string, _ bool) (*token.ValidationResult, error) {
		return nil, domainErrors.ErrTransport
	}

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = httptest.NewRecorder()
		f.handler.HandleCallback(last, callbackRequest("abc123"))
	}

	target := redirectTarget(t, last)
	assert.Equal(t, "/checkout", target.Path)
	assert.Equal(t, rateLimitedMessage, target.Query().Get("payment_error"))

	// The sixth attempt never reached the provider.
	assert.Equal(t, 5, f.gateway.ValidateCalls())
}

func TestHandleCallback_MissingToken(t *testing.T) {
	f := newCallbackFixture()
	f.seedPendingOrder(t, 42, 500)

	rec := httptest.NewRecorder()
	f.handler.HandleCallback(rec, callbackRequest(""))

	target := redirectTarget(t, rec)
	assert.Equal(t, "/checkout", target.Path)
	assert.Equal(t, 0, f.gateway.ValidateCalls())
}
