package controller

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/storekit/paygate/internal/infrastructure/config"
	"github.com/storekit/paygate/internal/infrastructure/observability"
	"github.com/storekit/paygate/internal/logsink"
	"github.com/storekit/paygate/internal/ratelimit"
	"github.com/storekit/paygate/internal/service"
)

const (
	callbackModule = "callback_endpoint"
	callbackAction = "payment_callback"

	rateLimitedMessage = "Too many payment attempts. Please wait a minute and try again."
)

// CallbackController handles the provider's return redirect. It is a
// browser-facing endpoint: every path out of it is a redirect back to
// the storefront, never a JSON error.
type CallbackController struct {
	reconciler *service.PaymentReconciler
	limiter    ratelimit.Limiter
	sink       logsink.Sink
	metrics    *observability.Metrics
	store      config.StoreConfig
}

func NewCallbackController(
	reconciler *service.PaymentReconciler,
	limiter ratelimit.Limiter,
	sink logsink.Sink,
	metrics *observability.Metrics,
	store config.StoreConfig,
) *CallbackController {
	return &CallbackController{
		reconciler: reconciler,
		limiter:    limiter,
		sink:       sink,
		metrics:    metrics,
		store:      store,
	}
}

// HandleCallback handles GET /payments/callback?token=...
func (h *CallbackController) HandleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	sess := sessionFromRequest(r)
	t := r.URL.Query().Get("token")

	// The rate-limit gate comes before any token or order work. The
	// limiter itself fails open; only an explicit "no" stops the flow.
	if !h.limiter.Allow(ctx, sess.Actor(), callbackAction) {
		if h.metrics != nil {
			h.metrics.RateLimitRejections.Inc()
		}
		h.sink.Append(ctx, logsink.Entry{
			Module:  callbackModule,
			Event:   "rate_limit",
			Message: "callback rejected by rate limiter",
			Success: false,
			Context: map[string]any{"actor": sess.Actor()},
		})
		h.observe("rate_limited", start)
		h.redirectCheckout(w, r, rateLimitedMessage)
		return
	}

	outcome := h.reconciler.Reconcile(ctx, t, sess)
	h.observe(outcomeLabel(outcome), start)

	switch {
	case outcome.Paid:
		h.redirectReceipt(w, r, outcome.Order.ID, url.Values{"payment": {"success"}})
	case outcome.Reason == service.ReasonAlreadyProcessed && outcome.Order != nil:
		h.redirectReceipt(w, r, outcome.Order.ID, nil)
	case outcome.Reason == service.ReasonAmountMismatch && outcome.Order != nil:
		h.redirectReceipt(w, r, outcome.Order.ID, url.Values{
			"payment": {"review"},
			"message": {outcome.Reason.UserMessage()},
		})
	default:
		h.redirectCheckout(w, r, outcome.Reason.UserMessage())
	}
}

func (h *CallbackController) redirectReceipt(w http.ResponseWriter, r *http.Request, orderID int64, params url.Values) {
	target := fmt.Sprintf(h.store.ReceiptURLTemplate, orderID)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *CallbackController) redirectCheckout(w http.ResponseWriter, r *http.Request, message string) {
	target := h.store.CheckoutURL
	if message != "" {
		target += "?" + url.Values{"payment_error": {message}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *CallbackController) observe(outcome string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.CallbacksTotal.WithLabelValues(outcome).Inc()
	h.metrics.CallbackDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func outcomeLabel(out service.Outcome) string {
	if out.Paid {
		return "paid"
	}
	return string(out.Reason)
}
