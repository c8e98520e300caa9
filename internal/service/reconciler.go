package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/domain/token"
	"github.com/storekit/paygate/internal/infrastructure/observability"
	"github.com/storekit/paygate/internal/logsink"
	"github.com/storekit/paygate/internal/session"
)

const reconcileModule = "payment_reconciler"

// Reason classifies why a reconciliation did not end in a paid order.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMissingToken        Reason = "missing_token"
	ReasonInvalidFormat       Reason = "invalid_format"
	ReasonProviderUnreachable Reason = "provider_unreachable"
	ReasonTokenNotFound       Reason = "token_not_found"
	ReasonProviderError       Reason = "provider_error"
	ReasonProviderThrottled   Reason = "provider_throttled"
	ReasonGatewayDisabled     Reason = "gateway_disabled"
	ReasonOrderNotFound       Reason = "order_not_found"
	ReasonAlreadyProcessed    Reason = "already_processed"
	ReasonOwnershipMismatch   Reason = "ownership_mismatch"
	ReasonAmountMismatch      Reason = "amount_mismatch"
	ReasonInternal            Reason = "internal_error"
)

// userMessages is the closed set of customer-facing failure texts. They
// deliberately reveal nothing about provider internals or other orders.
var userMessages = map[Reason]string{
	ReasonMissingToken:        "Payment confirmation is missing required information. Please contact support if you were charged.",
	ReasonInvalidFormat:       "Payment confirmation is missing required information. Please contact support if you were charged.",
	ReasonProviderUnreachable: "We could not confirm your payment right now. If you were charged, it will be reconciled shortly.",
	ReasonTokenNotFound:       "We could not verify this payment. Please contact support if you were charged.",
	ReasonProviderError:       "We could not confirm your payment right now. If you were charged, it will be reconciled shortly.",
	ReasonProviderThrottled:   "We could not confirm your payment right now. If you were charged, it will be reconciled shortly.",
	ReasonGatewayDisabled:     "Online payment is temporarily unavailable.",
	ReasonOrderNotFound:       "We could not match this payment to an order. Please contact support if you were charged.",
	ReasonOwnershipMismatch:   "This payment could not be applied to your account.",
	ReasonAmountMismatch:      "Your payment was received but did not match the order total. Our team will review it shortly.",
	ReasonInternal:            "Something went wrong while confirming your payment. Please contact support if you were charged.",
}

// UserMessage returns the customer-facing text for a rejection reason.
func (r Reason) UserMessage() string {
	if msg, ok := userMessages[r]; ok {
		return msg
	}
	return userMessages[ReasonInternal]
}

// Outcome is the result of one reconciliation attempt.
type Outcome struct {
	Paid   bool
	Order  *order.Order
	Reason Reason
}

// PaymentReconciler drives the callback state machine: validate the
// token fresh, locate the order through the session binding, run the
// idempotency, ownership and amount gates, then finalize exactly once.
type PaymentReconciler struct {
	validator *TokenValidator
	orders    order.Store
	bindings  session.BindingStore
	sink      logsink.Sink
	metrics   *observability.Metrics
	logger    zerolog.Logger
	deadline  time.Duration
	tx        order.TxRunner
}

func NewPaymentReconciler(
	validator *TokenValidator,
	orders order.Store,
	bindings session.BindingStore,
	sink logsink.Sink,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *PaymentReconciler {
	return &PaymentReconciler{
		validator: validator,
		orders:    orders,
		bindings:  bindings,
		sink:      sink,
		metrics:   metrics,
		logger:    logger,
		deadline:  20 * time.Second,
	}
}

// WithTxRunner makes the finalize metadata and note writes atomic on
// stores that support transactions.
func (r *PaymentReconciler) WithTxRunner(tx order.TxRunner) *PaymentReconciler {
	r.tx = tx
	return r
}

// Reconcile processes one provider callback for the given session.
// Every step emits one sink entry; the full token never appears in any
// of them.
func (r *PaymentReconciler) Reconcile(ctx context.Context, t string, sess session.Session) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	redacted := token.Redact(t)

	// Step 1: validate the token against the provider. The cache is
	// bypassed so the money decision never rides on a stale or
	// differently-scoped entry.
	result, err := r.validator.Validate(ctx, t, true, true)
	if err != nil {
		reason := classify(err)
		r.log(ctx, "token_validation", false, map[string]any{
			"token":  redacted,
			"reason": string(reason),
			"error":  err.Error(),
		})
		return r.reject(reason, nil)
	}
	r.log(ctx, "token_validation", true, map[string]any{
		"token":   redacted,
		"amount":  result.PaymentAmount,
		"sandbox": result.IsSandbox,
		"expired": result.IsExpired,
	})

	// Step 2: locate the order through the session binding.
	binding, err := r.bindings.Get(ctx, sess.ID)
	if err != nil {
		r.log(ctx, "order_lookup", false, map[string]any{"error": err.Error()})
		return r.reject(ReasonInternal, nil)
	}
	if binding == nil {
		r.log(ctx, "order_lookup", false, map[string]any{"reason": "no session binding"})
		return r.reject(ReasonOrderNotFound, nil)
	}

	o, err := r.orders.Get(ctx, binding.OrderID)
	if err != nil {
		if stderrors.Is(err, errors.ErrOrderNotFound) {
			r.log(ctx, "order_lookup", false, map[string]any{
				"order_id": binding.OrderID,
				"reason":   "bound order missing",
			})
			return r.reject(ReasonOrderNotFound, nil)
		}
		r.log(ctx, "order_lookup", false, map[string]any{
			"order_id": binding.OrderID,
			"error":    err.Error(),
		})
		return r.reject(ReasonInternal, nil)
	}
	r.log(ctx, "order_lookup", true, map[string]any{
		"order_id": o.ID,
		"status":   string(o.Status),
	})

	// Step 3: idempotency. A replayed callback for a finished order is
	// normal, not an error.
	if !o.IsEligibleForPayment() {
		r.sink.Append(ctx, logsink.Entry{
			Module:  reconcileModule,
			Event:   "idempotency_check",
			Message: "order already processed, treating callback as replay",
			Success: true,
			Context: map[string]any{"order_id": o.ID, "status": string(o.Status)},
		})
		return Outcome{Order: o, Reason: ReasonAlreadyProcessed}
	}

	// Step 4: ownership. Only rejects when the request is authenticated
	// as someone other than the order's owner; guest sessions completing
	// their own checkout pass through.
	if o.OwnerUserID != nil && sess.UserID != "" && sess.UserID != *o.OwnerUserID {
		r.log(ctx, "ownership_check", false, map[string]any{
			"order_id": o.ID,
			"user_id":  sess.UserID,
		})
		return r.reject(ReasonOwnershipMismatch, nil)
	}

	// Step 5: amount. A mismatch means money moved but not the right
	// amount, so the order is parked for a human instead of failed.
	if result.PaymentAmount != o.TotalAmount {
		return r.holdForAmountMismatch(ctx, o, result)
	}
	r.log(ctx, "amount_check", true, map[string]any{
		"order_id": o.ID,
		"amount":   result.PaymentAmount,
	})

	// Step 6: finalize. The paid transition is the compare-and-set gate;
	// whoever wins it performs the side effects exactly once.
	return r.finalize(ctx, o, t, sess, result)
}

func (r *PaymentReconciler) holdForAmountMismatch(ctx context.Context, o *order.Order, result *token.ValidationResult) Outcome {
	updated, err := r.orders.UpdateStatus(ctx, o.ID, order.StatusOnHold, order.StatusPending)
	if err != nil {
		r.log(ctx, "amount_check", false, map[string]any{"order_id": o.ID, "error": err.Error()})
		return r.reject(ReasonInternal, o)
	}
	if !updated {
		// Lost the race to another callback; treat as replay.
		return Outcome{Order: o, Reason: ReasonAlreadyProcessed}
	}

	note := fmt.Sprintf("Payment amount mismatch: provider reported %d, order total is %d. Order placed on hold for manual review.",
		result.PaymentAmount, o.TotalAmount)
	if err := r.orders.AddNote(ctx, o.ID, note); err != nil {
		r.logger.Error().Err(err).Int64("order_id", o.ID).Msg("failed to record amount mismatch note")
	}

	r.log(ctx, "amount_check", false, map[string]any{
		"order_id":        o.ID,
		"provider_amount": result.PaymentAmount,
		"order_amount":    o.TotalAmount,
	})
	r.countFinalized("on_hold")

	o.Status = order.StatusOnHold
	return Outcome{Order: o, Reason: ReasonAmountMismatch}
}

func (r *PaymentReconciler) finalize(ctx context.Context, o *order.Order, t string, sess session.Session, result *token.ValidationResult) Outcome {
	txID := newTransactionID(t)

	paid, err := r.orders.MarkPaid(ctx, o.ID, txID)
	if err != nil {
		r.log(ctx, "finalize", false, map[string]any{"order_id": o.ID, "error": err.Error()})
		return r.reject(ReasonInternal, o)
	}
	if !paid {
		// Another callback finalized this order between our status read
		// and the paid transition.
		r.sink.Append(ctx, logsink.Entry{
			Module:  reconcileModule,
			Event:   "finalize",
			Message: "order finalized concurrently, treating callback as replay",
			Success: true,
			Context: map[string]any{"order_id": o.ID},
		})
		return Outcome{Order: o, Reason: ReasonAlreadyProcessed}
	}

	// The full token goes into order metadata (the system of record needs
	// it for support escalations); only log output is redacted.
	meta := map[string]any{
		order.MetaPaymentToken:  t,
		order.MetaRoutingFrom:   result.RoutingFrom,
		order.MetaRoutingTo:     result.RoutingTo,
		order.MetaPaymentAmount: result.PaymentAmount,
		order.MetaPaymentTime:   time.Now().UTC().Format(time.RFC3339),
		order.MetaTransactionID: txID,
		order.MetaIsSandbox:     result.IsSandbox,
	}
	note := fmt.Sprintf("Payment of %d confirmed via gateway callback (transaction %s).", result.PaymentAmount, txID)
	if result.IsSandbox {
		note += " Sandbox transaction."
	}

	if err := r.recordPayment(ctx, o.ID, meta, note); err != nil {
		// The order is already paid; losing metadata is recoverable from
		// the event log, so this does not fail the callback.
		r.logger.Error().Err(err).Int64("order_id", o.ID).Msg("failed to record payment details")
	}

	if err := r.bindings.Clear(ctx, sess.ID); err != nil {
		r.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to clear session binding")
	}
	r.validator.Invalidate(ctx, t)

	r.log(ctx, "finalize", true, map[string]any{
		"order_id":       o.ID,
		"transaction_id": txID,
		"amount":         result.PaymentAmount,
	})
	r.countFinalized("paid")

	o.Status = order.StatusPaid
	o.TransactionID = &txID
	return Outcome{Paid: true, Order: o}
}

// recordPayment writes the finalize metadata and note, in one
// transaction when the store supports it.
func (r *PaymentReconciler) recordPayment(ctx context.Context, orderID int64, meta map[string]any, note string) error {
	write := func(ctx context.Context) error {
		if err := r.orders.SetMetadata(ctx, orderID, meta); err != nil {
			return err
		}
		return r.orders.AddNote(ctx, orderID, note)
	}
	if r.tx != nil {
		return r.tx.WithTransaction(ctx, write)
	}
	return write(ctx)
}

func (r *PaymentReconciler) reject(reason Reason, o *order.Order) Outcome {
	r.countFinalized("rejected")
	return Outcome{Order: o, Reason: reason}
}

func (r *PaymentReconciler) log(ctx context.Context, event string, success bool, fields map[string]any) {
	msg := event + " ok"
	if !success {
		msg = event + " failed"
	}
	r.sink.Append(ctx, logsink.Entry{
		Module:  reconcileModule,
		Event:   event,
		Message: msg,
		Success: success,
		Context: fields,
	})
}

func (r *PaymentReconciler) countFinalized(result string) {
	if r.metrics != nil {
		r.metrics.OrdersFinalized.WithLabelValues(result).Inc()
	}
}

// classify maps a validation error to its rejection reason.
func classify(err error) Reason {
	switch {
	case stderrors.Is(err, errors.ErrMissingToken):
		return ReasonMissingToken
	case stderrors.Is(err, errors.ErrInvalidFormat):
		return ReasonInvalidFormat
	case stderrors.Is(err, errors.ErrTransport):
		return ReasonProviderUnreachable
	case stderrors.Is(err, errors.ErrTokenNotFound):
		return ReasonTokenNotFound
	case stderrors.Is(err, errors.ErrProviderRateLimited):
		return ReasonProviderThrottled
	case stderrors.Is(err, errors.ErrGatewayDisabled):
		return ReasonGatewayDisabled
	case stderrors.Is(err, errors.ErrAuthKeyMismatch),
		stderrors.Is(err, errors.ErrMalformedResponse),
		stderrors.Is(err, errors.ErrUnexpectedStatus):
		return ReasonProviderError
	default:
		return ReasonInternal
	}
}

// newTransactionID derives a stable-prefix, unique transaction id. The
// token prefix makes the provider leg greppable without storing the
// full secret.
func newTransactionID(t string) string {
	prefix := t
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("txn_%s_%s", prefix, id)
}
