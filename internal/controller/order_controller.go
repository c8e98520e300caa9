package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	domainErrors "github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/gateway"
	"github.com/storekit/paygate/internal/middleware"
	"github.com/storekit/paygate/internal/service"
	"github.com/storekit/paygate/internal/session"
	"github.com/storekit/paygate/internal/settings"
)

// bindingTTL is how long a checkout may sit at the provider before the
// session loses its claim on the order.
const bindingTTL = time.Hour

// OrderStore is order.Store plus the admin-facing operations the
// reconciler itself never needs.
type OrderStore interface {
	order.Store
	Create(ctx context.Context, o *order.Order) error
	Notes(ctx context.Context, id int64) ([]*order.Note, error)
}

// OrderController handles order creation, lookup, checkout handoff and
// manual reprocessing.
type OrderController struct {
	orders     OrderStore
	bindings   session.BindingStore
	gateway    gateway.Gateway
	reconciler *service.PaymentReconciler
	settings   settings.Store
}

func NewOrderController(
	orders OrderStore,
	bindings session.BindingStore,
	gw gateway.Gateway,
	reconciler *service.PaymentReconciler,
	settingsStore settings.Store,
) *OrderController {
	return &OrderController{
		orders:     orders,
		bindings:   bindings,
		gateway:    gw,
		reconciler: reconciler,
		settings:   settingsStore,
	}
}

// Create handles POST /api/v1/orders
func (h *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var owner *string
	if req.OwnerUserID != "" {
		owner = &req.OwnerUserID
	} else if userID, ok := middleware.GetUserID(r.Context()); ok && userID != "" {
		owner = &userID
	}

	o, err := order.NewOrder(0, req.TotalAmount, req.Currency, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.orders.Create(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, FromOrder(o))
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, FromOrder(o))
}

// GetNotes handles GET /api/v1/orders/{id}/notes
func (h *OrderController) GetNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if _, err := h.orders.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	notes, err := h.orders.Notes(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*NoteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, FromNote(n))
	}
	writeSuccess(w, http.StatusOK, resp)
}

// Pay handles POST /api/v1/orders/{id}/pay: it binds the caller's
// session to the order and hands back the provider redirect.
func (h *OrderController) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	// Operator kill switch, checked before anything touches the provider.
	if !h.settings.GetBool(r.Context(), settings.KeyPaymentsEnabled, true) {
		writeError(w, domainErrors.ErrGatewayDisabled)
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !o.IsEligibleForPayment() {
		writeError(w, domainErrors.ErrAlreadyProcessed)
		return
	}
	if userID, authed := middleware.GetUserID(r.Context()); authed && !o.IsOwnedBy(userID) {
		writeError(w, domainErrors.ErrOwnershipMismatch)
		return
	}

	redirectURL, err := h.gateway.PaymentRedirectURL(o)
	if err != nil {
		writeError(w, err)
		return
	}

	sess := ensureSession(w, r)
	b := session.Binding{OrderID: o.ID, SecurityToken: uuid.NewString()}
	if err := h.bindings.Put(r.Context(), sess.ID, b, bindingTTL); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, PayResponse{RedirectURL: redirectURL})
}

// Reprocess handles POST /api/v1/orders/{id}/reprocess: support runs
// the reconciliation again with a token recovered from provider logs.
// The synthetic session is anonymous so the ownership gate treats the
// run like the customer's own browser would have been treated.
func (h *OrderController) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req ReprocessRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.orders.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	sid := "reprocess-" + uuid.NewString()
	if err := h.bindings.Put(r.Context(), sid, session.Binding{OrderID: id}, 5*time.Minute); err != nil {
		writeError(w, err)
		return
	}
	defer h.bindings.Clear(r.Context(), sid)

	outcome := h.reconciler.Reconcile(r.Context(), req.Token, session.Session{ID: sid})

	resp := ReprocessResponse{Paid: outcome.Paid, Reason: string(outcome.Reason)}
	if outcome.Order != nil {
		resp.Order = FromOrder(outcome.Order)
	}
	writeSuccess(w, http.StatusOK, resp)
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, APIResponse{Error: &APIError{
			Message: "invalid order id", Code: "invalid_id",
		}})
		return 0, false
	}
	return id, true
}
