package fakebackend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campusmarket/storefront/internal/domain"
)

type createOrderRequest struct {
	Items           []orderItemJSON `json:"items" validate:"required,min=1,dive"`
	TotalAmount     float64         `json:"totalAmount" validate:"gt=0"`
	ShippingAddress addressJSON     `json:"shippingAddress"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note"`
}

// createOrder stores a pending order after checking that the total matches
// the items. A repeated Idempotency-Key returns the order created first.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !s.decode(w, r, &req) {
		return
	}
	u := currentUser(r.Context())

	sum := decimal.Zero
	for _, it := range req.Items {
		sum = sum.Add(decimal.NewFromFloat(it.PriceAtPurchase).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !sum.Equal(decimal.NewFromFloat(req.TotalAmount)) {
		respondError(w, http.StatusBadRequest, "total_mismatch",
			fmt.Sprintf("Order total %s does not match items total %s", decimal.NewFromFloat(req.TotalAmount), sum))
		return
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		if id, ok := s.orderKeys[u.ID+"|"+key]; ok {
			respondJSON(w, http.StatusCreated, *s.orders[id])
			return
		}
	}

	now := timestamp(s.now())
	o := &orderJSON{
		ID:              uuid.NewString(),
		User:            u.ID,
		Items:           req.Items,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		OrderStatus:     string(domain.OrderStatusPending),
		PaymentStatus:   string(domain.PaymentStatusPending),
		StatusHistory:   []eventJSON{{Status: string(domain.OrderStatusPending), Note: "Order placed", Timestamp: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.orders[o.ID] = o
	s.orderSeq = append(s.orderSeq, o.ID)
	if key != "" {
		s.orderKeys[u.ID+"|"+key] = o.ID
	}
	respondJSON(w, http.StatusCreated, *o)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	s.mu.Lock()
	out := make([]orderJSON, 0)
	for _, id := range s.orderSeq {
		if o := s.orders[id]; o.User == u.ID {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) tracking(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	s.mu.Lock()
	o, ok := s.orders[chi.URLParam(r, "id")]
	var out trackingJSON
	if ok && o.User == u.ID {
		out = trackingJSON{OrderID: o.ID, OrderStatus: o.OrderStatus, Timeline: append([]eventJSON(nil), o.StatusHistory...)}
	}
	s.mu.Unlock()
	if !ok || o.User != u.ID {
		respondError(w, http.StatusNotFound, "not_found", "Order not found")
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.AdvanceOrder(chi.URLParam(r, "id"), domain.OrderStatus(req.Status), req.Note)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownOrder):
		respondError(w, http.StatusNotFound, "not_found", "Order not found")
		return
	default:
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	s.mu.Lock()
	out := *s.orders[chi.URLParam(r, "id")]
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

// AdvanceOrder moves an order along the fulfilment lifecycle and appends the
// change to its timeline.
func (s *Server) AdvanceOrder(orderID string, next domain.OrderStatus, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, orderID)
	}
	current := domain.OrderStatus(o.OrderStatus)
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusChange, current, next)
	}
	now := timestamp(s.now())
	o.OrderStatus = string(next)
	o.StatusHistory = append(o.StatusHistory, eventJSON{Status: string(next), Note: note, Timestamp: now})
	o.UpdatedAt = now
	return nil
}

// markPaidLocked records a confirmed payment. Callers hold s.mu.
func (s *Server) markPaidLocked(orderID string) {
	o, ok := s.orders[orderID]
	if !ok {
		return
	}
	o.PaymentStatus = string(domain.PaymentStatusPaid)
	o.UpdatedAt = timestamp(s.now())
}

// orderForPaymentLocked returns the caller's unpaid order whose total equals
// amount, or an HTTP status and message describing why it cannot be paid.
func (s *Server) orderForPaymentLocked(userID, orderID string, amount float64) (*orderJSON, int, string) {
	o, ok := s.orders[orderID]
	if !ok || o.User != userID {
		return nil, http.StatusNotFound, "Order not found"
	}
	if o.PaymentStatus == string(domain.PaymentStatusPaid) {
		return nil, http.StatusBadRequest, "Order already paid"
	}
	if !decimal.NewFromFloat(amount).Equal(decimal.NewFromFloat(o.TotalAmount)) {
		return nil, http.StatusBadRequest, "Amount does not match order total"
	}
	return o, 0, ""
}
