package fakebackend

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/domain"
)

type mpesaInitiateRequest struct {
	OrderID     string  `json:"orderId" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	PhoneNumber string  `json:"phoneNumber" validate:"required"`
}

type hostedInitRequest struct {
	OrderID string  `json:"orderId" validate:"required"`
	Amount  float64 `json:"amount" validate:"gt=0"`
}

// initiateMpesa starts a push payment for an unpaid order. A repeated
// Idempotency-Key returns the checkout request created first.
func (s *Server) initiateMpesa(w http.ResponseWriter, r *http.Request) {
	var req mpesaInitiateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.phone.MatchString(req.PhoneNumber) {
		respondError(w, http.StatusBadRequest, "invalid_phone", "Phone number must be in the format "+s.phoneCC+"XXXXXXXXX")
		return
	}
	u := currentUser(r.Context())
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		if id, ok := s.mpesaKeys[u.ID+"|"+key]; ok {
			respondJSON(w, http.StatusOK, map[string]string{"checkoutRequestID": id})
			return
		}
	}
	o, status, msg := s.orderForPaymentLocked(u.ID, req.OrderID, req.Amount)
	if o == nil {
		respondError(w, status, "payment_rejected", msg)
		return
	}

	tx := &mpesaTx{
		ID:      "ws_CO_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		OrderID: o.ID,
		UserID:  u.ID,
		Status:  string(domain.ProviderStatusPending),
	}
	s.mpesa[tx.ID] = tx
	if key != "" {
		s.mpesaKeys[u.ID+"|"+key] = tx.ID
	}
	s.log.Info("stk push sent", zap.String("order_id", o.ID), zap.String("checkout_request_id", tx.ID))
	respondJSON(w, http.StatusOK, map[string]string{
		"checkoutRequestID": tx.ID,
		"message":           "STK push sent. Check your phone.",
	})
}

// mpesaStatus asks the status source for the next answer until the payment
// settles; settled payments keep reporting their final state.
func (s *Server) mpesaStatus(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.mpesa[chi.URLParam(r, "id")]
	if !ok || tx.UserID != u.ID {
		respondError(w, http.StatusNotFound, "not_found", "Transaction not found")
		return
	}

	if !tx.Settled {
		tx.Checks++
		reply := s.status.Status(tx.ID, tx.Checks)
		switch reply.Status {
		case domain.ProviderStatusCompleted:
			tx.Settled = true
			tx.Status = string(reply.Status)
			tx.Receipt = reply.Receipt
			if tx.Receipt == "" {
				tx.Receipt = newReceipt()
			}
			s.markPaidLocked(tx.OrderID)
		case domain.ProviderStatusFailed:
			tx.Settled = true
			tx.Status = string(reply.Status)
			tx.Reason = reply.FailureReason
		}
	}

	body := map[string]string{"status": tx.Status}
	if tx.Receipt != "" {
		body["mpesaReceiptNumber"] = tx.Receipt
	}
	if tx.Reason != "" {
		body["failureReason"] = tx.Reason
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) initializeHosted(w http.ResponseWriter, r *http.Request) {
	var req hostedInitRequest
	if !s.decode(w, r, &req) {
		return
	}
	u := currentUser(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	o, status, msg := s.orderForPaymentLocked(u.ID, req.OrderID, req.Amount)
	if o == nil {
		respondError(w, status, "payment_rejected", msg)
		return
	}
	tx := &hostedTx{ID: "tx-" + uuid.NewString(), OrderID: o.ID, UserID: u.ID, Status: "pending"}
	s.hosted[tx.ID] = tx
	respondJSON(w, http.StatusOK, map[string]string{
		"paymentUrl":    s.publicURL + "/pay/" + tx.ID,
		"transactionId": tx.ID,
	})
}

func (s *Server) verifyHosted(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	s.mu.Lock()
	tx, ok := s.hosted[chi.URLParam(r, "txRef")]
	var status string
	if ok && tx.UserID == u.ID {
		status = tx.Status
	}
	s.mu.Unlock()
	if status == "" {
		respondError(w, http.StatusNotFound, "not_found", "Transaction not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// hostedPage stands in for the provider's payment page: visiting it settles
// the transaction with ?outcome=successful (the default) or cancelled.
func (s *Server) hostedPage(w http.ResponseWriter, r *http.Request) {
	outcome := strings.ToLower(r.URL.Query().Get("outcome"))
	if outcome != "cancelled" {
		outcome = "successful"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.hosted[chi.URLParam(r, "txRef")]
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "Transaction not found")
		return
	}
	if tx.Status == "pending" {
		tx.Status = outcome
		if outcome == "successful" {
			s.markPaidLocked(tx.OrderID)
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": tx.Status, "tx_ref": tx.ID})
}
