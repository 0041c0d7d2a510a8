package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	"github.com/tanpawarit/chative-retail/agent/workflow"
)

const signatureHeader = "Upstash-Signature"

type CheckoutRequest struct {
	SessionID       string                  `json:"session_id"`
	CustomerID      string                  `json:"customer_id"`
	ShippingAddress domainx.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                  `json:"payment_method"`
	FulfillmentType domainx.FulfillmentType `json:"fulfillment_type"`
}

type CheckoutResponse struct {
	SessionID    string         `json:"session_id"`
	Order        *domainx.Order `json:"order"`
	PointsEarned int            `json:"points_earned"`
	Message      string         `json:"message"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, r, fmt.Errorf("%w: session_id is required", contractx.ErrValidation))
		return
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		writeError(w, r, fmt.Errorf("%w: payment_method is required", contractx.ErrValidation))
		return
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	session, err := s.sessions.Get(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = session.CustomerID
	}
	if customerID == "" {
		writeError(w, r, fmt.Errorf("%w: customer_id is required to check out", contractx.ErrValidation))
		return
	}

	manager := statex.NewContextManager(session, s.now)
	cart := manager.Cart()
	result, err := s.commerce.CreateOrderFromCart(r.Context(), cart, workflow.CheckoutRequest{
		CustomerID:      customerID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		FulfillmentType: req.FulfillmentType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if session.CustomerID == "" {
		session.CustomerID = customerID
	}
	manager.SetCart(cart)
	manager.SetLastOrderID(result.Order.OrderID)
	if err := manager.UpdateWorkflowState(statex.WorkflowPostPurchase); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session_id", session.SessionID).Msg("workflow state not updated after checkout")
	}
	if err := s.sessions.Save(r.Context(), session); err != nil {
		// The order is paid and stored; only the session view is stale.
		hlog.FromRequest(r).Error().Err(err).
			Str("session_id", session.SessionID).
			Str("order_id", result.Order.OrderID).
			Msg("session not updated after checkout")
	}

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		SessionID:    session.SessionID,
		Order:        result.Order,
		PointsEarned: result.PointsEarned,
		Message:      result.Message,
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.commerce.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// handleReconcileDelivery is the QStash callback for orders left delivery_pending.
func (s *Server) handleReconcileDelivery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, errBodyTooLarge)
		return
	}
	// An empty ReconcileURL skips the subject check.
	if err := s.verifier.Verify(r.Header.Get(signatureHeader), body, s.cfg.ReconcileURL); err != nil {
		writeError(w, r, err)
		return
	}

	var job workflow.ReconcileJob
	if err := decodeBytes(body, &job); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(job.OrderID) == "" {
		writeError(w, r, fmt.Errorf("%w: order_id is required", contractx.ErrValidation))
		return
	}

	order, err := s.commerce.ReconcileDelivery(r.Context(), job)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
