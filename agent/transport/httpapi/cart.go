package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	"github.com/tanpawarit/chative-retail/agent/workflow"
)

type CartItemRequest struct {
	SessionID  string  `json:"session_id"`
	CustomerID string  `json:"customer_id"`
	Channel    string  `json:"channel"`
	SKU        string  `json:"sku"`
	Quantity   int     `json:"quantity"`
	Size       *string `json:"size,omitempty"`
	Color      *string `json:"color,omitempty"`
}

func (c CartItemRequest) validate() error {
	if strings.TrimSpace(c.SessionID) == "" {
		return fmt.Errorf("%w: session_id is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.SKU) == "" {
		return fmt.Errorf("%w: sku is required", contractx.ErrValidation)
	}
	return nil
}

type CartResponse struct {
	SessionID     string              `json:"session_id"`
	Message       string              `json:"message,omitempty"`
	Summary       string              `json:"cart_summary"`
	Cart          *domainx.Cart       `json:"cart"`
	WorkflowState statex.WorkflowState `json:"workflow_state"`
}

type cartMutation func(cart *domainx.Cart) (workflow.CartResult, error)

// withSession runs fn on the session under the per-session lock and saves it
// when fn succeeds.
func (s *Server) withSession(
	ctx context.Context,
	sessionID, customerID, channel string,
	fn func(m *statex.ContextManager) error,
) (*statex.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.GetOrCreate(ctx, sessionID, customerID, channel)
	if err != nil {
		return nil, err
	}
	if session.CustomerID == "" && strings.TrimSpace(customerID) != "" {
		session.CustomerID = strings.TrimSpace(customerID)
	}
	manager := statex.NewContextManager(session, s.now)
	if err := fn(manager); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session=%s: %w", sessionID, err)
	}
	return session, nil
}

func (s *Server) mutateCart(w http.ResponseWriter, r *http.Request, req CartItemRequest, mutate cartMutation) {
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	var result workflow.CartResult
	session, err := s.withSession(r.Context(), req.SessionID, req.CustomerID, req.Channel, func(m *statex.ContextManager) error {
		cart := m.Cart()
		if cart.CustomerID == "" {
			cart.CustomerID = m.Session().CustomerID
		}
		res, err := mutate(cart)
		if err != nil {
			return err
		}
		result = res
		m.SetCart(cart)
		return m.UpdateWorkflowState(s.commerce.WorkflowState(cart, m.Session().CustomerID))
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CartResponse{
		SessionID:     session.SessionID,
		Message:       result.Message,
		Summary:       result.Summary,
		Cart:          session.Context.Cart,
		WorkflowState: session.WorkflowState,
	})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	s.mutateCart(w, r, req, func(cart *domainx.Cart) (workflow.CartResult, error) {
		return s.commerce.AddToCart(cart, req.SKU, req.Quantity, req.Size, req.Color)
	})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.mutateCart(w, r, req, func(cart *domainx.Cart) (workflow.CartResult, error) {
		return s.commerce.UpdateCartItem(cart, req.SKU, req.Quantity, req.Size, req.Color)
	})
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req CartItemRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.mutateCart(w, r, req, func(cart *domainx.Cart) (workflow.CartResult, error) {
		return s.commerce.RemoveFromCart(cart, req.SKU, req.Size, req.Color)
	})
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cart := session.Context.Cart
	if cart == nil {
		cart = domainx.NewCart(session.CustomerID, s.now())
	}
	writeJSON(w, http.StatusOK, CartResponse{
		SessionID:     session.SessionID,
		Summary:       cart.Summary(s.cfg.CurrencySymbol),
		Cart:          cart,
		WorkflowState: session.WorkflowState,
	})
}
