package state

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

// ContextManager is a per-call view over one session. It does no I/O;
// callers persist through Store.Save.
type ContextManager struct {
	session *Session
	now     func() time.Time
}

func NewContextManager(session *Session, now func() time.Time) *ContextManager {
	if now == nil {
		now = time.Now
	}
	return &ContextManager{session: session, now: now}
}

func (m *ContextManager) Session() *Session {
	return m.session
}

func (m *ContextManager) AddUserMessage(content string, metadata map[string]string) Message {
	return m.session.AddMessage(RoleUser, content, metadata, m.now())
}

func (m *ContextManager) AddAssistantMessage(content string, metadata map[string]string) Message {
	return m.session.AddMessage(RoleAssistant, content, metadata, m.now())
}

func (m *ContextManager) ConversationHistory(limit int) []Message {
	return m.session.History(limit)
}

// Cart returns the session cart, creating an empty one bound to the session customer.
func (m *ContextManager) Cart() *domainx.Cart {
	if m.session.Context.Cart == nil {
		m.session.Context.Cart = domainx.NewCart(m.session.CustomerID, m.now())
	}
	return m.session.Context.Cart
}

func (m *ContextManager) SetCart(cart *domainx.Cart) {
	m.session.Context.Cart = cart
	m.session.Touch(m.now())
}

func (m *ContextManager) SetCurrentHandler(name contractx.HandlerName) {
	m.session.CurrentHandler = name
	m.session.Context.CurrentHandler = name
	m.session.Touch(m.now())
}

func (m *ContextManager) SetLastOrderID(orderID string) {
	m.session.Context.LastOrderID = orderID
	m.session.Touch(m.now())
}

func (m *ContextManager) WorkflowState() WorkflowState {
	if m.session.WorkflowState == "" {
		return WorkflowBrowsing
	}
	return m.session.WorkflowState
}

// UpdateWorkflowState is informational; transitions are not enforced.
func (m *ContextManager) UpdateWorkflowState(ws WorkflowState) error {
	if !ws.Valid() {
		return fmt.Errorf("%w: unknown workflow state %q", contractx.ErrValidation, ws)
	}
	m.session.WorkflowState = ws
	m.session.Touch(m.now())
	return nil
}

func (m *ContextManager) Summary() string {
	s := m.session
	customer := s.CustomerID
	if customer == "" {
		customer = "guest"
	}
	return fmt.Sprintf("session=%s customer=%s channel=%s state=%s messages=%d handler=%s",
		s.SessionID, customer, s.Channel, m.WorkflowState(), len(s.Messages), s.CurrentHandler)
}
