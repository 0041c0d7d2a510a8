package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

var (
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

const DefaultChannel = "web_chat"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type WorkflowState string

const (
	WorkflowBrowsing     WorkflowState = "browsing"
	WorkflowCart         WorkflowState = "cart"
	WorkflowCheckout     WorkflowState = "checkout"
	WorkflowPostPurchase WorkflowState = "post_purchase"
)

func (w WorkflowState) Valid() bool {
	switch w {
	case WorkflowBrowsing, WorkflowCart, WorkflowCheckout, WorkflowPostPurchase:
		return true
	default:
		return false
	}
}

// SessionContext is the scratch area of a session. The well-known values are
// typed fields; anything else goes through SetValue/GetValue.
type SessionContext struct {
	Cart           *domainx.Cart              `json:"cart,omitempty"`
	CurrentHandler contractx.HandlerName      `json:"current_handler,omitempty"`
	LastOrderID    string                     `json:"last_order_id,omitempty"`
	Values         map[string]json.RawMessage `json:"values,omitempty"`
}

// SetValue stores any JSON-serializable value under key.
func SetValue[T any](c *SessionContext, key string, value T) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: context key is empty", contractx.ErrValidation)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal context value %q: %w", key, err)
	}
	if c.Values == nil {
		c.Values = make(map[string]json.RawMessage)
	}
	c.Values[key] = raw
	return nil
}

// GetValue decodes the value stored under key. ok is false when the key is absent.
func GetValue[T any](c *SessionContext, key string) (value T, ok bool, err error) {
	raw, found := c.Values[strings.TrimSpace(key)]
	if !found {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, true, fmt.Errorf("unmarshal context value %q: %w", key, err)
	}
	return value, true, nil
}

type Session struct {
	SessionID      string                `json:"session_id"`
	CustomerID     string                `json:"customer_id,omitempty"`
	Channel        string                `json:"channel"`
	Messages       []Message             `json:"messages"`
	CurrentHandler contractx.HandlerName `json:"current_handler,omitempty"`
	WorkflowState  WorkflowState         `json:"workflow_state"`
	Context        SessionContext        `json:"context"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	LastActivity   time.Time             `json:"last_activity"`
}

func NewSession(sessionID, customerID, channel string, now time.Time) *Session {
	now = now.UTC()
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Session{
		SessionID:     strings.TrimSpace(sessionID),
		CustomerID:    strings.TrimSpace(customerID),
		Channel:       channel,
		Messages:      []Message{},
		WorkflowState: WorkflowBrowsing,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastActivity:  now,
	}
}

// AddMessage appends to the log. The log is never reordered or truncated.
func (s *Session) AddMessage(role Role, content string, metadata map[string]string, now time.Time) Message {
	now = now.UTC()
	msg := Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Metadata:  copyMetadata(metadata),
	}
	s.Messages = append(s.Messages, msg)
	s.Touch(now)
	return msg
}

// History returns a copy of the last limit messages; limit <= 0 returns all.
func (s *Session) History(limit int) []Message {
	msgs := s.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		out[i].Metadata = copyMetadata(m.Metadata)
	}
	return out
}

func (s *Session) SetChannel(channel string, now time.Time) {
	channel = strings.TrimSpace(channel)
	if channel == "" || channel == s.Channel {
		return
	}
	s.Channel = channel
	s.Touch(now)
}

func (s *Session) Touch(now time.Time) {
	now = now.UTC()
	s.UpdatedAt = now
	s.LastActivity = now
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.WorkflowState != "" && !s.WorkflowState.Valid() {
		return fmt.Errorf("%w: unknown workflow state %q", contractx.ErrValidation, s.WorkflowState)
	}
	for i, m := range s.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", contractx.ErrValidation, i, m.Role)
		}
	}
	return nil
}

// Clone deep-copies the session through its JSON form.
func (s *Session) Clone() (*Session, error) {
	if s == nil {
		return nil, ErrNilSession
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &out, nil
}

func copyMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
