package orchestratornode

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	statex "github.com/tanpawarit/chative-retail/agent/state"
)

var (
	ErrInvalidMessage = fmt.Errorf("%w: message is empty", contractx.ErrValidation)
	ErrInvalidSession = fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
)

type GraphInput struct {
	SessionID  string
	CustomerID string
	Channel    string
	Text       string
}

type GraphOutput struct {
	SessionID string
	Handler   contractx.HandlerName
	Reply     string
}

// GraphState is threaded through every node of one turn.
type GraphState struct {
	SessionID  string
	CustomerID string
	Channel    string
	Text       string
	Now        time.Time

	Session *statex.Session
	Manager *statex.ContextManager
	History []statex.Message

	Turn    contractx.TurnContext
	Handler contractx.Specialist
	Request contractx.GenerationRequest

	Reply string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID:  sessionID,
		CustomerID: strings.TrimSpace(in.CustomerID),
		Channel:    strings.TrimSpace(in.Channel),
		Text:       text,
		Now:        nowFn().UTC(),
	}, nil
}

func requireSession(in *GraphState) error {
	if in == nil || in.Session == nil || in.Manager == nil {
		return fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	return nil
}
