package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	statex "github.com/tanpawarit/chative-retail/agent/state"
)

func LoadOrCreateSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, ErrInvalidSession
	}

	session, err := store.GetOrCreate(ctx, in.SessionID, in.CustomerID, in.Channel)
	if err != nil {
		return nil, fmt.Errorf("load session=%s: %w", in.SessionID, err)
	}

	session.SetChannel(in.Channel, in.Now)
	if session.CustomerID == "" && in.CustomerID != "" {
		session.CustomerID = in.CustomerID
		session.Touch(in.Now)
	}

	now := in.Now
	in.Session = session
	in.Manager = statex.NewContextManager(session, func() time.Time { return now })

	log.Ctx(ctx).Debug().
		Str("session_id", session.SessionID).
		Str("channel", session.Channel).
		Int("messages", len(session.Messages)).
		Msg("session loaded")
	return in, nil
}
