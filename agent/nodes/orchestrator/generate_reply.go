package orchestratornode

import (
	"context"

	"github.com/rs/zerolog/log"

	statex "github.com/tanpawarit/chative-retail/agent/state"
)

// GenerateReply asks the handler for the full reply. When generation fails the
// session is still saved so the dispatched handler stays recorded.
func GenerateReply(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if err := requireSession(in); err != nil {
		return nil, err
	}

	reply, err := in.Handler.Generate(ctx, in.Request)
	if err != nil {
		PersistAfterFailure(ctx, in, store, err)
		return nil, err
	}
	in.Reply = reply
	return in, nil
}

func PersistAfterFailure(ctx context.Context, in *GraphState, store statex.Store, cause error) {
	logger := log.Ctx(ctx).With().Str("session_id", in.SessionID).Logger()
	if in.Handler != nil {
		logger = logger.With().Str("handler", string(in.Handler.Name())).Logger()
	}
	logger.Error().Err(cause).Msg("turn failed after dispatch")

	if err := store.Save(context.WithoutCancel(ctx), in.Session); err != nil {
		logger.Error().Err(err).Msg("save session after failed turn")
	}
}
