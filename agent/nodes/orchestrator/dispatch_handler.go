package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	statex "github.com/tanpawarit/chative-retail/agent/state"
)

// DispatchHandler picks the handler, records it on the session before any
// generation happens, runs its lookups and renders its instructions. A failure
// after the pick still saves the session with the handler recorded.
func DispatchHandler(
	ctx context.Context,
	in *GraphState,
	registry contractx.Registry,
	gateway contractx.ToolGateway,
	store statex.Store,
) (*GraphState, error) {
	if err := requireSession(in); err != nil {
		return nil, err
	}

	handler := registry.Dispatch(in.Text, in.Turn)
	name := handler.Name()
	in.Handler = handler
	in.Manager.SetCurrentHandler(name)

	logger := log.Ctx(ctx).With().Str("session_id", in.SessionID).Str("handler", string(name)).Logger()
	logger.Info().Msg("turn dispatched")

	if reqs := handler.Lookups(in.Text, in.Turn); len(reqs) > 0 && gateway != nil {
		results, err := gateway.Execute(ctx, name, reqs)
		if err != nil {
			err = fmt.Errorf("lookups for handler=%s: %w", name, err)
			PersistAfterFailure(ctx, in, store, err)
			return nil, err
		}
		in.Turn.Lookups = results
	}

	instructions, err := handler.BuildInstructions(in.Turn)
	if err != nil {
		PersistAfterFailure(ctx, in, store, err)
		return nil, err
	}

	in.Request = contractx.GenerationRequest{
		Instructions: instructions,
		History:      ToSchemaMessages(in.History),
		UserMessage:  in.Text,
	}
	return in, nil
}

func ToSchemaMessages(history []statex.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case statex.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case statex.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		case statex.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		}
	}
	return out
}
