package orchestratornode

import (
	"context"
	"fmt"

	statex "github.com/tanpawarit/chative-retail/agent/state"
)

func AppendReply(in *GraphState) (*GraphState, error) {
	if err := requireSession(in); err != nil {
		return nil, err
	}
	metadata := map[string]string{}
	if in.Handler != nil {
		metadata["handler"] = string(in.Handler.Name())
	}
	in.Manager.AddAssistantMessage(in.Reply, metadata)
	return in, nil
}

func SaveSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if err := requireSession(in); err != nil {
		return nil, err
	}
	if err := in.Session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session before save: %w", err)
	}
	if err := store.Save(ctx, in.Session); err != nil {
		return nil, fmt.Errorf("save session=%s: %w", in.SessionID, err)
	}
	return in, nil
}

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if err := requireSession(in); err != nil {
		return GraphOutput{}, err
	}
	out := GraphOutput{SessionID: in.SessionID, Reply: in.Reply}
	if in.Handler != nil {
		out.Handler = in.Handler.Name()
	}
	return out, nil
}
