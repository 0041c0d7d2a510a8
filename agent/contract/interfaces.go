package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Specialist answers one conversational turn for its domain.
type Specialist interface {
	Name() HandlerName
	CanHandle(text string, tc TurnContext) bool
	Lookups(text string, tc TurnContext) []ToolRequest
	BuildInstructions(tc TurnContext) (string, error)
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Stream(ctx context.Context, req GenerationRequest) (*schema.StreamReader[*schema.Message], error)
}

type Registry interface {
	Dispatch(text string, tc TurnContext) Specialist
	Get(name HandlerName) (Specialist, bool)
}

type ToolGateway interface {
	Execute(ctx context.Context, handler HandlerName, reqs []ToolRequest) ([]ToolResult, error)
}
