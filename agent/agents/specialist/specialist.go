package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	promptx "github.com/tanpawarit/chative-retail/agent/prompt"
)

// definition is the static part of a handler: when it fires, what it looks
// up, and how lookups become template variables.
type definition struct {
	name     contractx.HandlerName
	keywords []string
	lookups  func(text string, tc contractx.TurnContext) []contractx.ToolRequest
	vars     func(tc contractx.TurnContext) map[string]any
}

type specialistImpl struct {
	definition
	prompts promptx.PromptSet
	runner  compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.Specialist = (*specialistImpl)(nil)

func newSpecialist(
	ctx context.Context,
	def definition,
	chatModel einomodel.BaseChatModel,
	prompts promptx.PromptSet,
) (*specialistImpl, error) {
	if _, err := prompts.Template(def.name); err != nil {
		return nil, err
	}
	runner, err := compileGenerationGraph(ctx, chatModel, "specialist."+string(def.name))
	if err != nil {
		return nil, fmt.Errorf("%w: handler=%s: %v", contractx.ErrModelInvoke, def.name, err)
	}
	return &specialistImpl{definition: def, prompts: prompts, runner: runner}, nil
}

func (s *specialistImpl) Name() contractx.HandlerName {
	return s.name
}

// CanHandle is a case-insensitive substring test. A handler without keywords
// accepts everything.
func (s *specialistImpl) CanHandle(text string, _ contractx.TurnContext) bool {
	if len(s.keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range s.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (s *specialistImpl) Lookups(text string, tc contractx.TurnContext) []contractx.ToolRequest {
	if s.lookups == nil {
		return nil
	}
	return s.lookups(text, tc)
}

func (s *specialistImpl) BuildInstructions(tc contractx.TurnContext) (string, error) {
	vars := map[string]any{}
	if s.vars != nil {
		vars = s.vars(tc)
	}
	vars["store_name"] = valueOr(tc.StoreName, "our store")
	vars["channel"] = valueOr(tc.Channel, promptx.DefaultChannel)
	vars["currency_symbol"] = tc.CurrencySymbol
	vars["channel_guidance"] = promptx.ChannelGuidance(tc.Channel)
	return s.prompts.Render(context.Background(), s.name, vars)
}

func (s *specialistImpl) Generate(ctx context.Context, req contractx.GenerationRequest) (string, error) {
	msg, err := s.runner.Invoke(ctx, generationInput(req))
	if err != nil {
		return "", fmt.Errorf("%w: handler=%s: %v", contractx.ErrModelInvoke, s.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: handler=%s: empty response", contractx.ErrModelInvoke, s.name)
	}
	return msg.Content, nil
}

// Stream relays provider chunks unchanged. Closing the reader is the caller's job.
func (s *specialistImpl) Stream(ctx context.Context, req contractx.GenerationRequest) (*schema.StreamReader[*schema.Message], error) {
	sr, err := s.runner.Stream(ctx, generationInput(req))
	if err != nil {
		return nil, fmt.Errorf("%w: handler=%s: %v", contractx.ErrModelInvoke, s.name, err)
	}
	return sr, nil
}

func generationInput(req contractx.GenerationRequest) map[string]any {
	history := req.History
	if history == nil {
		history = []*schema.Message{}
	}
	return map[string]any{
		varInstructions: req.Instructions,
		varHistory:      history,
		varUserMessage:  req.UserMessage,
	}
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
