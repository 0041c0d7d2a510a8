package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	llmx "github.com/tanpawarit/chative-retail/agent/llm"
	promptx "github.com/tanpawarit/chative-retail/agent/prompt"
)

// ModelFactory returns the chat model a handler generates with.
type ModelFactory func(ctx context.Context, handler contractx.HandlerName) (einomodel.BaseChatModel, error)

type Registry struct {
	byName   map[contractx.HandlerName]contractx.Specialist
	ordered  []contractx.Specialist
	fallback contractx.Specialist
}

var _ contractx.Registry = (*Registry)(nil)

func NewRegistry(ctx context.Context, cfg llmx.Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewRegistryWithFactory(ctx, func(ctx context.Context, handler contractx.HandlerName) (einomodel.BaseChatModel, error) {
		modelCfg := cfg.OpenRouterFor(handler)
		return modelCfg.New(ctx)
	})
}

func NewRegistryWithFactory(ctx context.Context, factory ModelFactory) (*Registry, error) {
	prompts, err := promptx.LoadPromptSet()
	if err != nil {
		return nil, err
	}

	r := &Registry{byName: map[contractx.HandlerName]contractx.Specialist{}}
	for _, def := range definitions() {
		chatModel, err := factory(ctx, def.name)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, def.name, err)
		}
		s, err := newSpecialist(ctx, def, chatModel, prompts)
		if err != nil {
			return nil, err
		}
		r.byName[def.name] = s
	}

	for _, name := range dispatchOrder {
		r.ordered = append(r.ordered, r.byName[name])
	}
	r.fallback = r.byName[contractx.HandlerSales]
	return r, nil
}

// Dispatch returns the first handler in priority order whose predicate holds,
// else sales. It cannot fail.
func (r *Registry) Dispatch(text string, tc contractx.TurnContext) contractx.Specialist {
	for _, s := range r.ordered {
		if s.CanHandle(text, tc) {
			return s
		}
	}
	return r.fallback
}

func (r *Registry) Get(name contractx.HandlerName) (contractx.Specialist, bool) {
	s, ok := r.byName[name]
	return s, ok
}
