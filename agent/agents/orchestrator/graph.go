package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/chative-retail/agent/nodes/orchestrator"
)

// addPrepareNodes registers the nodes shared by the blocking and streaming
// turns: everything up to and including handler dispatch.
func addPrepareNodes[O any](graph *compose.Graph[nodex.GraphInput, O], o *Orchestrator) error {
	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateSession(ctx, in, o.store)
		}),
	); err != nil {
		return fmt.Errorf("add node load_or_create_session: %w", err)
	}

	if err := graph.AddLambdaNode("append_user_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendUserTurn(in, o.cfg.HistoryWindow)
		}),
	); err != nil {
		return fmt.Errorf("add node append_user_turn: %w", err)
	}

	if err := graph.AddLambdaNode("build_turn_context",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.BuildTurnContext(ctx, in, o.customers, o.orders, nodex.TurnDefaults{
				StoreName:      o.cfg.StoreName,
				CurrencySymbol: o.cfg.CurrencySymbol,
			})
		}),
	); err != nil {
		return fmt.Errorf("add node build_turn_context: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch_handler",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchHandler(ctx, in, o.handlers, o.lookups, o.store)
		}),
	); err != nil {
		return fmt.Errorf("add node dispatch_handler: %w", err)
	}
	return nil
}

var prepareEdges = [][2]string{
	{compose.START, "validate_request"},
	{"validate_request", "load_or_create_session"},
	{"load_or_create_session", "append_user_turn"},
	{"append_user_turn", "build_turn_context"},
	{"build_turn_context", "dispatch_handler"},
}

func addEdges[O any](graph *compose.Graph[nodex.GraphInput, O], edges [][2]string) error {
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()
	if err := addPrepareNodes(graph, o); err != nil {
		return nil, err
	}

	if err := graph.AddLambdaNode("generate_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.GenerateReply(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node generate_reply: %w", err)
	}

	if err := graph.AddLambdaNode("append_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_reply: %w", err)
	}

	if err := graph.AddLambdaNode("save_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_session: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := append([][2]string{}, prepareEdges...)
	edges = append(edges,
		[2]string{"dispatch_handler", "generate_reply"},
		[2]string{"generate_reply", "append_reply"},
		[2]string{"append_reply", "save_session"},
		[2]string{"save_session", "finalize_reply"},
		[2]string{"finalize_reply", compose.END},
	)
	if err := addEdges(graph, edges); err != nil {
		return nil, err
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}

// compilePrepareTurnGraph stops after dispatch; the streaming path generates
// and persists outside the graph once the caller drains the stream.
func (o *Orchestrator) compilePrepareTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, *nodex.GraphState], error) {
	graph := compose.NewGraph[nodex.GraphInput, *nodex.GraphState]()
	if err := addPrepareNodes(graph, o); err != nil {
		return nil, err
	}

	edges := append([][2]string{}, prepareEdges...)
	edges = append(edges, [2]string{"dispatch_handler", compose.END})
	if err := addEdges(graph, edges); err != nil {
		return nil, err
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.prepare_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile prepare turn graph: %w", err)
	}
	return runner, nil
}
