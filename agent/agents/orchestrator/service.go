package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	nodex "github.com/tanpawarit/chative-retail/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	idsx "github.com/tanpawarit/chative-retail/pkg/ids"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

const (
	DefaultHistoryWindow = 10
	sessionIDPrefix      = "SESS"
)

type (
	Request = nodex.GraphInput
	Reply   = nodex.GraphOutput
)

type Config struct {
	StoreName      string
	CurrencySymbol string
	HistoryWindow  int
}

type Deps struct {
	Store     statex.Store
	Handlers  contractx.Registry
	Lookups   contractx.ToolGateway
	Customers nodex.CustomerLookup
	Orders    nodex.OrderLookup
}

type Option func(*Orchestrator)

// WithLocks shares the per-session lock with other writers of the same sessions.
func WithLocks(locks *statex.KeyedMutex) Option {
	return func(o *Orchestrator) {
		if locks != nil {
			o.locks = locks
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

type Orchestrator struct {
	store     statex.Store
	handlers  contractx.Registry
	lookups   contractx.ToolGateway
	customers nodex.CustomerLookup
	orders    nodex.OrderLookup
	cfg       Config
	locks     *statex.KeyedMutex
	now       func() time.Time

	graphRunner   compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	prepareRunner compose.Runnable[nodex.GraphInput, *nodex.GraphState]
}

func New(deps Deps, cfg Config, opts ...Option) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Handlers == nil {
		return nil, errors.New("handler registry is required")
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}

	o := &Orchestrator{
		store:     deps.Store,
		handlers:  deps.Handlers,
		lookups:   deps.Lookups,
		customers: deps.Customers,
		orders:    deps.Orders,
		cfg:       cfg,
		locks:     statex.NewKeyedMutex(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	ctx := context.Background()
	graphRunner, err := o.compileHandleMessageGraph(ctx)
	if err != nil {
		return nil, err
	}
	prepareRunner, err := o.compilePrepareTurnGraph(ctx)
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner
	o.prepareRunner = prepareRunner
	return o, nil
}

// HandleMessage runs one blocking turn. Turns for the same session are serialized.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (Reply, error) {
	req.SessionID = resolveSessionID(req.SessionID)
	unlock := o.locks.Lock(req.SessionID)
	defer unlock()

	return o.graphRunner.Invoke(ctx, req)
}

// HandleMessageStream prepares the turn and starts generation. The session lock
// is held until the stream is drained or closed.
func (o *Orchestrator) HandleMessageStream(ctx context.Context, req Request) (*TurnStream, error) {
	req.SessionID = resolveSessionID(req.SessionID)
	unlock := o.locks.Lock(req.SessionID)

	state, err := o.prepareRunner.Invoke(ctx, req)
	if err != nil {
		unlock()
		return nil, err
	}

	reader, err := state.Handler.Stream(ctx, state.Request)
	if err != nil {
		nodex.PersistAfterFailure(ctx, state, o.store, err)
		unlock()
		return nil, err
	}
	return newTurnStream(ctx, state, reader, o.store, unlock), nil
}

func resolveSessionID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return idsx.New(sessionIDPrefix)
}
