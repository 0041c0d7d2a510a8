package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	orchestratorx "github.com/tanpawarit/chative-retail/agent/agents/orchestrator"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	"github.com/tanpawarit/chative-retail/agent/workflow"
	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

const defaultMaxRequestBodySize = 1 << 20

type Config struct {
	Addr            string        `default:":8080"`
	MaxBodySize     int64         `split_words:"true" default:"1048576"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	CurrencySymbol  string        `split_words:"true" default:"₹"`
	// ReconcileURL is the public callback address QStash signs against.
	ReconcileURL string `split_words:"true"`
}

type Chat interface {
	HandleMessage(ctx context.Context, req orchestratorx.Request) (orchestratorx.Reply, error)
	HandleMessageStream(ctx context.Context, req orchestratorx.Request) (*orchestratorx.TurnStream, error)
}

type Commerce interface {
	AddToCart(cart *domainx.Cart, sku string, quantity int, size, color *string) (workflow.CartResult, error)
	UpdateCartItem(cart *domainx.Cart, sku string, quantity int, size, color *string) (workflow.CartResult, error)
	RemoveFromCart(cart *domainx.Cart, sku string, size, color *string) (workflow.CartResult, error)
	WorkflowState(cart *domainx.Cart, customerID string) statex.WorkflowState
	CreateOrderFromCart(ctx context.Context, cart *domainx.Cart, req workflow.CheckoutRequest) (workflow.CheckoutResult, error)
	ReconcileDelivery(ctx context.Context, job workflow.ReconcileJob) (*domainx.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domainx.Order, error)
}

type SignatureVerifier interface {
	Verify(signature string, body []byte, destination string) error
}

type Deps struct {
	Chat     Chat
	Commerce Commerce
	Sessions statex.Store
	// Locks must be the same instance the orchestrator uses.
	Locks    *statex.KeyedMutex
	Verifier SignatureVerifier
	Logger   zerolog.Logger
}

type Server struct {
	cfg      Config
	chat     Chat
	commerce Commerce
	sessions statex.Store
	locks    *statex.KeyedMutex
	verifier SignatureVerifier
	logger   zerolog.Logger
	now      func() time.Time
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Chat == nil {
		return nil, errors.New("chat service is required")
	}
	if deps.Commerce == nil {
		return nil, errors.New("commerce engine is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = moneyx.DefaultSymbol
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxRequestBodySize
	}
	locks := deps.Locks
	if locks == nil {
		locks = statex.NewKeyedMutex()
	}
	return &Server{
		cfg:      cfg,
		chat:     deps.Chat,
		commerce: deps.Commerce,
		sessions: deps.Sessions,
		locks:    locks,
		verifier: deps.Verifier,
		logger:   deps.Logger,
		now:      time.Now,
	}, nil
}

// Handler builds the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request served")
	}))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/message", s.handleMessage)
		r.Post("/message/stream", s.handleMessageStream)
		r.Get("/session/{id}", s.handleGetSession)
	})
	r.Route("/cart", func(r chi.Router) {
		r.Get("/{session_id}", s.handleGetCart)
		r.Post("/items", s.handleAddItem)
		r.Patch("/items", s.handleUpdateItem)
		r.Delete("/items", s.handleRemoveItem)
	})
	r.Post("/checkout", s.handleCheckout)
	r.Get("/orders/{id}", s.handleGetOrder)
	if s.verifier != nil {
		r.Post("/internal/reconcile-delivery", s.handleReconcileDelivery)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.logger.Info().Msg("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// requestIDLogger tags the request logger with chi's request id.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chiMiddleware.GetReqID(r.Context()); id != "" {
			logger := zerolog.Ctx(r.Context())
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.sessions.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("session store ping failed")
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
