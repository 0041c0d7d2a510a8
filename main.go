package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/chative-retail/agent/agents/orchestrator"
	"github.com/tanpawarit/chative-retail/agent/agents/specialist"
	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	llmx "github.com/tanpawarit/chative-retail/agent/llm"
	repositoryx "github.com/tanpawarit/chative-retail/agent/repository"
	catalogx "github.com/tanpawarit/chative-retail/agent/service/catalog"
	customerx "github.com/tanpawarit/chative-retail/agent/service/customer"
	fulfillmentx "github.com/tanpawarit/chative-retail/agent/service/fulfillment"
	inventoryx "github.com/tanpawarit/chative-retail/agent/service/inventory"
	loyaltyx "github.com/tanpawarit/chative-retail/agent/service/loyalty"
	paymentx "github.com/tanpawarit/chative-retail/agent/service/payment"
	refdatax "github.com/tanpawarit/chative-retail/agent/service/refdata"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	toolx "github.com/tanpawarit/chative-retail/agent/tool"
	"github.com/tanpawarit/chative-retail/agent/transport/httpapi"
	"github.com/tanpawarit/chative-retail/agent/workflow"
	configx "github.com/tanpawarit/chative-retail/pkg/config"
	_ "github.com/tanpawarit/chative-retail/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/chative-retail/pkg/openrouter"
	qstashx "github.com/tanpawarit/chative-retail/pkg/qstash"
)

type AppConfig struct {
	StoreName      string `split_words:"true" default:"Fashion Store"`
	CurrencySymbol string `split_words:"true" default:"₹"`
	HistoryWindow  int    `split_words:"true" default:"10"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	dataCfg := configx.MustNew[refdatax.Config]("APP")
	httpCfg := configx.MustNew[httpapi.Config]("HTTP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	workflowCfg := configx.MustNew[workflow.Config]("WORKFLOW")
	httpCfg.CurrencySymbol = appCfg.CurrencySymbol
	workflowCfg.CurrencySymbol = appCfg.CurrencySymbol

	sessions := openSessionStore(ctx)
	orders, closeOrders := openOrderRepository(ctx)
	defer closeOrders()

	catalog := catalogx.Load(dataCfg.DataDir)
	stock := inventoryx.Load(dataCfg.DataDir)
	customers := customerx.Load(dataCfg.DataDir)
	loyalty := loyaltyx.Load(dataCfg.DataDir)
	deliveries := fulfillmentx.New()
	log.Info().
		Str("data_dir", dataCfg.DataDir).
		Int("products", catalog.Len()).
		Int("customers", customers.Len()).
		Msg("reference data loaded")

	if llmCfg.ProbeOnStart {
		probeModels(ctx, *llmCfg)
	}
	handlers, err := specialist.NewRegistry(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build handler registry")
	}

	locks := statex.NewKeyedMutex()
	chat, err := orchestratorx.New(orchestratorx.Deps{
		Store:    sessions,
		Handlers: handlers,
		Lookups: toolx.NewGateway(toolx.Deps{
			Catalog:     catalog,
			Inventory:   stock,
			Loyalty:     loyalty,
			Fulfillment: deliveries,
			Orders:      orders,
		}),
		Customers: customers,
		Orders:    orders,
	}, orchestratorx.Config{
		StoreName:      appCfg.StoreName,
		CurrencySymbol: appCfg.CurrencySymbol,
		HistoryWindow:  appCfg.HistoryWindow,
	}, orchestratorx.WithLocks(locks))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	var engineOpts []workflow.Option
	var verifier httpapi.SignatureVerifier
	if configx.Present("QSTASH") {
		client := qstashx.MustNew(*configx.MustNew[qstashx.Config]("QSTASH"))
		verifier = client
		if strings.TrimSpace(httpCfg.ReconcileURL) == "" {
			log.Warn().Msg("HTTP_RECONCILE_URL not set, pending deliveries will not be enqueued")
		} else {
			engineOpts = append(engineOpts, workflow.WithReconciler(
				workflow.NewQStashReconciler(client, httpCfg.ReconcileURL, workflowCfg.ReconcileRetries),
			))
		}
	} else {
		log.Warn().Msg("qstash not configured, delivery reconciliation disabled")
	}

	engine := workflow.New(*workflowCfg, workflow.Deps{
		Products:   catalog,
		Stock:      stock,
		Customers:  customers,
		Loyalty:    loyalty,
		Payments:   paymentx.NewMockGateway(),
		Deliveries: deliveries,
		Orders:     orders,
	}, engineOpts...)

	server, err := httpapi.New(*httpCfg, httpapi.Deps{
		Chat:     chat,
		Commerce: engine,
		Sessions: sessions,
		Locks:    locks,
		Verifier: verifier,
		Logger:   log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build http server")
	}

	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
	log.Info().Msg("shutdown complete")
}

// openSessionStore picks the backend named by SESSION_BACKEND. An unreachable
// backend degrades to the in-memory store.
func openSessionStore(ctx context.Context) statex.Store {
	storeCfg := configx.MustNew[statex.StoreConfig]("SESSION")

	var backend statex.Backend
	switch strings.ToLower(strings.TrimSpace(storeCfg.Backend)) {
	case "redis":
		backend = statex.NewRedisBackend(*configx.MustNew[statex.RedisConfig]("REDIS"))
	case "upstash":
		upstash, err := statex.NewUpstashRedisBackend(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
		if err != nil {
			log.Warn().Err(err).Msg("upstash redis not usable")
		} else {
			backend = upstash
		}
	case "memory":
	default:
		log.Warn().Str("backend", storeCfg.Backend).Msg("unknown session backend")
	}
	return statex.OpenStore(ctx, backend, *storeCfg)
}

// openOrderRepository uses Postgres when ORDER_DB_DSN is set.
func openOrderRepository(ctx context.Context) (repositoryx.OrderRepository, func()) {
	dbCfg := configx.MustNew[repositoryx.Config]("ORDER_DB")
	if strings.TrimSpace(dbCfg.DSN) == "" {
		log.Info().Msg("ORDER_DB_DSN not set, orders kept in memory")
		return repositoryx.NewMemoryOrderRepository(), func() {}
	}

	db, err := repositoryx.OpenPostgres(ctx, *dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open order database")
	}
	repo := repositoryx.NewBunOrderRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate order database")
	}
	return repo, func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("close order database")
		}
	}
}

func probeModels(ctx context.Context, cfg llmx.Config) {
	seen := map[string]bool{}
	for _, handler := range contractx.HandlerNames() {
		modelCfg := cfg.OpenRouterFor(handler)
		if seen[modelCfg.Model] {
			continue
		}
		seen[modelCfg.Model] = true
		if err := openrouterx.Probe(ctx, openrouterx.NewClient(modelCfg), modelCfg.Model); err != nil {
			log.Warn().Err(err).Str("model", modelCfg.Model).Msg("model probe failed")
			continue
		}
		log.Info().Str("model", modelCfg.Model).Msg("model available")
	}
}
