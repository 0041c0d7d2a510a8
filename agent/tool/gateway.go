package tool

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	catalogx "github.com/tanpawarit/chative-retail/agent/service/catalog"
	fulfillmentx "github.com/tanpawarit/chative-retail/agent/service/fulfillment"
	inventoryx "github.com/tanpawarit/chative-retail/agent/service/inventory"
	loyaltyx "github.com/tanpawarit/chative-retail/agent/service/loyalty"
)

const (
	ToolCatalogSearch        = "catalog.search"
	ToolCatalogProduct       = "catalog.product"
	ToolCatalogRecommend     = "catalog.recommend"
	ToolCatalogComplementary = "catalog.complementary"
	ToolInventoryCheck       = "inventory.check"
	ToolLoyaltyPromotions    = "loyalty.promotions"
	ToolLoyaltyCoupons       = "loyalty.coupons"
	ToolLoyaltyTier          = "loyalty.tier"
	ToolFulfillmentSlots     = "fulfillment.slots"
	ToolFulfillmentPickup    = "fulfillment.pickup"
	ToolFulfillmentTrack     = "fulfillment.track"
	ToolPaymentMethods       = "payment.methods"
	ToolOrdersGet            = "orders.get"
	ToolOrdersRecent         = "orders.recent"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// OrderReader is the read side of order persistence.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*domainx.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domainx.Order, error)
}

type Deps struct {
	Catalog     *catalogx.Catalog
	Inventory   *inventoryx.Service
	Loyalty     *loyaltyx.Service
	Fulfillment *fulfillmentx.Service
	Orders      OrderReader
}

type definition struct {
	desc     string
	required []string
	run      Executor
}

// Gateway runs read-only lookups on behalf of a handler. Each handler may
// only reach the tools listed for it.
type Gateway struct {
	tools   map[string]definition
	allowed map[contractx.HandlerName]map[string]bool
}

var _ contractx.ToolGateway = (*Gateway)(nil)

var handlerTools = map[contractx.HandlerName][]string{
	contractx.HandlerSales:          {ToolCatalogSearch, ToolLoyaltyPromotions},
	contractx.HandlerRecommendation: {ToolCatalogRecommend, ToolCatalogSearch, ToolCatalogComplementary},
	contractx.HandlerInventory:      {ToolInventoryCheck, ToolCatalogSearch, ToolCatalogProduct},
	contractx.HandlerPayment:        {ToolPaymentMethods, ToolLoyaltyPromotions},
	contractx.HandlerFulfillment:    {ToolFulfillmentSlots, ToolFulfillmentPickup, ToolFulfillmentTrack, ToolOrdersGet},
	contractx.HandlerLoyalty:        {ToolLoyaltyPromotions, ToolLoyaltyCoupons, ToolLoyaltyTier},
	contractx.HandlerPostPurchase:   {ToolOrdersRecent, ToolOrdersGet, ToolFulfillmentTrack},
}

func NewGateway(deps Deps) *Gateway {
	g := &Gateway{
		tools:   definitions(deps),
		allowed: make(map[contractx.HandlerName]map[string]bool, len(handlerTools)),
	}
	for handler, names := range handlerTools {
		set := make(map[string]bool, len(names))
		for _, name := range names {
			if _, ok := g.tools[name]; ok {
				set[name] = true
			}
		}
		g.allowed[handler] = set
	}
	return g
}

// Describe lists the tools a handler may call with their descriptions.
func (g *Gateway) Describe(handler contractx.HandlerName) map[string]string {
	out := map[string]string{}
	for name := range g.allowed[handler] {
		out[name] = g.tools[name].desc
	}
	return out
}

// Execute never fails a turn because one lookup failed; lookup failures are
// reported in ToolResult.Error. Only context cancellation aborts.
func (g *Gateway) Execute(ctx context.Context, handler contractx.HandlerName, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := g.executeOne(ctx, handler, req)
		if err != nil {
			res = contractx.ToolResult{Tool: req.Tool, Error: err.Error()}
		}
		if res.Error != "" {
			log.Ctx(ctx).Debug().Str("handler", string(handler)).Str("tool", req.Tool).Str("error", res.Error).Msg("lookup failed")
		}
		results = append(results, res)
	}
	return results, nil
}

func (g *Gateway) executeOne(ctx context.Context, handler contractx.HandlerName, req contractx.ToolRequest) (contractx.ToolResult, error) {
	def, ok := g.tools[req.Tool]
	if !ok || !g.allowed[handler][req.Tool] {
		return DefaultExecutor(handler)(ctx, req.Tool, req.Args)
	}
	for _, key := range def.required {
		if _, ok := req.Args[key]; !ok {
			return contractx.ToolResult{Tool: req.Tool, Error: fmt.Sprintf("%s is required", key)}, nil
		}
	}
	return def.run(ctx, req.Tool, req.Args)
}

func DefaultExecutor(handler contractx.HandlerName) Executor {
	return func(_ context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for handler=%s", tool, handler),
		}, nil
	}
}
