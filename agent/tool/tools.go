package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	catalogx "github.com/tanpawarit/chative-retail/agent/service/catalog"
	inventoryx "github.com/tanpawarit/chative-retail/agent/service/inventory"
	loyaltyx "github.com/tanpawarit/chative-retail/agent/service/loyalty"
	paymentx "github.com/tanpawarit/chative-retail/agent/service/payment"
)

const defaultRecentOrders = 3

type StockOutput struct {
	SKU       string             `json:"sku"`
	Name      string             `json:"name,omitempty"`
	Available bool               `json:"available"`
	Quantity  int                `json:"quantity"`
	Stores    []string           `json:"stores"`
	Options   inventoryx.Options `json:"options"`
	Estimate  string             `json:"estimate"`
}

type PromotionsOutput struct {
	Active     []loyaltyx.Promotion `json:"active"`
	Applicable []loyaltyx.Promotion `json:"applicable,omitempty"`
}

type TierOutput struct {
	Tier        loyaltyx.Tier `json:"tier"`
	PointsValue float64       `json:"points_value"`
}

func succeed(tool string, result any) (contractx.ToolResult, error) {
	return contractx.ToolResult{Tool: tool, Result: result}, nil
}

func failed(tool string, err error) (contractx.ToolResult, error) {
	return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
}

func definitions(deps Deps) map[string]definition {
	defs := map[string]definition{
		ToolPaymentMethods: {
			desc: "List the payment methods the store accepts.",
			run: func(_ context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
				return succeed(tool, paymentx.Methods())
			},
		},
	}

	if c := deps.Catalog; c != nil {
		defs[ToolCatalogSearch] = definition{
			desc: "Search products by free text, category, price ceiling and tags.",
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				return succeed(tool, c.Search(catalogx.Query{
					Text:     stringArg(args, "query"),
					Category: stringArg(args, "category"),
					MinPrice: floatPtrArg(args, "min_price"),
					MaxPrice: floatPtrArg(args, "max_price"),
					Tags:     stringsArg(args, "tags"),
					Limit:    intArg(args, "limit", 5),
				}))
			},
		}
		defs[ToolCatalogProduct] = definition{
			desc:     "Fetch one product by SKU.",
			required: []string{"sku"},
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				p, err := c.GetBySKU(stringArg(args, "sku"))
				if err != nil {
					return failed(tool, err)
				}
				return succeed(tool, p)
			},
		}
		defs[ToolCatalogRecommend] = definition{
			desc: "Recommend products for a budget range and style preferences.",
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				prefs := domainx.Preferences{
					BudgetRange: stringArg(args, "budget_range"),
					Styles:      stringsArg(args, "styles"),
				}
				return succeed(tool, c.Recommendations(prefs, intArg(args, "limit", catalogx.DefaultRecommendationLimit)))
			},
		}
		defs[ToolCatalogComplementary] = definition{
			desc:     "List products that pair with a SKU.",
			required: []string{"sku"},
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				return succeed(tool, c.Complementary(stringArg(args, "sku"), intArg(args, "limit", catalogx.DefaultComplementaryLimit)))
			},
		}
	}

	if inv := deps.Inventory; inv != nil {
		defs[ToolInventoryCheck] = definition{
			desc:     "Check online and in-store stock for a SKU variant.",
			required: []string{"sku"},
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				sku := stringArg(args, "sku")
				color, size := optionalArg(args, "color"), optionalArg(args, "size")
				location := stringArg(args, "location")
				available, qty := inv.CheckAvailability(sku, color, size, inventoryx.LocationOnline)
				out := StockOutput{
					SKU:       sku,
					Available: available,
					Quantity:  qty,
					Stores:    inv.AvailableStores(sku, color, size),
					Options:   inv.FulfillmentOptions(sku, color, size, location),
					Estimate:  inv.DeliveryEstimate(location, inventoryx.DefaultEstimateType),
				}
				if deps.Catalog != nil {
					if p, err := deps.Catalog.GetBySKU(sku); err == nil {
						out.Name = p.Name
					}
				}
				return succeed(tool, out)
			},
		}
	}

	if l := deps.Loyalty; l != nil {
		defs[ToolLoyaltyPromotions] = definition{
			desc: "List active promotions, and those applicable to a cart total and tier.",
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				out := PromotionsOutput{Active: l.ActivePromotions()}
				if total := floatArg(args, "total"); total > 0 {
					out.Applicable = l.ApplicablePromotions(total, stringArg(args, "tier"), stringsArg(args, "categories"))
				}
				return succeed(tool, out)
			},
		}
		defs[ToolLoyaltyCoupons] = definition{
			desc: "List active coupon codes.",
			run: func(_ context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
				return succeed(tool, l.Coupons())
			},
		}
		defs[ToolLoyaltyTier] = definition{
			desc:     "Resolve the loyalty tier and redemption value for a points balance.",
			required: []string{"points"},
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				points := intArg(args, "points", 0)
				tier, found := l.TierFor(points)
				if !found {
					return contractx.ToolResult{Tool: tool, Error: "no loyalty tiers configured"}, nil
				}
				return succeed(tool, TierOutput{Tier: tier, PointsValue: l.PointsValue(points)})
			},
		}
	}

	if f := deps.Fulfillment; f != nil {
		defs[ToolFulfillmentSlots] = definition{
			desc: "List upcoming delivery slots.",
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				return succeed(tool, f.DeliverySlots(stringArg(args, "location"), nil))
			},
		}
		defs[ToolFulfillmentPickup] = definition{
			desc: "List stores offering pickup.",
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				return succeed(tool, f.PickupLocations(stringArg(args, "location")))
			},
		}
		defs[ToolFulfillmentTrack] = definition{
			desc: "Track a delivery by tracking number or order id.",
			run: func(_ context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				trk := stringArg(args, "tracking_number")
				if orderID := stringArg(args, "order_id"); trk == "" && orderID != "" {
					d, ok := f.DeliveryForOrder(orderID)
					if !ok {
						return failed(tool, fmt.Errorf("no delivery scheduled for order %s", orderID))
					}
					trk = d.TrackingNumber
				}
				if trk == "" {
					return failed(tool, errors.New("tracking_number or order_id is required"))
				}
				return succeed(tool, f.Track(trk))
			},
		}
	}

	if orders := deps.Orders; orders != nil {
		defs[ToolOrdersGet] = definition{
			desc:     "Fetch an order by id.",
			required: []string{"order_id"},
			run: func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				o, err := orders.Get(ctx, stringArg(args, "order_id"))
				if err != nil {
					return failed(tool, err)
				}
				return succeed(tool, o)
			},
		}
		defs[ToolOrdersRecent] = definition{
			desc:     "List a customer's most recent orders.",
			required: []string{"customer_id"},
			run: func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
				list, err := orders.ListByCustomer(ctx, stringArg(args, "customer_id"), intArg(args, "limit", defaultRecentOrders))
				if err != nil {
					return failed(tool, err)
				}
				return succeed(tool, list)
			},
		}
	}

	return defs
}
