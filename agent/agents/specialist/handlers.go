package specialist

import (
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	fulfillmentx "github.com/tanpawarit/chative-retail/agent/service/fulfillment"
	toolx "github.com/tanpawarit/chative-retail/agent/tool"
	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

const (
	DefaultLocation       = "Mumbai"
	DefaultPreferredStore = "Mumbai - Phoenix Mall"

	maxSKULookups = 3
)

var (
	skuPattern      = regexp.MustCompile(`(?i)\b[a-z]{2,5}\d{2,5}\b`)
	orderPattern    = regexp.MustCompile(`(?i)\bORD[0-9a-f]{8}\b`)
	trackingPattern = regexp.MustCompile(`(?i)\bTRK[0-9a-f]{8}\b`)
)

// dispatchOrder is the fixed priority; sales is the fallback and is never tested.
var dispatchOrder = []contractx.HandlerName{
	contractx.HandlerRecommendation,
	contractx.HandlerInventory,
	contractx.HandlerPayment,
	contractx.HandlerFulfillment,
	contractx.HandlerLoyalty,
	contractx.HandlerPostPurchase,
}

func definitions() []definition {
	return []definition{
		{
			name:    contractx.HandlerSales,
			lookups: salesLookups,
			vars:    salesVars,
		},
		{
			name:     contractx.HandlerRecommendation,
			keywords: []string{"recommend", "suggestion", "what should", "help me find", "looking for", "show me", "similar", "like this"},
			lookups:  recommendationLookups,
			vars:     recommendationVars,
		},
		{
			name:     contractx.HandlerInventory,
			keywords: []string{"available", "stock", "in stock", "out of stock", "delivery", "shipping", "pickup", "store", "when can"},
			lookups:  inventoryLookups,
			vars:     inventoryVars,
		},
		{
			name:     contractx.HandlerPayment,
			keywords: []string{"pay", "payment", "checkout", "buy", "purchase", "card", "upi", "cod", "cash on delivery"},
			lookups:  paymentLookups,
			vars:     paymentVars,
		},
		{
			name:     contractx.HandlerFulfillment,
			keywords: []string{"deliver", "delivery", "ship", "shipping", "pickup", "when will", "track", "tracking"},
			lookups:  fulfillmentLookups,
			vars:     fulfillmentVars,
		},
		{
			name:     contractx.HandlerLoyalty,
			keywords: []string{"points", "loyalty", "reward", "discount", "offer", "promotion", "coupon", "code", "save", "deal"},
			lookups:  loyaltyLookups,
			vars:     loyaltyVars,
		},
		{
			name:     contractx.HandlerPostPurchase,
			keywords: []string{"return", "exchange", "refund", "cancel", "track", "order status", "where is my", "complaint", "issue", "problem", "help with order"},
			lookups:  postPurchaseLookups,
			vars:     postPurchaseVars,
		},
	}
}

func salesLookups(text string, tc contractx.TurnContext) []contractx.ToolRequest {
	return []contractx.ToolRequest{
		{Tool: toolx.ToolCatalogSearch, Args: map[string]any{"query": text, "limit": 5}},
		promotionsRequest(tc),
	}
}

func salesVars(tc contractx.TurnContext) map[string]any {
	name, tier, history := "Guest", "Not a member", "No previous purchases"
	if c := tc.Customer; c != nil {
		name, tier, history = c.Name, c.Tier(), c.PurchaseSummary(tc.CurrencySymbol)
	}
	return map[string]any{
		"customer_name":     name,
		"loyalty_tier":      tier,
		"purchase_history":  history,
		"cart_items":        cartLines(tc),
		"active_promotions": activePromotions(tc),
		"product_matches":   productsText(tc, toolx.ToolCatalogSearch, "No catalog matches"),
	}
}

func recommendationLookups(_ string, tc contractx.TurnContext) []contractx.ToolRequest {
	args := map[string]any{"limit": 5}
	if c := tc.Customer; c != nil {
		args["budget_range"] = c.Preferences.BudgetRange
		args["styles"] = c.Preferences.Styles
	}
	reqs := []contractx.ToolRequest{{Tool: toolx.ToolCatalogRecommend, Args: args}}
	if !tc.Cart.IsEmpty() {
		reqs = append(reqs, contractx.ToolRequest{
			Tool: toolx.ToolCatalogComplementary,
			Args: map[string]any{"sku": tc.Cart.Items[0].SKU},
		})
	}
	return reqs
}

func recommendationVars(tc contractx.TurnContext) map[string]any {
	profile := "New visitor, no saved preferences"
	if c := tc.Customer; c != nil {
		profile = asJSON(map[string]any{
			"name":             c.Name,
			"tier":             c.Tier(),
			"preferences":      c.Preferences,
			"browsing_history": c.BrowsingHistory,
			"wishlist":         c.Wishlist,
		})
	}
	return map[string]any{
		"customer_profile":    profile,
		"product_catalog":     productsText(tc, toolx.ToolCatalogRecommend, "No candidates found"),
		"complementary_items": productsText(tc, toolx.ToolCatalogComplementary, "None"),
	}
}

func inventoryLookups(text string, tc contractx.TurnContext) []contractx.ToolRequest {
	location := customerLocation(tc)
	var reqs []contractx.ToolRequest
	for _, sku := range mentionedSKUs(text, tc) {
		reqs = append(reqs, contractx.ToolRequest{
			Tool: toolx.ToolInventoryCheck,
			Args: map[string]any{"sku": sku, "location": location},
		})
	}
	if len(reqs) == 0 {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolCatalogSearch, Args: map[string]any{"query": text, "limit": 3}})
	}
	return reqs
}

func inventoryVars(tc contractx.TurnContext) map[string]any {
	data := lookupsText(tc, toolx.ToolInventoryCheck)
	if data == "" {
		data = productsText(tc, toolx.ToolCatalogSearch, "No product identified yet")
	}
	return map[string]any{
		"inventory_data":    data,
		"customer_location": customerLocation(tc),
		"preferred_store":   preferredStore(tc),
	}
}

func paymentLookups(_ string, tc contractx.TurnContext) []contractx.ToolRequest {
	return []contractx.ToolRequest{
		{Tool: toolx.ToolPaymentMethods},
		promotionsRequest(tc),
	}
}

func paymentVars(tc contractx.TurnContext) map[string]any {
	saved, points := "None saved", "0"
	if c := tc.Customer; c != nil {
		saved = c.SavedMethodsSummary()
		points = asJSON(c.LoyaltyPoints)
	}
	return map[string]any{
		"order_details":     cartLines(tc),
		"saved_methods":     saved,
		"accepted_methods":  lookupOr(tc, toolx.ToolPaymentMethods, "card, upi, netbanking, wallet, cod"),
		"loyalty_points":    points,
		"gift_card_balance": moneyx.Format(tc.CurrencySymbol, 0),
	}
}

func fulfillmentLookups(text string, tc contractx.TurnContext) []contractx.ToolRequest {
	location := customerLocation(tc)
	reqs := []contractx.ToolRequest{
		{Tool: toolx.ToolFulfillmentSlots, Args: map[string]any{"location": location}},
		{Tool: toolx.ToolFulfillmentPickup, Args: map[string]any{"location": location}},
	}
	for _, id := range orderPattern.FindAllString(text, maxSKULookups) {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolFulfillmentTrack, Args: map[string]any{"order_id": strings.ToUpper(id)}})
	}
	for _, trk := range trackingNumbers(text, tc) {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolFulfillmentTrack, Args: map[string]any{"tracking_number": trk}})
	}
	return reqs
}

func fulfillmentVars(tc contractx.TurnContext) map[string]any {
	details := cartLines(tc)
	if tc.Cart.IsEmpty() && tc.LastOrder != nil {
		details = orderLine(tc.LastOrder, tc.CurrencySymbol)
	}
	tier := "Bronze"
	if tc.Customer != nil {
		tier = tc.Customer.Tier()
	}
	subtotal := 0.0
	if tc.Cart != nil {
		subtotal = tc.Cart.Subtotal()
	}
	express := "Yes, " + moneyx.Format(tc.CurrencySymbol, fulfillmentx.ShippingFee(subtotal, domainx.FulfillmentExpressDelivery, tier))

	return map[string]any{
		"order_details":     details,
		"delivery_slots":    lookupOr(tc, toolx.ToolFulfillmentSlots, "No slots available"),
		"pickup_locations":  lookupOr(tc, toolx.ToolFulfillmentPickup, "No pickup stores"),
		"express_available": express,
		"tracking_details":  lookupOr(tc, toolx.ToolFulfillmentTrack, "No tracking requested"),
	}
}

func loyaltyLookups(_ string, tc contractx.TurnContext) []contractx.ToolRequest {
	reqs := []contractx.ToolRequest{promotionsRequest(tc), {Tool: toolx.ToolLoyaltyCoupons}}
	if tc.Customer != nil {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolLoyaltyTier, Args: map[string]any{"points": tc.Customer.LoyaltyPoints}})
	}
	return reqs
}

func loyaltyVars(tc contractx.TurnContext) map[string]any {
	tier, points, since, spent := "Not a member", "0", "Not a member", "No purchases yet"
	if c := tc.Customer; c != nil {
		tier, since = c.Tier(), valueOr(c.MemberSince, "Unknown")
		points = asJSON(c.LoyaltyPoints)
		if total := c.TotalSpent(); total > 0 {
			spent = moneyx.Format(tc.CurrencySymbol, total)
		}
		if res, ok := tc.Lookup(toolx.ToolLoyaltyTier); ok {
			if out, ok := res.(toolx.TierOutput); ok {
				points += " (worth " + moneyx.Format(tc.CurrencySymbol, out.PointsValue) + ")"
			}
		}
	}
	return map[string]any{
		"loyalty_tier":      tier,
		"points_balance":    points,
		"expiring_points":   "None in the next 30 days",
		"member_since":      since,
		"lifetime_spend":    spent,
		"active_promotions": activePromotions(tc),
		"available_coupons": lookupOr(tc, toolx.ToolLoyaltyCoupons, "None"),
	}
}

func postPurchaseLookups(text string, tc contractx.TurnContext) []contractx.ToolRequest {
	var reqs []contractx.ToolRequest
	for _, id := range orderPattern.FindAllString(text, maxSKULookups) {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolOrdersGet, Args: map[string]any{"order_id": strings.ToUpper(id)}})
	}
	if tc.Customer != nil {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolOrdersRecent, Args: map[string]any{"customer_id": tc.Customer.ID}})
	}
	for _, trk := range trackingNumbers(text, tc) {
		reqs = append(reqs, contractx.ToolRequest{Tool: toolx.ToolFulfillmentTrack, Args: map[string]any{"tracking_number": trk}})
	}
	return reqs
}

func postPurchaseVars(tc contractx.TurnContext) map[string]any {
	history := lookupsText(tc, toolx.ToolOrdersGet, toolx.ToolOrdersRecent, toolx.ToolFulfillmentTrack)
	if history == "" {
		switch {
		case tc.LastOrder != nil:
			history = orderLine(tc.LastOrder, tc.CurrencySymbol)
		case tc.Customer != nil:
			history = tc.Customer.PurchaseSummary(tc.CurrencySymbol)
		default:
			history = "No orders found"
		}
	}
	return map[string]any{
		"order_history":   history,
		"inquiry_details": tc.UserMessage,
	}
}

func promotionsRequest(tc contractx.TurnContext) contractx.ToolRequest {
	args := map[string]any{}
	if tc.Cart != nil && !tc.Cart.IsEmpty() {
		args["total"] = tc.Cart.Subtotal()
	}
	if tc.Customer != nil {
		args["tier"] = tc.Customer.Tier()
	}
	return contractx.ToolRequest{Tool: toolx.ToolLoyaltyPromotions, Args: args}
}

func customerLocation(tc contractx.TurnContext) string {
	if tc.Customer != nil && strings.TrimSpace(tc.Customer.PreferredStore) != "" {
		return tc.Customer.PreferredStore
	}
	return DefaultLocation
}

func preferredStore(tc contractx.TurnContext) string {
	if tc.Customer != nil && strings.TrimSpace(tc.Customer.PreferredStore) != "" {
		return tc.Customer.PreferredStore
	}
	return DefaultPreferredStore
}

// mentionedSKUs returns SKU-shaped tokens from text, then cart SKUs, deduplicated.
func mentionedSKUs(text string, tc contractx.TurnContext) []string {
	seen := map[string]bool{}
	var out []string
	add := func(sku string) {
		sku = strings.ToUpper(sku)
		if seen[sku] || len(out) >= maxSKULookups {
			return
		}
		seen[sku] = true
		out = append(out, sku)
	}
	for _, tok := range skuPattern.FindAllString(text, -1) {
		add(tok)
	}
	if tc.Cart != nil {
		for _, item := range tc.Cart.Items {
			add(item.SKU)
		}
	}
	return out
}

func trackingNumbers(text string, tc contractx.TurnContext) []string {
	var out []string
	for _, trk := range trackingPattern.FindAllString(text, maxSKULookups) {
		out = append(out, strings.ToUpper(trk))
	}
	if len(out) == 0 && tc.LastOrder != nil && tc.LastOrder.TrackingNumber != "" {
		out = append(out, tc.LastOrder.TrackingNumber)
	}
	return out
}
