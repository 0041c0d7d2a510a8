package specialist

import (
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	toolx "github.com/tanpawarit/chative-retail/agent/tool"
	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

func asJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

// lookupOr renders the first successful result for tool, or fallback.
func lookupOr(tc contractx.TurnContext, tool, fallback string) string {
	res, ok := tc.Lookup(tool)
	if !ok {
		return fallback
	}
	return asJSON(res)
}

// lookupsText renders every successful result of the given tools, one per line.
func lookupsText(tc contractx.TurnContext, tools ...string) string {
	want := make(map[string]bool, len(tools))
	for _, t := range tools {
		want[t] = true
	}
	var lines []string
	for _, r := range tc.Lookups {
		if want[r.Tool] && r.Error == "" {
			lines = append(lines, r.Tool+": "+asJSON(r.Result))
		}
	}
	return strings.Join(lines, "\n")
}

func productsText(tc contractx.TurnContext, tool, fallback string) string {
	res, ok := tc.Lookup(tool)
	if !ok {
		return fallback
	}
	products, ok := res.([]domainx.Product)
	if !ok {
		return asJSON(res)
	}
	if len(products) == 0 {
		return fallback
	}
	lines := make([]string, 0, len(products))
	for _, p := range products {
		line := "- " + p.Headline(tc.CurrencySymbol)
		if p.DiscountPercent > 0 {
			line += ", " + p.DiscountInfo(tc.CurrencySymbol)
		}
		if len(p.Sizes) > 0 {
			line += ", sizes " + strings.Join(p.Sizes, "/")
		}
		if len(p.Colors) > 0 {
			line += ", colours " + strings.Join(p.Colors, "/")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func activePromotions(tc contractx.TurnContext) string {
	res, ok := tc.Lookup(toolx.ToolLoyaltyPromotions)
	if !ok {
		return "None"
	}
	out, ok := res.(toolx.PromotionsOutput)
	if !ok {
		return asJSON(res)
	}
	if len(out.Active) == 0 {
		return "None"
	}
	applicable := make(map[string]bool, len(out.Applicable))
	for _, p := range out.Applicable {
		applicable[p.ID] = true
	}
	names := make([]string, 0, len(out.Active))
	for _, p := range out.Active {
		name := p.Name
		if applicable[p.ID] {
			name += " (applies to the current cart)"
		}
		names = append(names, name)
	}
	return strings.Join(names, "; ")
}

func cartLines(tc contractx.TurnContext) string {
	if tc.Cart.IsEmpty() {
		return "Cart is empty"
	}
	lines := make([]string, 0, len(tc.Cart.Items)+1)
	for _, item := range tc.Cart.Items {
		line := fmt.Sprintf("- %s x%d at %s", item.Name, item.Quantity, moneyx.Format(tc.CurrencySymbol, item.Price))
		if item.Size != nil {
			line += ", size " + *item.Size
		}
		if item.Color != nil {
			line += ", " + *item.Color
		}
		lines = append(lines, line)
	}
	lines = append(lines, tc.Cart.Summary(tc.CurrencySymbol))
	return strings.Join(lines, "\n")
}

func orderLine(o *domainx.Order, symbol string) string {
	line := fmt.Sprintf("Order %s: %s, %d lines, total %s", o.OrderID, o.Status, len(o.Items), moneyx.FormatExact(symbol, o.Total))
	if o.TrackingNumber != "" {
		line += ", tracking " + o.TrackingNumber
	}
	return line
}
