package contract

import (
	"github.com/cloudwego/eino/schema"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

type HandlerName string

const (
	HandlerSales          HandlerName = "sales"
	HandlerRecommendation HandlerName = "recommendation"
	HandlerInventory      HandlerName = "inventory"
	HandlerPayment        HandlerName = "payment"
	HandlerFulfillment    HandlerName = "fulfillment"
	HandlerLoyalty        HandlerName = "loyalty"
	HandlerPostPurchase   HandlerName = "post_purchase"
)

func HandlerNames() []HandlerName {
	return []HandlerName{
		HandlerSales,
		HandlerRecommendation,
		HandlerInventory,
		HandlerPayment,
		HandlerFulfillment,
		HandlerLoyalty,
		HandlerPostPurchase,
	}
}

// TurnContext is the auxiliary context a handler sees for one turn.
type TurnContext struct {
	SessionID      string            `json:"session_id"`
	Channel        string            `json:"channel"`
	StoreName      string            `json:"store_name"`
	CurrencySymbol string            `json:"currency_symbol"`
	Customer       *domainx.Customer `json:"customer,omitempty"`
	Cart           *domainx.Cart     `json:"cart,omitempty"`
	LastOrder      *domainx.Order    `json:"last_order,omitempty"`
	UserMessage    string            `json:"user_message"`
	Lookups        []ToolResult      `json:"lookups,omitempty"`
}

// Lookup returns the first successful result for tool.
func (tc TurnContext) Lookup(tool string) (any, bool) {
	for _, r := range tc.Lookups {
		if r.Tool == tool && r.Error == "" {
			return r.Result, true
		}
	}
	return nil, false
}

type GenerationRequest struct {
	Instructions string            `json:"instructions"`
	History      []*schema.Message `json:"history"`
	UserMessage  string            `json:"user_message"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
