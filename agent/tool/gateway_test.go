package tool

import (
	"context"
	"testing"
	"time"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	repositoryx "github.com/tanpawarit/chative-retail/agent/repository"
	catalogx "github.com/tanpawarit/chative-retail/agent/service/catalog"
	fulfillmentx "github.com/tanpawarit/chative-retail/agent/service/fulfillment"
	inventoryx "github.com/tanpawarit/chative-retail/agent/service/inventory"
	loyaltyx "github.com/tanpawarit/chative-retail/agent/service/loyalty"
	paymentx "github.com/tanpawarit/chative-retail/agent/service/payment"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	orders := repositoryx.NewMemoryOrderRepository()
	if err := orders.Save(context.Background(), &domainx.Order{OrderID: "ORD1", CustomerID: "CUST001", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	return NewGateway(Deps{
		Catalog: catalogx.New(catalogx.File{Products: []domainx.Product{
			{SKU: "KUR001", Name: "Cotton Kurta", Category: "ethnic", Price: 1499, Tags: []string{"casual"}},
		}}),
		Inventory: inventoryx.New(inventoryx.File{Inventory: map[string]inventoryx.Level{
			"KUR001": {
				Online: inventoryx.Stock{"Blue": {"M": 4}},
				Stores: map[string]inventoryx.Stock{"Mumbai - Phoenix Mall": {"Blue": {"M": 1}}},
			},
		}}),
		Loyalty: loyaltyx.New(loyaltyx.RulesFile{}, loyaltyx.PromotionsFile{Promotions: []loyaltyx.Promotion{
			{ID: "P1", Type: loyaltyx.FlatDiscount, Value: 100, MinPurchaseAmount: 1000, Active: true},
		}}),
		Fulfillment: fulfillmentx.New(),
		Orders:      orders,
	})
}

func TestExecuteInventoryCheck(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	out, err := g.Execute(context.Background(), contractx.HandlerInventory, []contractx.ToolRequest{
		{Tool: ToolInventoryCheck, Args: map[string]any{"sku": "KUR001", "color": "Blue", "size": "M", "location": "Mumbai"}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out) != 1 || out[0].Error != "" {
		t.Fatalf("Execute() = %+v", out)
	}
	stock, ok := out[0].Result.(StockOutput)
	if !ok {
		t.Fatalf("unexpected result type: %T", out[0].Result)
	}
	if !stock.Available || stock.Quantity != 4 || stock.Name != "Cotton Kurta" {
		t.Fatalf("unexpected stock: %+v", stock)
	}
	if len(stock.Stores) != 1 || stock.Stores[0] != "Mumbai - Phoenix Mall" {
		t.Fatalf("unexpected stores: %v", stock.Stores)
	}
}

func TestExecuteRejectsToolsOutsideHandler(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	out, err := g.Execute(context.Background(), contractx.HandlerSales, []contractx.ToolRequest{
		{Tool: ToolOrdersGet, Args: map[string]any{"order_id": "ORD1"}},
		{Tool: "math.evaluate"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, r := range out {
		if r.Error == "" {
			t.Fatalf("expected unavailable error for %s", r.Tool)
		}
	}
}

func TestExecuteRequiredArgs(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	out, _ := g.Execute(context.Background(), contractx.HandlerPostPurchase, []contractx.ToolRequest{
		{Tool: ToolOrdersGet},
	})
	if out[0].Error != "order_id is required" {
		t.Fatalf("unexpected error: %q", out[0].Error)
	}
}

func TestExecuteLookupFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	out, err := g.Execute(context.Background(), contractx.HandlerPostPurchase, []contractx.ToolRequest{
		{Tool: ToolOrdersGet, Args: map[string]any{"order_id": "NOPE"}},
		{Tool: ToolOrdersRecent, Args: map[string]any{"customer_id": "CUST001"}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out[0].Error == "" {
		t.Fatalf("expected not found error")
	}
	orders, ok := out[1].Result.([]*domainx.Order)
	if !ok || len(orders) != 1 {
		t.Fatalf("unexpected recent orders: %+v", out[1])
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGateway(t).Execute(ctx, contractx.HandlerPayment, []contractx.ToolRequest{{Tool: ToolPaymentMethods}})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestPaymentMethodsAndPromotions(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t)
	out, _ := g.Execute(context.Background(), contractx.HandlerPayment, []contractx.ToolRequest{
		{Tool: ToolPaymentMethods},
		{Tool: ToolLoyaltyPromotions, Args: map[string]any{"total": 1500.0, "tier": "Gold"}},
	})
	methods, ok := out[0].Result.([]paymentx.Method)
	if !ok || len(methods) != 5 {
		t.Fatalf("unexpected methods: %+v", out[0])
	}
	promos, ok := out[1].Result.(PromotionsOutput)
	if !ok || len(promos.Active) != 1 || len(promos.Applicable) != 1 {
		t.Fatalf("unexpected promotions: %+v", out[1])
	}
	if len(g.Describe(contractx.HandlerPayment)) != 2 {
		t.Fatalf("Describe() = %v", g.Describe(contractx.HandlerPayment))
	}
}

func TestTrackByOrderID(t *testing.T) {
	t.Parallel()

	deliveries := fulfillmentx.New()
	scheduled, err := deliveries.ScheduleDelivery(context.Background(), fulfillmentx.DeliveryRequest{
		OrderID: "ORD7",
		Address: "12 MG Road",
		Type:    domainx.FulfillmentHomeDelivery,
	})
	if err != nil {
		t.Fatalf("ScheduleDelivery() error = %v", err)
	}
	g := NewGateway(Deps{Fulfillment: deliveries})

	out, err := g.Execute(context.Background(), contractx.HandlerFulfillment, []contractx.ToolRequest{
		{Tool: ToolFulfillmentTrack, Args: map[string]any{"order_id": "ORD7"}},
		{Tool: ToolFulfillmentTrack, Args: map[string]any{"order_id": "ORD404"}},
		{Tool: ToolFulfillmentTrack},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	tracking, ok := out[0].Result.(fulfillmentx.Tracking)
	if !ok || tracking.TrackingNumber != scheduled.TrackingNumber {
		t.Fatalf("unexpected tracking result: %+v", out[0])
	}
	if out[1].Error == "" || out[2].Error == "" {
		t.Fatalf("expected lookup errors, got %+v / %+v", out[1], out[2])
	}
}
