package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	orchestratorx "github.com/tanpawarit/chative-retail/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	repositoryx "github.com/tanpawarit/chative-retail/agent/repository"
	catalogx "github.com/tanpawarit/chative-retail/agent/service/catalog"
	customerx "github.com/tanpawarit/chative-retail/agent/service/customer"
	fulfillmentx "github.com/tanpawarit/chative-retail/agent/service/fulfillment"
	inventoryx "github.com/tanpawarit/chative-retail/agent/service/inventory"
	loyaltyx "github.com/tanpawarit/chative-retail/agent/service/loyalty"
	paymentx "github.com/tanpawarit/chative-retail/agent/service/payment"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	"github.com/tanpawarit/chative-retail/agent/workflow"
	qstashx "github.com/tanpawarit/chative-retail/pkg/qstash"
)

const (
	testSigningKey = "sig_current"
	testReconcile  = "https://shop.example/internal/reconcile-delivery"
)

type echoSpecialist struct {
	err error
}

func (echoSpecialist) Name() contractx.HandlerName { return contractx.HandlerSales }

func (echoSpecialist) CanHandle(string, contractx.TurnContext) bool { return true }

func (echoSpecialist) Lookups(string, contractx.TurnContext) []contractx.ToolRequest { return nil }

func (echoSpecialist) BuildInstructions(contractx.TurnContext) (string, error) {
	return "you are a sales assistant", nil
}

func (e echoSpecialist) Generate(_ context.Context, req contractx.GenerationRequest) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "echo: " + req.UserMessage, nil
}

func (e echoSpecialist) Stream(_ context.Context, req contractx.GenerationRequest) (*schema.StreamReader[*schema.Message], error) {
	if e.err != nil {
		return nil, e.err
	}
	return schema.StreamReaderFromArray([]*schema.Message{
		schema.AssistantMessage("echo: ", nil),
		schema.AssistantMessage("", nil),
		schema.AssistantMessage(req.UserMessage, nil),
	}), nil
}

type echoRegistry struct {
	specialist echoSpecialist
}

func (r echoRegistry) Dispatch(string, contractx.TurnContext) contractx.Specialist { return r.specialist }

func (r echoRegistry) Get(contractx.HandlerName) (contractx.Specialist, bool) { return r.specialist, true }

type testEnv struct {
	handler http.Handler
	store   statex.Store
	orders  *repositoryx.MemoryOrderRepository
}

func newTestEnv(t *testing.T, specialist echoSpecialist) *testEnv {
	t.Helper()

	store := statex.NewMemoryStore()
	locks := statex.NewKeyedMutex()
	customers := customerx.New(customerx.File{Customers: []domainx.Customer{
		{ID: "CUST001", Name: "Priya", LoyaltyTier: "Silver"},
	}})
	orders := repositoryx.NewMemoryOrderRepository()

	chat, err := orchestratorx.New(orchestratorx.Deps{
		Store:     store,
		Handlers:  echoRegistry{specialist: specialist},
		Customers: customers,
		Orders:    orders,
	}, orchestratorx.Config{StoreName: "Fashion Store"}, orchestratorx.WithLocks(locks))
	if err != nil {
		t.Fatalf("orchestrator.New() error = %v", err)
	}

	engine := workflow.New(workflow.Config{DeliveryRetries: 1}, workflow.Deps{
		Products: catalogx.New(catalogx.File{Products: []domainx.Product{
			{SKU: "KUR001", Name: "Cotton Kurta", Category: "ethnic", Price: 1499},
		}}),
		Stock: inventoryx.New(inventoryx.File{Inventory: map[string]inventoryx.Level{
			"KUR001": {Online: inventoryx.Stock{"Blue": {"M": 3}}},
		}}),
		Customers:  customers,
		Loyalty:    loyaltyx.New(loyaltyx.RulesFile{}, loyaltyx.PromotionsFile{}),
		Payments:   paymentx.NewMockGateway(),
		Deliveries: fulfillmentx.New(),
		Orders:     orders,
	})

	verifier, err := qstashx.NewClient(qstashx.Config{
		URL:               "https://qstash.example",
		Token:             "token",
		CurrentSigningKey: testSigningKey,
		NextSigningKey:    "sig_next",
	})
	if err != nil {
		t.Fatalf("qstash.NewClient() error = %v", err)
	}

	srv, err := New(Config{ReconcileURL: testReconcile, MaxBodySize: 4096}, Deps{
		Chat:     chat,
		Commerce: engine,
		Sessions: store,
		Locks:    locks,
		Verifier: verifier,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{handler: srv.Handler(), store: store, orders: orders}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, Deps{}); err == nil {
		t.Fatal("expected error without chat service")
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec)["status"]; got != "ok" {
		t.Fatalf("status field = %q, want ok", got)
	}
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	rec := env.do(t, http.MethodPost, "/chat/message", MessageRequest{
		SessionID:  "S1",
		CustomerID: "CUST001",
		Channel:    "whatsapp",
		Message:    "show me kurtas",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	got := decodeBody[MessageResponse](t, rec)
	if got.SessionID != "S1" || got.Handler != contractx.HandlerSales || got.Reply != "echo: show me kurtas" {
		t.Fatalf("unexpected response: %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/chat/session/S1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get session status = %d", rec.Code)
	}
	session := decodeBody[statex.Session](t, rec)
	if len(session.Messages) != 2 || session.Channel != "whatsapp" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestPostMessageValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	rec := env.do(t, http.MethodPost, "/chat/message", MessageRequest{SessionID: "S1", Message: "   "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/chat/message", "{not json")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed body status = %d, want 422", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/chat/message", MessageRequest{SessionID: "S1", Message: strings.Repeat("a", 5000)})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status = %d, want 413", rec.Code)
	}
}

func TestPostMessageModelFailureIsGeneric(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{err: contractx.ErrModelInvoke})
	rec := env.do(t, http.MethodPost, "/chat/message", MessageRequest{SessionID: "S1", Message: "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), contractx.ErrModelInvoke.Error()) {
		t.Fatalf("provider detail leaked: %s", rec.Body.String())
	}
}

func TestStreamMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	rec := env.do(t, http.MethodPost, "/chat/message/stream", MessageRequest{SessionID: "S2", Message: "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	want := "data: {\"chunk\":\"echo: \"}\n\n" +
		"data: {\"chunk\":\"hello\"}\n\n" +
		"data: {\"done\":true,\"session_id\":\"S2\",\"handler\":\"sales\"}\n\n"
	if rec.Body.String() != want {
		t.Fatalf("body =\n%s\nwant\n%s", rec.Body.String(), want)
	}

	session, err := env.store.Get(context.Background(), "S2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if n := len(session.Messages); n != 2 || session.Messages[1].Content != "echo: hello" {
		t.Fatalf("unexpected messages: %+v", session.Messages)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	rec := env.do(t, http.MethodGet, "/chat/session/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCartLifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	size, color := "M", "Blue"

	rec := env.do(t, http.MethodPost, "/cart/items", CartItemRequest{
		SessionID: "S3", CustomerID: "CUST001", SKU: "KUR001", Quantity: 2, Size: &size, Color: &color,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d body=%s", rec.Code, rec.Body.String())
	}
	added := decodeBody[CartResponse](t, rec)
	if added.Cart == nil || len(added.Cart.Items) != 1 || added.Cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %+v", added.Cart)
	}
	if added.WorkflowState != statex.WorkflowCart {
		t.Fatalf("workflow state = %q, want cart", added.WorkflowState)
	}

	rec = env.do(t, http.MethodPost, "/cart/items", CartItemRequest{
		SessionID: "S3", SKU: "KUR001", Quantity: 5, Size: &size, Color: &color,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient stock status = %d, want 422", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/cart/items", CartItemRequest{SessionID: "S3", SKU: "NOPE", Quantity: 1})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown sku status = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/cart/items", CartItemRequest{
		SessionID: "S3", SKU: "KUR001", Quantity: 3, Size: &size, Color: &color,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, "/cart/items", CartItemRequest{SessionID: "S3", SKU: "KUR001"})
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d body=%s", rec.Code, rec.Body.String())
	}
	removed := decodeBody[CartResponse](t, rec)
	if len(removed.Cart.Items) != 0 || removed.WorkflowState != statex.WorkflowBrowsing {
		t.Fatalf("unexpected cart after remove: %+v state=%s", removed.Cart, removed.WorkflowState)
	}
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	size, color := "M", "Blue"
	rec := env.do(t, http.MethodPost, "/cart/items", CartItemRequest{
		SessionID: "S4", CustomerID: "CUST001", SKU: "KUR001", Quantity: 1, Size: &size, Color: &color,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/checkout", CheckoutRequest{
		SessionID:       "S4",
		ShippingAddress: domainx.ShippingAddress{Name: "Priya", Address: "12 MG Road, Bangalore", Phone: "9999999999"},
		PaymentMethod:   "upi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d body=%s", rec.Code, rec.Body.String())
	}
	out := decodeBody[CheckoutResponse](t, rec)
	if out.Order == nil || out.Order.Status != domainx.OrderConfirmed || out.Order.TrackingNumber == "" {
		t.Fatalf("unexpected order: %+v", out.Order)
	}

	session, err := env.store.Get(context.Background(), "S4")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !session.Context.Cart.IsEmpty() {
		t.Fatal("cart should be cleared after checkout")
	}
	if session.Context.LastOrderID != out.Order.OrderID || session.WorkflowState != statex.WorkflowPostPurchase {
		t.Fatalf("session not updated: last_order=%q state=%q", session.Context.LastOrderID, session.WorkflowState)
	}

	rec = env.do(t, http.MethodGet, "/orders/"+out.Order.OrderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/checkout", CheckoutRequest{SessionID: "S4", PaymentMethod: "upi"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty cart status = %d, want 422", rec.Code)
	}
}

func TestCheckoutRequiresShippingAddress(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	size, color := "M", "Blue"
	rec := env.do(t, http.MethodPost, "/cart/items", CartItemRequest{
		SessionID: "S6", CustomerID: "CUST001", SKU: "KUR001", Quantity: 1, Size: &size, Color: &color,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/checkout", CheckoutRequest{
		SessionID:       "S6",
		PaymentMethod:   "card",
		FulfillmentType: domainx.FulfillmentExpressDelivery,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 body=%s", rec.Code, rec.Body.String())
	}

	session, err := env.store.Get(context.Background(), "S6")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.Context.Cart.IsEmpty() || session.Context.LastOrderID != "" {
		t.Fatalf("cart must survive a rejected checkout: %+v", session.Context)
	}
}

func TestCheckoutRequiresCustomer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	if _, err := env.store.Create(context.Background(), "S5", "", "web_chat"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec := env.do(t, http.MethodPost, "/checkout", CheckoutRequest{SessionID: "S5", PaymentMethod: "card"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestReconcileDelivery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, echoSpecialist{})
	now := time.Now()
	pending := &domainx.Order{
		OrderID:         "ORD0000PEND",
		CustomerID:      "CUST001",
		Status:          domainx.OrderConfirmed,
		FulfillmentType: domainx.FulfillmentHomeDelivery,
		ShippingAddress: domainx.ShippingAddress{Address: "12 MG Road"},
		Notes:           domainx.NoteDeliveryPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := env.orders.Save(context.Background(), pending); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	body := []byte(`{"order_id":"ORD0000PEND"}`)
	rec := env.do(t, http.MethodPost, "/internal/reconcile-delivery", string(body), signatureHeader, "not-a-jwt")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d, want 401", rec.Code)
	}

	sig, err := qstashx.Sign(testSigningKey, testReconcile, body, now)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	rec = env.do(t, http.MethodPost, "/internal/reconcile-delivery", string(body), signatureHeader, sig)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	order := decodeBody[domainx.Order](t, rec)
	if order.TrackingNumber == "" || order.Notes == domainx.NoteDeliveryPending {
		t.Fatalf("order not reconciled: %+v", order)
	}

	missing := []byte(`{"order_id":"ORD_UNKNOWN"}`)
	sig, err = qstashx.Sign(testSigningKey, testReconcile, missing, now)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	rec = env.do(t, http.MethodPost, "/internal/reconcile-delivery", string(missing), signatureHeader, sig)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown order status = %d, want 404", rec.Code)
	}
}
