package workflow

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

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
	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

func ptr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

type declineGateway struct {
	calls int
}

func (g *declineGateway) Process(context.Context, paymentx.Request) (paymentx.Result, error) {
	g.calls++
	return paymentx.Result{}, errors.New("card declined")
}

func (g *declineGateway) Verify(context.Context, string) (paymentx.Verification, error) {
	return paymentx.Verification{Status: "not_found"}, nil
}

func (g *declineGateway) Refund(context.Context, string, *float64) (paymentx.Refund, error) {
	return paymentx.Refund{}, contractx.ErrTransactionNotFound
}

type flakyScheduler struct {
	mu       sync.Mutex
	failures int
	calls    int
	inner    *fulfillmentx.Service
}

func (s *flakyScheduler) ScheduleDelivery(ctx context.Context, req fulfillmentx.DeliveryRequest) (fulfillmentx.Delivery, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return fulfillmentx.Delivery{}, errors.New("carrier timeout")
	}
	return s.inner.ScheduleDelivery(ctx, req)
}

type recordingReconciler struct {
	jobs []ReconcileJob
}

func (r *recordingReconciler) EnqueueDelivery(_ context.Context, job ReconcileJob) error {
	r.jobs = append(r.jobs, job)
	return nil
}

type saveRecorder struct {
	repositoryx.OrderRepository
	saves []domainx.Order
}

func (r *saveRecorder) Save(ctx context.Context, o *domainx.Order) error {
	r.saves = append(r.saves, *o)
	return r.OrderRepository.Save(ctx, o)
}

type fixture struct {
	engine     *Engine
	orders     *repositoryx.MemoryOrderRepository
	scheduler  *flakyScheduler
	reconciler *recordingReconciler
}

func newFixture(t *testing.T, gateway paymentx.Gateway, promos []loyaltyx.Promotion) *fixture {
	t.Helper()

	catalog := catalogx.New(catalogx.File{Products: []domainx.Product{
		{SKU: "KUR001", Name: "Cotton Kurta", Category: "ethnic", Price: 1499, Images: []string{"kurta.jpg"}},
		{SKU: "SHI001", Name: "Linen Shirt", Category: "shirts", Price: 2499},
	}})
	stock := inventoryx.New(inventoryx.File{Inventory: map[string]inventoryx.Level{
		"KUR001": {Online: inventoryx.Stock{"Blue": {"M": 3, "L": 10}}},
		"SHI001": {Online: inventoryx.Stock{"White": {"M": 5}}},
	}})
	customers := customerx.New(customerx.File{Customers: []domainx.Customer{
		{ID: "CUST001", Name: "Priya", LoyaltyTier: "Silver"},
		{ID: "CUST002", Name: "Arjun"},
		{ID: "CUST003", Name: "Meera", Phone: "8888888888", SavedAddresses: []domainx.SavedAddress{
			{Type: "work", Address: "BKC, Mumbai"},
			{Type: "home", Address: "Koramangala, Bangalore", IsDefault: true},
		}},
	}})
	loyalty := loyaltyx.New(loyaltyx.RulesFile{Tiers: []loyaltyx.Tier{
		{Tier: "Bronze", MinPoints: 0, MaxPoints: intPtr(999), Benefits: loyaltyx.TierBenefits{PointsMultiplier: 1}},
		{Tier: "Silver", MinPoints: 1000, Benefits: loyaltyx.TierBenefits{PointsMultiplier: 1.25}},
	}}, loyaltyx.PromotionsFile{Promotions: promos})

	if gateway == nil {
		gateway = paymentx.NewMockGateway()
	}
	f := &fixture{
		orders:     repositoryx.NewMemoryOrderRepository(),
		scheduler:  &flakyScheduler{inner: fulfillmentx.New()},
		reconciler: &recordingReconciler{},
	}
	f.engine = New(Config{DeliveryRetries: 2}, Deps{
		Products:   catalog,
		Stock:      stock,
		Customers:  customers,
		Loyalty:    loyalty,
		Payments:   gateway,
		Deliveries: f.scheduler,
		Orders:     f.orders,
	}, WithReconciler(f.reconciler))
	f.engine.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

var defaultPromos = []loyaltyx.Promotion{
	{ID: "PCT10", Type: loyaltyx.PercentageDiscount, Value: 10, MaxDiscount: 500, MinPurchaseAmount: 2000, Active: true},
	{ID: "FLAT300", Type: loyaltyx.FlatDiscount, Value: 300, MinPurchaseAmount: 2500, Active: true},
}

func checkoutRequest(customerID string) CheckoutRequest {
	return CheckoutRequest{
		CustomerID:      customerID,
		ShippingAddress: domainx.ShippingAddress{Name: "Priya", Address: "Andheri, Mumbai", Phone: "9999999999"},
		PaymentMethod:   paymentx.MethodUPI,
		FulfillmentType: domainx.FulfillmentHomeDelivery,
	}
}

func TestAddToCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, defaultPromos)
	cart := domainx.NewCart("CUST001", time.Now())

	res, err := f.engine.AddToCart(cart, "KUR001", 2, ptr("M"), ptr("Blue"))
	require.NoError(t, err)
	require.Equal(t, "Added Cotton Kurta to cart", res.Message)
	require.Equal(t, "2 items, Total: ₹2,998", res.Summary)
	require.Equal(t, "kurta.jpg", cart.Items[0].Image)

	_, err = f.engine.AddToCart(cart, "KUR001", 4, ptr("M"), ptr("Blue"))
	require.ErrorIs(t, err, contractx.ErrInsufficientStock)
	require.Contains(t, err.Error(), "Only 3 units available")
	require.Equal(t, 2, cart.ItemCount())

	_, err = f.engine.AddToCart(cart, "NOPE", 1, nil, nil)
	require.ErrorIs(t, err, contractx.ErrProductNotFound)

	_, err = f.engine.AddToCart(cart, "KUR001", 0, nil, nil)
	require.ErrorIs(t, err, contractx.ErrValidation)
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, defaultPromos)
	cart := domainx.NewCart("CUST001", time.Now())
	_, err := f.engine.AddToCart(cart, "KUR001", 1, ptr("M"), ptr("Blue"))
	require.NoError(t, err)
	_, err = f.engine.AddToCart(cart, "KUR001", 1, ptr("L"), ptr("Blue"))
	require.NoError(t, err)

	_, err = f.engine.UpdateCartItem(cart, "KUR001", 5, ptr("M"), ptr("Blue"))
	require.ErrorIs(t, err, contractx.ErrInsufficientStock)

	_, err = f.engine.UpdateCartItem(cart, "KUR001", 3, ptr("M"), ptr("Blue"))
	require.NoError(t, err)
	line, _ := cart.Line("KUR001", ptr("M"), ptr("Blue"))
	require.Equal(t, 3, line.Quantity)

	res, err := f.engine.UpdateCartItem(cart, "KUR001", 0, ptr("L"), nil)
	require.NoError(t, err)
	require.Equal(t, "Removed KUR001 from cart", res.Message)
	require.Len(t, cart.Items, 1)

	_, err = f.engine.RemoveFromCart(cart, "SHI001", nil, nil)
	require.ErrorIs(t, err, contractx.ErrProductNotFound)

	_, err = f.engine.RemoveFromCart(cart, "KUR001", nil, nil)
	require.NoError(t, err)
	require.True(t, cart.IsEmpty())
}

func TestWorkflowState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	cart := domainx.NewCart("CUST001", time.Now())
	require.Equal(t, statex.WorkflowBrowsing, f.engine.WorkflowState(cart, "CUST001"))
	require.Equal(t, statex.WorkflowBrowsing, f.engine.WorkflowState(nil, "CUST001"))

	_, err := f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)
	require.Equal(t, statex.WorkflowCart, f.engine.WorkflowState(cart, "CUST001"))
	require.Equal(t, statex.WorkflowBrowsing, f.engine.WorkflowState(cart, ""))
}

func TestCreateOrderFromCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, defaultPromos)
	ctx := context.Background()
	cart := domainx.NewCart("CUST001", time.Now())
	_, err := f.engine.AddToCart(cart, "KUR001", 2, ptr("L"), ptr("Blue"))
	require.NoError(t, err)

	res, err := f.engine.CreateOrderFromCart(ctx, cart, checkoutRequest("CUST001"))
	require.NoError(t, err)

	o := res.Order
	require.Equal(t, 2998.0, o.Subtotal)
	// PCT10 gives 299.80, FLAT300 gives 300: the strictly larger one wins.
	require.Equal(t, 300.0, o.Discount)
	require.Equal(t, []string{"FLAT300"}, o.AppliedPromotions)
	require.Zero(t, o.ShippingFee)
	require.Equal(t, 485.64, o.Tax)
	require.InDelta(t, 3183.64, o.Total, 1e-9)
	require.InDelta(t, o.Subtotal-o.Discount+o.ShippingFee+o.Tax, o.Total, 1e-9)
	require.Equal(t, domainx.OrderConfirmed, o.Status)
	require.Equal(t, domainx.PaymentCompleted, o.Payment.Status)
	require.True(t, strings.HasPrefix(o.Payment.TransactionID, "TXN"))
	require.True(t, strings.HasPrefix(o.TrackingNumber, "TRK"))
	require.NotNil(t, o.EstimatedDelivery)
	require.Equal(t, 38, res.PointsEarned)
	require.Equal(t, 38, o.LoyaltyPointsEarned)
	require.True(t, cart.IsEmpty())
	require.Len(t, o.Items, 1)

	stored, err := f.orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, o.TrackingNumber, stored.TrackingNumber)
	require.Equal(t, 38, stored.LoyaltyPointsEarned)
	require.Empty(t, f.reconciler.jobs)
}

func TestFirstOrderSaveIsComplete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, defaultPromos)
	recorder := &saveRecorder{OrderRepository: f.orders}
	f.engine.orders = recorder
	cart := domainx.NewCart("CUST001", time.Now())
	_, err := f.engine.AddToCart(cart, "KUR001", 2, ptr("L"), ptr("Blue"))
	require.NoError(t, err)

	res, err := f.engine.CreateOrderFromCart(context.Background(), cart, checkoutRequest("CUST001"))
	require.NoError(t, err)
	require.Len(t, recorder.saves, 2)

	first := recorder.saves[0]
	require.Equal(t, res.PointsEarned, first.LoyaltyPointsEarned)
	require.Equal(t, []string{"FLAT300"}, first.AppliedPromotions)
	require.Empty(t, first.TrackingNumber)
	require.Equal(t, res.Order.TrackingNumber, recorder.saves[1].TrackingNumber)
}

func TestCheckoutShippingAddress(t *testing.T) {
	t.Parallel()

	gateway := &declineGateway{}
	f := newFixture(t, gateway, nil)
	ctx := context.Background()
	cart := domainx.NewCart("CUST002", time.Now())
	_, err := f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)

	for _, ft := range []domainx.FulfillmentType{domainx.FulfillmentHomeDelivery, domainx.FulfillmentExpressDelivery, ""} {
		req := checkoutRequest("CUST002")
		req.ShippingAddress = domainx.ShippingAddress{}
		req.FulfillmentType = ft
		_, err = f.engine.CreateOrderFromCart(ctx, cart, req)
		require.ErrorIs(t, err, contractx.ErrValidation, "fulfillment %q", ft)
	}
	require.Zero(t, gateway.calls)
	require.False(t, cart.IsEmpty())

	req := checkoutRequest("CUST002")
	req.ShippingAddress.Phone = ""
	_, err = f.engine.CreateOrderFromCart(ctx, cart, req)
	require.ErrorIs(t, err, contractx.ErrValidation)
	require.Contains(t, err.Error(), "phone")
	require.Zero(t, gateway.calls)
}

func TestCheckoutUsesSavedDefaultAddress(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	cart := domainx.NewCart("CUST003", time.Now())
	_, err := f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)

	req := checkoutRequest("CUST003")
	req.ShippingAddress = domainx.ShippingAddress{}
	res, err := f.engine.CreateOrderFromCart(context.Background(), cart, req)
	require.NoError(t, err)
	require.Equal(t, domainx.ShippingAddress{Name: "Meera", Address: "Koramangala, Bangalore", Phone: "8888888888"}, res.Order.ShippingAddress)
	require.NotEmpty(t, res.Order.TrackingNumber)
}

func TestCreateOrderPreconditions(t *testing.T) {
	t.Parallel()

	gateway := &declineGateway{}
	f := newFixture(t, gateway, defaultPromos)
	ctx := context.Background()

	_, err := f.engine.CreateOrderFromCart(ctx, domainx.NewCart("CUST001", time.Now()), checkoutRequest("CUST001"))
	require.ErrorIs(t, err, contractx.ErrEmptyCart)

	cart := domainx.NewCart("CUST404", time.Now())
	_, err = f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)
	_, err = f.engine.CreateOrderFromCart(ctx, cart, checkoutRequest("CUST404"))
	require.ErrorIs(t, err, contractx.ErrCustomerNotFound)
	require.Zero(t, gateway.calls)
}

func TestPaymentFailureLeavesCartAndOrdersUntouched(t *testing.T) {
	t.Parallel()

	gateway := &declineGateway{}
	f := newFixture(t, gateway, defaultPromos)
	ctx := context.Background()
	cart := domainx.NewCart("CUST001", time.Now())
	_, err := f.engine.AddToCart(cart, "SHI001", 2, ptr("M"), ptr("White"))
	require.NoError(t, err)
	before := cart.Clone()

	_, err = f.engine.CreateOrderFromCart(ctx, cart, checkoutRequest("CUST001"))
	require.ErrorIs(t, err, contractx.ErrPaymentFailed)
	require.Equal(t, 1, gateway.calls)
	require.Equal(t, before.Items, cart.Items)
	require.Equal(t, before.UpdatedAt, cart.UpdatedAt)

	orders, err := f.orders.ListByCustomer(ctx, "CUST001", 0)
	require.NoError(t, err)
	require.Empty(t, orders)
	require.Zero(t, f.scheduler.calls)
}

func TestDeliveryRetrySucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	f.scheduler.failures = 1
	cart := domainx.NewCart("CUST002", time.Now())
	_, err := f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)

	res, err := f.engine.CreateOrderFromCart(context.Background(), cart, checkoutRequest("CUST002"))
	require.NoError(t, err)
	require.Equal(t, 2, f.scheduler.calls)
	require.NotEmpty(t, res.Order.TrackingNumber)
	require.Empty(t, res.Order.Notes)
	require.Empty(t, f.reconciler.jobs)
}

func TestDeliveryFailureIsReconciled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	f.scheduler.failures = 2
	ctx := context.Background()
	cart := domainx.NewCart("CUST002", time.Now())
	_, err := f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)

	res, err := f.engine.CreateOrderFromCart(ctx, cart, checkoutRequest("CUST002"))
	require.NoError(t, err)
	o := res.Order
	require.Equal(t, domainx.OrderConfirmed, o.Status)
	require.Equal(t, domainx.NoteDeliveryPending, o.Notes)
	require.Empty(t, o.TrackingNumber)
	require.True(t, cart.IsEmpty())
	require.Equal(t, []ReconcileJob{{OrderID: o.OrderID, Address: "Andheri, Mumbai", FulfillmentType: domainx.FulfillmentHomeDelivery}}, f.reconciler.jobs)

	stored, err := f.orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, domainx.NoteDeliveryPending, stored.Notes)

	reconciled, err := f.engine.ReconcileDelivery(ctx, f.reconciler.jobs[0])
	require.NoError(t, err)
	require.NotEmpty(t, reconciled.TrackingNumber)
	require.Empty(t, reconciled.Notes)

	again, err := f.engine.ReconcileDelivery(ctx, f.reconciler.jobs[0])
	require.NoError(t, err)
	require.Equal(t, reconciled.TrackingNumber, again.TrackingNumber)
	require.Equal(t, 3, f.scheduler.calls)

	_, err = f.engine.ReconcileDelivery(ctx, ReconcileJob{OrderID: "ORDNOPE"})
	require.ErrorIs(t, err, contractx.ErrOrderNotFound)
}

func TestStorePickupSkipsDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, nil)
	cart := domainx.NewCart("CUST002", time.Now())
	_, err := f.engine.AddToCart(cart, "KUR001", 1, ptr("M"), ptr("Blue"))
	require.NoError(t, err)

	req := checkoutRequest("CUST002")
	req.FulfillmentType = domainx.FulfillmentStorePickup
	res, err := f.engine.CreateOrderFromCart(context.Background(), cart, req)
	require.NoError(t, err)
	require.Zero(t, res.Order.ShippingFee)
	require.Empty(t, res.Order.TrackingNumber)
	require.Zero(t, f.scheduler.calls)

	stored, err := f.orders.Get(context.Background(), res.Order.OrderID)
	require.NoError(t, err)
	require.Equal(t, res.PointsEarned, stored.LoyaltyPointsEarned)
}

func TestPriceTieKeepsFirstPromotion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, []loyaltyx.Promotion{
		{ID: "FIRST", Type: loyaltyx.FlatDiscount, Value: 300, Active: true},
		{ID: "SECOND", Type: loyaltyx.PercentageDiscount, Value: 10, MaxDiscount: 300, Active: true},
	})
	cart := domainx.NewCart("CUST002", time.Now())
	_, err := f.engine.AddToCart(cart, "KUR001", 2, ptr("L"), ptr("Blue"))
	require.NoError(t, err)
	_, err = f.engine.AddToCart(cart, "SHI001", 1, ptr("M"), ptr("White"))
	require.NoError(t, err)

	q := f.engine.Price(cart, "Bronze", domainx.FulfillmentHomeDelivery)
	require.Equal(t, 5497.0, q.Subtotal)
	require.NotNil(t, q.Promotion)
	require.Equal(t, "FIRST", q.Promotion.ID)
	require.Equal(t, 300.0, q.Discount)
}

func TestPricingInvariantProperty(t *testing.T) {
	f := newFixture(t, nil, defaultPromos)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	tiers := []string{"Bronze", "Silver", "Gold", "Platinum", "Unknown"}
	types := []domainx.FulfillmentType{
		domainx.FulfillmentHomeDelivery,
		domainx.FulfillmentExpressDelivery,
		domainx.FulfillmentStorePickup,
		domainx.FulfillmentClickCollect,
	}

	properties.Property("total = subtotal - discount + shipping + tax", prop.ForAll(
		func(kurtas, shirts, tierIdx, typeIdx int) bool {
			cart := domainx.NewCart("CUST002", time.Now())
			if kurtas > 0 {
				cart.Items = append(cart.Items, domainx.CartItem{SKU: "KUR001", Price: 1499, Quantity: kurtas})
			}
			if shirts > 0 {
				cart.Items = append(cart.Items, domainx.CartItem{SKU: "SHI001", Price: 2499, Quantity: shirts})
			}
			q := f.engine.Price(cart, tiers[tierIdx], types[typeIdx])

			if math.Abs(q.Total-(q.Subtotal-q.Discount+q.ShippingFee+q.Tax)) > 1e-9 {
				return false
			}
			if q.Tax != moneyx.Round((q.Subtotal-q.Discount+q.ShippingFee)*TaxRate) {
				return false
			}
			if q.Discount < 0 || q.ShippingFee < 0 {
				return false
			}
			return q.ShippingFee == 0 || q.ShippingFee == 100 || q.ShippingFee == 200
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 5),
		gen.IntRange(0, len(tiers)-1),
		gen.IntRange(0, len(types)-1),
	))

	properties.TestingRun(t)
}
