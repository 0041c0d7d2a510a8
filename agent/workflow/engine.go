package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	repositoryx "github.com/tanpawarit/chative-retail/agent/repository"
	fulfillmentx "github.com/tanpawarit/chative-retail/agent/service/fulfillment"
	inventoryx "github.com/tanpawarit/chative-retail/agent/service/inventory"
	loyaltyx "github.com/tanpawarit/chative-retail/agent/service/loyalty"
	paymentx "github.com/tanpawarit/chative-retail/agent/service/payment"
	statex "github.com/tanpawarit/chative-retail/agent/state"
	idsx "github.com/tanpawarit/chative-retail/pkg/ids"
	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

const TaxRate = 0.18

type Config struct {
	DeliveryRetries    int           `split_words:"true" default:"3"`
	DeliveryRetryDelay time.Duration `split_words:"true" default:"200ms"`
	CurrencySymbol     string        `split_words:"true" default:"₹"`
	ReconcileRetries   int           `split_words:"true" default:"3"`
}

type ProductLookup interface {
	GetBySKU(sku string) (domainx.Product, error)
	CategoryOf(sku string) (string, bool)
}

type StockChecker interface {
	CheckAvailability(sku string, color, size *string, location string) (bool, int)
}

type CustomerLookup interface {
	Get(id string) (*domainx.Customer, error)
}

type Loyalty interface {
	BestPromotion(total float64, tier string, categories []string) (loyaltyx.Promotion, float64, bool)
	PointsEarned(amount float64, tier, category string) int
}

// ReconcileJob describes a paid order whose delivery still needs scheduling.
type ReconcileJob struct {
	OrderID         string                  `json:"order_id"`
	Address         string                  `json:"address"`
	FulfillmentType domainx.FulfillmentType `json:"fulfillment_type"`
}

type Reconciler interface {
	EnqueueDelivery(ctx context.Context, job ReconcileJob) error
}

type Engine struct {
	cfg        Config
	products   ProductLookup
	stock      StockChecker
	customers  CustomerLookup
	loyalty    Loyalty
	payments   paymentx.Gateway
	deliveries fulfillmentx.Scheduler
	orders     repositoryx.OrderRepository
	reconciler Reconciler
	now        func() time.Time
	sleep      func(context.Context, time.Duration) error
}

type Option func(*Engine)

func WithReconciler(r Reconciler) Option {
	return func(e *Engine) { e.reconciler = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type Deps struct {
	Products   ProductLookup
	Stock      StockChecker
	Customers  CustomerLookup
	Loyalty    Loyalty
	Payments   paymentx.Gateway
	Deliveries fulfillmentx.Scheduler
	Orders     repositoryx.OrderRepository
}

func New(cfg Config, deps Deps, opts ...Option) *Engine {
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = moneyx.DefaultSymbol
	}
	if cfg.DeliveryRetries < 1 {
		cfg.DeliveryRetries = 1
	}
	e := &Engine{
		cfg:        cfg,
		products:   deps.Products,
		stock:      deps.Stock,
		customers:  deps.Customers,
		loyalty:    deps.Loyalty,
		payments:   deps.Payments,
		deliveries: deps.Deliveries,
		orders:     deps.Orders,
		now:        time.Now,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type CartResult struct {
	Message string        `json:"message"`
	Summary string        `json:"cart_summary"`
	Cart    *domainx.Cart `json:"cart"`
}

// AddToCart is all-or-nothing per line: the exact variant must have at least
// quantity units online.
func (e *Engine) AddToCart(cart *domainx.Cart, sku string, quantity int, size, color *string) (CartResult, error) {
	if cart == nil {
		return CartResult{}, fmt.Errorf("%w: cart is required", contractx.ErrValidation)
	}
	if quantity < 1 {
		return CartResult{}, fmt.Errorf("%w: %v", contractx.ErrValidation, domainx.ErrInvalidQuantity)
	}
	product, err := e.products.GetBySKU(sku)
	if err != nil {
		return CartResult{}, err
	}
	if err := e.ensureStock(sku, quantity, size, color); err != nil {
		return CartResult{}, err
	}

	item := domainx.CartItem{
		SKU:      sku,
		Name:     product.Name,
		Price:    product.Price,
		Quantity: quantity,
		Size:     size,
		Color:    color,
	}
	if len(product.Images) > 0 {
		item.Image = product.Images[0]
	}
	if err := cart.Add(item, e.now()); err != nil {
		return CartResult{}, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return CartResult{
		Message: fmt.Sprintf("Added %s to cart", product.Name),
		Summary: cart.Summary(e.cfg.CurrencySymbol),
		Cart:    cart,
	}, nil
}

// UpdateCartItem sets the quantity of matching lines; quantity <= 0 removes them.
// Increases are checked against stock for the exact variant.
func (e *Engine) UpdateCartItem(cart *domainx.Cart, sku string, quantity int, size, color *string) (CartResult, error) {
	if cart == nil {
		return CartResult{}, fmt.Errorf("%w: cart is required", contractx.ErrValidation)
	}
	if quantity > 0 {
		current := 0
		if line, ok := cart.Line(sku, size, color); ok {
			current = line.Quantity
		}
		if quantity > current {
			if err := e.ensureStock(sku, quantity, size, color); err != nil {
				return CartResult{}, err
			}
		}
	}
	if !cart.UpdateQuantity(sku, quantity, size, color, e.now()) {
		return CartResult{}, fmt.Errorf("%w: sku=%s not in cart", contractx.ErrProductNotFound, sku)
	}
	msg := fmt.Sprintf("Updated %s quantity to %d", sku, quantity)
	if quantity <= 0 {
		msg = fmt.Sprintf("Removed %s from cart", sku)
	}
	return CartResult{Message: msg, Summary: cart.Summary(e.cfg.CurrencySymbol), Cart: cart}, nil
}

func (e *Engine) RemoveFromCart(cart *domainx.Cart, sku string, size, color *string) (CartResult, error) {
	if cart == nil {
		return CartResult{}, fmt.Errorf("%w: cart is required", contractx.ErrValidation)
	}
	if cart.Remove(sku, size, color, e.now()) == 0 {
		return CartResult{}, fmt.Errorf("%w: sku=%s not in cart", contractx.ErrProductNotFound, sku)
	}
	return CartResult{
		Message: fmt.Sprintf("Removed %s from cart", sku),
		Summary: cart.Summary(e.cfg.CurrencySymbol),
		Cart:    cart,
	}, nil
}

func (e *Engine) ensureStock(sku string, quantity int, size, color *string) error {
	ok, available := e.stock.CheckAvailability(sku, color, size, inventoryx.LocationOnline)
	if !ok || available < quantity {
		return fmt.Errorf("%w: Only %d units available", contractx.ErrInsufficientStock, available)
	}
	return nil
}

// WorkflowState is derived on read; nothing enforces transitions.
func (e *Engine) WorkflowState(cart *domainx.Cart, customerID string) statex.WorkflowState {
	if customerID == "" || cart.IsEmpty() {
		return statex.WorkflowBrowsing
	}
	return statex.WorkflowCart
}

type CheckoutRequest struct {
	CustomerID      string
	ShippingAddress domainx.ShippingAddress
	PaymentMethod   string
	FulfillmentType domainx.FulfillmentType
}

type CheckoutResult struct {
	Order        *domainx.Order `json:"order"`
	PointsEarned int            `json:"points_earned"`
	Message      string         `json:"message"`
}

// Quote is the priced cart before payment.
type Quote struct {
	Subtotal    float64
	Discount    float64
	ShippingFee float64
	Tax         float64
	Total       float64
	Promotion   *loyaltyx.Promotion
}

// Price runs the pricing steps of checkout without side effects.
func (e *Engine) Price(cart *domainx.Cart, tier string, ft domainx.FulfillmentType) Quote {
	q := Quote{Subtotal: cart.Subtotal()}
	if promo, discount, ok := e.loyalty.BestPromotion(q.Subtotal, tier, cart.Categories(e.products.CategoryOf)); ok {
		q.Discount = discount
		q.Promotion = &promo
	}
	q.ShippingFee = fulfillmentx.ShippingFee(q.Subtotal, ft, tier)
	q.Tax = moneyx.Round((q.Subtotal - q.Discount + q.ShippingFee) * TaxRate)
	q.Total = q.Subtotal - q.Discount + q.ShippingFee + q.Tax
	return q
}

// CreateOrderFromCart is the checkout pipeline. Nothing is written before
// payment succeeds; a payment failure leaves the cart untouched.
func (e *Engine) CreateOrderFromCart(ctx context.Context, cart *domainx.Cart, req CheckoutRequest) (CheckoutResult, error) {
	if cart.IsEmpty() {
		return CheckoutResult{}, contractx.ErrEmptyCart
	}
	customer, err := e.customers.Get(req.CustomerID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if req.FulfillmentType == "" {
		req.FulfillmentType = domainx.FulfillmentHomeDelivery
	}
	if req.FulfillmentType.Ships() {
		if req.ShippingAddress, err = shippingAddress(customer, req.ShippingAddress); err != nil {
			return CheckoutResult{}, err
		}
	}

	tier := customer.Tier()
	quote := e.Price(cart, tier, req.FulfillmentType)
	orderID := idsx.New("ORD")
	logger := log.Ctx(ctx).With().Str("order_id", orderID).Str("customer_id", customer.ID).Logger()

	payment, err := e.payments.Process(ctx, paymentx.Request{
		Amount:     quote.Total,
		Method:     req.PaymentMethod,
		CustomerID: customer.ID,
		OrderID:    orderID,
	})
	if err != nil {
		logger.Warn().Err(err).Float64("total", quote.Total).Msg("payment declined")
		if errors.Is(err, contractx.ErrPaymentFailed) {
			return CheckoutResult{}, err
		}
		return CheckoutResult{}, fmt.Errorf("%w: %v", contractx.ErrPaymentFailed, err)
	}

	now := e.now().UTC()
	order := &domainx.Order{
		OrderID:         orderID,
		CustomerID:      customer.ID,
		Items:           domainx.CloneItems(cart.Items),
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		ShippingFee:     quote.ShippingFee,
		Tax:             quote.Tax,
		Total:           quote.Total,
		Status:          domainx.OrderConfirmed,
		ShippingAddress: req.ShippingAddress,
		FulfillmentType: req.FulfillmentType,
		Payment: domainx.PaymentInfo{
			Method:        req.PaymentMethod,
			Status:        domainx.PaymentCompleted,
			TransactionID: payment.TransactionID,
			Amount:        quote.Total,
		},
		AppliedPromotions: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if quote.Promotion != nil {
		order.AppliedPromotions = append(order.AppliedPromotions, quote.Promotion.ID)
	}
	order.LoyaltyPointsEarned = e.loyalty.PointsEarned(quote.Total, tier, singleCategory(cart, e.products))

	if err := e.orders.Save(ctx, order); err != nil {
		logger.Error().Err(err).Str("transaction_id", payment.TransactionID).Msg("paid order not persisted")
		return CheckoutResult{}, fmt.Errorf("persist order %s: %w", orderID, err)
	}

	if req.FulfillmentType.Ships() {
		e.attachDelivery(ctx, order)
		if err := e.orders.Save(ctx, order); err != nil {
			logger.Error().Err(err).Msg("delivery details not persisted")
		}
	}

	cart.Clear(e.now())
	logger.Info().
		Float64("total", order.Total).
		Int("points", order.LoyaltyPointsEarned).
		Str("tracking_number", order.TrackingNumber).
		Msg("order placed")

	return CheckoutResult{
		Order:        order,
		PointsEarned: order.LoyaltyPointsEarned,
		Message:      "Order placed successfully",
	}, nil
}

// attachDelivery retries the idempotent scheduler, then hands the order to the
// reconciler and marks it delivery_pending.
func (e *Engine) attachDelivery(ctx context.Context, order *domainx.Order) {
	req := fulfillmentx.DeliveryRequest{
		OrderID: order.OrderID,
		Address: order.ShippingAddress.Address,
		Type:    order.FulfillmentType,
	}
	var lastErr error
	for attempt := 1; attempt <= e.cfg.DeliveryRetries; attempt++ {
		delivery, err := e.deliveries.ScheduleDelivery(ctx, req)
		if err == nil {
			applyDelivery(order, delivery, e.now())
			return
		}
		lastErr = err
		log.Ctx(ctx).Warn().Err(err).Str("order_id", order.OrderID).Int("attempt", attempt).Msg("delivery scheduling failed")
		if attempt < e.cfg.DeliveryRetries {
			if err := e.sleep(ctx, e.cfg.DeliveryRetryDelay*time.Duration(attempt)); err != nil {
				break
			}
		}
	}

	order.Notes = domainx.NoteDeliveryPending
	order.UpdatedAt = e.now().UTC()
	if e.reconciler == nil {
		log.Ctx(ctx).Error().Err(lastErr).Str("order_id", order.OrderID).Msg("delivery pending, no reconciler configured")
		return
	}
	job := ReconcileJob{OrderID: order.OrderID, Address: req.Address, FulfillmentType: req.Type}
	if err := e.reconciler.EnqueueDelivery(context.WithoutCancel(ctx), job); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("order_id", order.OrderID).Msg("delivery reconciliation not enqueued")
	}
}

func applyDelivery(order *domainx.Order, d fulfillmentx.Delivery, now time.Time) {
	order.TrackingNumber = d.TrackingNumber
	date := d.ScheduledDate
	order.EstimatedDelivery = &date
	if order.Notes == domainx.NoteDeliveryPending {
		order.Notes = ""
	}
	order.UpdatedAt = now.UTC()
}

// ReconcileDelivery completes a delivery_pending order. Scheduling is
// idempotent, so redelivered jobs are harmless.
func (e *Engine) ReconcileDelivery(ctx context.Context, job ReconcileJob) (*domainx.Order, error) {
	order, err := e.orders.Get(ctx, job.OrderID)
	if err != nil {
		return nil, err
	}
	if order.TrackingNumber != "" && order.Notes != domainx.NoteDeliveryPending {
		return order, nil
	}
	ft := job.FulfillmentType
	if ft == "" {
		ft = order.FulfillmentType
	}
	addr := job.Address
	if addr == "" {
		addr = order.ShippingAddress.Address
	}
	delivery, err := e.deliveries.ScheduleDelivery(ctx, fulfillmentx.DeliveryRequest{OrderID: order.OrderID, Address: addr, Type: ft})
	if err != nil {
		return nil, fmt.Errorf("reconcile delivery %s: %w", order.OrderID, err)
	}
	applyDelivery(order, delivery, e.now())
	if err := e.orders.Save(ctx, order); err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("order_id", order.OrderID).Str("tracking_number", order.TrackingNumber).Msg("delivery reconciled")
	return order, nil
}

func (e *Engine) GetOrder(ctx context.Context, orderID string) (*domainx.Order, error) {
	return e.orders.Get(ctx, orderID)
}

// shippingAddress completes a delivery address from the customer record and
// the saved default address. Name, address and phone are required.
func shippingAddress(customer *domainx.Customer, addr domainx.ShippingAddress) (domainx.ShippingAddress, error) {
	if strings.TrimSpace(addr.Address) == "" {
		if saved, ok := customer.DefaultAddress(); ok {
			addr.Address = saved.Address
		}
	}
	if strings.TrimSpace(addr.Name) == "" {
		addr.Name = customer.Name
	}
	if strings.TrimSpace(addr.Phone) == "" {
		addr.Phone = customer.Phone
	}
	if strings.TrimSpace(addr.Email) == "" {
		addr.Email = customer.Email
	}

	var missing []string
	for field, v := range map[string]string{"name": addr.Name, "address": addr.Address, "phone": addr.Phone} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return addr, fmt.Errorf("%w: shipping address missing %s", contractx.ErrValidation, strings.Join(missing, ", "))
	}
	return addr, nil
}

// singleCategory returns the cart's category when every line shares one.
func singleCategory(cart *domainx.Cart, products ProductLookup) string {
	cats := cart.Categories(products.CategoryOf)
	if len(cats) == 1 {
		return cats[0]
	}
	return ""
}
