package domain

import "time"

type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderProcessing     OrderStatus = "processing"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderReturned       OrderStatus = "returned"
)

type FulfillmentType string

const (
	FulfillmentHomeDelivery    FulfillmentType = "home_delivery"
	FulfillmentStorePickup     FulfillmentType = "store_pickup"
	FulfillmentClickCollect    FulfillmentType = "click_collect"
	FulfillmentExpressDelivery FulfillmentType = "express_delivery"
)

// Ships reports whether the order leaves through a carrier.
func (f FulfillmentType) Ships() bool {
	return f == FulfillmentHomeDelivery || f == FulfillmentExpressDelivery
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type ShippingAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
}

type PaymentInfo struct {
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Amount        float64       `json:"amount"`
}

// NoteDeliveryPending marks a paid order whose delivery could not be scheduled yet.
const NoteDeliveryPending = "delivery_pending"

type Order struct {
	OrderID               string          `json:"order_id"`
	CustomerID            string          `json:"customer_id"`
	Items                 []CartItem      `json:"items"`
	Subtotal              float64         `json:"subtotal"`
	Discount              float64         `json:"discount"`
	ShippingFee           float64         `json:"shipping_fee"`
	Tax                   float64         `json:"tax"`
	Total                 float64         `json:"total"`
	Status                OrderStatus     `json:"status"`
	ShippingAddress       ShippingAddress `json:"shipping_address"`
	FulfillmentType       FulfillmentType `json:"fulfillment_type"`
	Payment               PaymentInfo     `json:"payment"`
	TrackingNumber        string          `json:"tracking_number,omitempty"`
	EstimatedDelivery     *time.Time      `json:"estimated_delivery,omitempty"`
	LoyaltyPointsEarned   int             `json:"loyalty_points_earned"`
	LoyaltyPointsRedeemed int             `json:"loyalty_points_redeemed"`
	AppliedPromotions     []string        `json:"applied_promotions"`
	Notes                 string          `json:"notes,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

func (o *Order) UpdateStatus(status OrderStatus, now time.Time) {
	o.Status = status
	o.UpdatedAt = now.UTC()
}
