package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

var errInvalidOrder = fmt.Errorf("%w: order id is required", contractx.ErrValidation)

func orderNotFound(id string) error {
	return fmt.Errorf("%w: order_id=%s", contractx.ErrOrderNotFound, id)
}

type Config struct {
	DSN     string        `envconfig:"DSN"`
	Timeout time.Duration `default:"5s"`
}

type orderRow struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	OrderID               string                  `bun:"order_id,pk"`
	CustomerID            string                  `bun:"customer_id,notnull"`
	Items                 []domainx.CartItem      `bun:"items,type:jsonb"`
	Subtotal              float64                 `bun:"subtotal"`
	Discount              float64                 `bun:"discount"`
	ShippingFee           float64                 `bun:"shipping_fee"`
	Tax                   float64                 `bun:"tax"`
	Total                 float64                 `bun:"total"`
	Status                string                  `bun:"status"`
	ShippingAddress       domainx.ShippingAddress `bun:"shipping_address,type:jsonb"`
	FulfillmentType       string                  `bun:"fulfillment_type"`
	Payment               domainx.PaymentInfo     `bun:"payment,type:jsonb"`
	TrackingNumber        string                  `bun:"tracking_number"`
	EstimatedDelivery     *time.Time              `bun:"estimated_delivery"`
	LoyaltyPointsEarned   int                     `bun:"loyalty_points_earned"`
	LoyaltyPointsRedeemed int                     `bun:"loyalty_points_redeemed"`
	AppliedPromotions     []string                `bun:"applied_promotions,type:jsonb"`
	Notes                 string                  `bun:"notes"`
	CreatedAt             time.Time               `bun:"created_at"`
	UpdatedAt             time.Time               `bun:"updated_at"`
}

func toRow(o *domainx.Order) *orderRow {
	return &orderRow{
		OrderID:               o.OrderID,
		CustomerID:            o.CustomerID,
		Items:                 o.Items,
		Subtotal:              o.Subtotal,
		Discount:              o.Discount,
		ShippingFee:           o.ShippingFee,
		Tax:                   o.Tax,
		Total:                 o.Total,
		Status:                string(o.Status),
		ShippingAddress:       o.ShippingAddress,
		FulfillmentType:       string(o.FulfillmentType),
		Payment:               o.Payment,
		TrackingNumber:        o.TrackingNumber,
		EstimatedDelivery:     o.EstimatedDelivery,
		LoyaltyPointsEarned:   o.LoyaltyPointsEarned,
		LoyaltyPointsRedeemed: o.LoyaltyPointsRedeemed,
		AppliedPromotions:     o.AppliedPromotions,
		Notes:                 o.Notes,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func (r *orderRow) toOrder() *domainx.Order {
	return &domainx.Order{
		OrderID:               r.OrderID,
		CustomerID:            r.CustomerID,
		Items:                 r.Items,
		Subtotal:              r.Subtotal,
		Discount:              r.Discount,
		ShippingFee:           r.ShippingFee,
		Tax:                   r.Tax,
		Total:                 r.Total,
		Status:                domainx.OrderStatus(r.Status),
		ShippingAddress:       r.ShippingAddress,
		FulfillmentType:       domainx.FulfillmentType(r.FulfillmentType),
		Payment:               r.Payment,
		TrackingNumber:        r.TrackingNumber,
		EstimatedDelivery:     r.EstimatedDelivery,
		LoyaltyPointsEarned:   r.LoyaltyPointsEarned,
		LoyaltyPointsRedeemed: r.LoyaltyPointsRedeemed,
		AppliedPromotions:     r.AppliedPromotions,
		Notes:                 r.Notes,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

type BunOrderRepository struct {
	db *bun.DB
}

func NewBunOrderRepository(db *bun.DB) *BunOrderRepository {
	return &BunOrderRepository{db: db}
}

// OpenPostgres connects through pgdriver and verifies the connection.
func OpenPostgres(ctx context.Context, cfg Config) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithTimeout(cfg.Timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping order database: %w", err)
	}
	return db, nil
}

func (r *BunOrderRepository) Migrate(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*orderRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return nil
}

// Save inserts the order, or overwrites the fields that change after
// creation. Items and amounts are fixed once the order exists.
func (r *BunOrderRepository) Save(ctx context.Context, order *domainx.Order) error {
	if order == nil || order.OrderID == "" {
		return errInvalidOrder
	}
	_, err := r.db.NewInsert().
		Model(toRow(order)).
		On("CONFLICT (order_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("tracking_number = EXCLUDED.tracking_number").
		Set("estimated_delivery = EXCLUDED.estimated_delivery").
		Set("payment = EXCLUDED.payment").
		Set("notes = EXCLUDED.notes").
		Set("loyalty_points_earned = EXCLUDED.loyalty_points_earned").
		Set("loyalty_points_redeemed = EXCLUDED.loyalty_points_redeemed").
		Set("applied_promotions = EXCLUDED.applied_promotions").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save order %s: %w", order.OrderID, err)
	}
	log.Ctx(ctx).Debug().Str("order_id", order.OrderID).Str("status", string(order.Status)).Msg("order saved")
	return nil
}

func (r *BunOrderRepository) Get(ctx context.Context, orderID string) (*domainx.Order, error) {
	row := new(orderRow)
	err := r.db.NewSelect().
		Model(row).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return row.toOrder(), nil
}

func (r *BunOrderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domainx.Order, error) {
	var rows []orderRow
	q := r.db.NewSelect().
		Model(&rows).
		Where("customer_id = ?", customerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list orders for %s: %w", customerID, err)
	}
	out := make([]*domainx.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toOrder())
	}
	return out, nil
}
