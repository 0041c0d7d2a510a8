package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

func sampleOrder(id, customer string, created time.Time) *domainx.Order {
	return &domainx.Order{
		OrderID:    id,
		CustomerID: customer,
		Items:      []domainx.CartItem{{SKU: "KUR001", Name: "Kurta", Price: 1499, Quantity: 2}},
		Subtotal:   2998,
		Total:      3537.64,
		Status:     domainx.OrderConfirmed,
		Payment:    domainx.PaymentInfo{Method: "upi", Status: domainx.PaymentCompleted, TransactionID: "TXN1", Amount: 3537.64},
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestMemoryOrderRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewMemoryOrderRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, sampleOrder("ORD1", "C1", base)))
	require.NoError(t, repo.Save(ctx, sampleOrder("ORD2", "C1", base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, sampleOrder("ORD3", "C2", base)))
	require.ErrorIs(t, repo.Save(ctx, &domainx.Order{}), contractx.ErrValidation)

	got, err := repo.Get(ctx, "ORD1")
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	again, _ := repo.Get(ctx, "ORD1")
	require.Equal(t, 2, again.Items[0].Quantity)

	size := "M"
	sized := sampleOrder("ORD4", "C3", base)
	sized.Items[0].Size = &size
	require.NoError(t, repo.Save(ctx, sized))
	size = "XL"
	stored, err := repo.Get(ctx, "ORD4")
	require.NoError(t, err)
	require.Equal(t, "M", *stored.Items[0].Size)
	*stored.Items[0].Size = "L"
	stored, _ = repo.Get(ctx, "ORD4")
	require.Equal(t, "M", *stored.Items[0].Size)

	_, err = repo.Get(ctx, "NOPE")
	require.ErrorIs(t, err, contractx.ErrOrderNotFound)

	list, err := repo.ListByCustomer(ctx, "C1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "ORD2", list[0].OrderID)

	list, _ = repo.ListByCustomer(ctx, "C1", 1)
	require.Len(t, list, 1)
}

func newMockRepo(t *testing.T) (*BunOrderRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewBunOrderRepository(db), mock
}

var upsertSQL = regexp.QuoteMeta(`INSERT INTO "orders"`) + `.*` +
	regexp.QuoteMeta(`ON CONFLICT (order_id) DO UPDATE SET status = EXCLUDED.status`) + `.*` +
	regexp.QuoteMeta(`loyalty_points_earned = EXCLUDED.loyalty_points_earned`) + `.*` +
	regexp.QuoteMeta(`loyalty_points_redeemed = EXCLUDED.loyalty_points_redeemed`) + `.*` +
	regexp.QuoteMeta(`applied_promotions = EXCLUDED.applied_promotions`)

func TestBunSaveUpserts(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	// A nil estimated_delivery is sent as DEFAULT and read back.
	mock.ExpectQuery(upsertSQL + `.*` + regexp.QuoteMeta(`RETURNING "estimated_delivery"`)).
		WillReturnRows(sqlmock.NewRows([]string{"estimated_delivery"}).AddRow(nil))

	order := sampleOrder("ORD1", "C1", time.Now())
	order.LoyaltyPointsEarned = 42
	order.AppliedPromotions = []string{"FLAT300"}
	err := repo.Save(context.Background(), order)
	require.NoError(t, err)
	require.Nil(t, order.EstimatedDelivery)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunSaveWithDeliveryDate(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectExec(upsertSQL).WillReturnResult(sqlmock.NewResult(0, 1))

	order := sampleOrder("ORD2", "C1", time.Now())
	eta := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	order.EstimatedDelivery = &eta
	order.TrackingNumber = "TRK1"
	require.NoError(t, repo.Save(context.Background(), order))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunSaveRejectsMissingID(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	require.ErrorIs(t, repo.Save(context.Background(), &domainx.Order{}), contractx.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunGet(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	created := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"order_id", "customer_id", "items", "total", "status", "created_at"}).
		AddRow("ORD1", "C1", []byte(`[{"sku":"KUR001","name":"Kurta","price":1499,"quantity":2}]`), 3537.64, "confirmed", created)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "orders" AS "o" WHERE (order_id = 'ORD1')`)).WillReturnRows(rows)

	got, err := repo.Get(context.Background(), "ORD1")
	require.NoError(t, err)
	require.Equal(t, "C1", got.CustomerID)
	require.Equal(t, domainx.OrderConfirmed, got.Status)
	require.Len(t, got.Items, 1)
	require.Equal(t, 2, got.Items[0].Quantity)
	require.True(t, created.Equal(got.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunGetMissing(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "orders"`)).WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	_, err := repo.Get(context.Background(), "ORD404")
	require.ErrorIs(t, err, contractx.ErrOrderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
