package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	idsx "github.com/tanpawarit/chative-retail/pkg/ids"
)

const (
	MethodCard       = "card"
	MethodUPI        = "upi"
	MethodNetbanking = "netbanking"
	MethodWallet     = "wallet"
	MethodCOD        = "cod"
)

// Gateway is the payment processor seam; the checkout pipeline only sees this.
type Gateway interface {
	Process(ctx context.Context, req Request) (Result, error)
	Verify(ctx context.Context, transactionID string) (Verification, error)
	Refund(ctx context.Context, transactionID string, amount *float64) (Refund, error)
}

type Request struct {
	Amount     float64
	Method     string
	CustomerID string
	OrderID    string
	Details    map[string]string
}

type Result struct {
	TransactionID string                `json:"transaction_id"`
	Amount        float64               `json:"amount"`
	Method        string                `json:"payment_method"`
	Status        domainx.PaymentStatus `json:"status"`
	Timestamp     time.Time             `json:"timestamp"`
	Message       string                `json:"message"`
}

type Verification struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

type Refund struct {
	RefundID  string                `json:"refund_id"`
	Amount    float64               `json:"amount"`
	Status    domainx.PaymentStatus `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
}

type Method struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

var methods = []Method{
	{Type: MethodCard, Name: "Credit/Debit Card"},
	{Type: MethodUPI, Name: "UPI"},
	{Type: MethodNetbanking, Name: "Net Banking"},
	{Type: MethodWallet, Name: "Digital Wallet"},
	{Type: MethodCOD, Name: "Cash on Delivery"},
}

func Methods() []Method {
	return append([]Method(nil), methods...)
}

const codFee = 50.0

var feeRates = map[string]float64{
	MethodCard:       0.02,
	MethodUPI:        0,
	MethodNetbanking: 0.01,
	MethodWallet:     0,
}

// Fee is informational; checkout totals never include it.
func Fee(amount float64, method string) float64 {
	if method == MethodCOD {
		return codFee
	}
	return amount * feeRates[method]
}

type transaction struct {
	customerID string
	orderID    string
	amount     float64
	method     string
	status     domainx.PaymentStatus
	createdAt  time.Time
}

// MockGateway approves every payment and keeps transactions in memory.
type MockGateway struct {
	mu           sync.RWMutex
	transactions map[string]transaction
	now          func() time.Time
}

type Option func(*MockGateway)

func WithClock(now func() time.Time) Option {
	return func(g *MockGateway) {
		if now != nil {
			g.now = now
		}
	}
}

func NewMockGateway(opts ...Option) *MockGateway {
	g := &MockGateway{transactions: map[string]transaction{}, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MockGateway) Process(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	now := g.now()
	id := idsx.New("TXN")

	g.mu.Lock()
	g.transactions[id] = transaction{
		customerID: req.CustomerID,
		orderID:    req.OrderID,
		amount:     req.Amount,
		method:     req.Method,
		status:     domainx.PaymentCompleted,
		createdAt:  now,
	}
	g.mu.Unlock()

	log.Ctx(ctx).Info().
		Str("transaction_id", id).
		Str("order_id", req.OrderID).
		Str("method", req.Method).
		Float64("amount", req.Amount).
		Msg("payment processed")

	return Result{
		TransactionID: id,
		Amount:        req.Amount,
		Method:        req.Method,
		Status:        domainx.PaymentCompleted,
		Timestamp:     now,
		Message:       "Payment processed successfully",
	}, nil
}

func (g *MockGateway) Verify(_ context.Context, transactionID string) (Verification, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	tx, ok := g.transactions[transactionID]
	if !ok {
		return Verification{Verified: false, Status: "not_found"}, nil
	}
	return Verification{Verified: true, Status: string(tx.status)}, nil
}

// Refund defaults to the full captured amount when amount is nil.
func (g *MockGateway) Refund(ctx context.Context, transactionID string, amount *float64) (Refund, error) {
	g.mu.Lock()
	tx, ok := g.transactions[transactionID]
	if !ok {
		g.mu.Unlock()
		return Refund{}, fmt.Errorf("%w: transaction_id=%s", contractx.ErrTransactionNotFound, transactionID)
	}
	refundAmount := tx.amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount >= tx.amount {
		tx.status = domainx.PaymentRefunded
		g.transactions[transactionID] = tx
	}
	g.mu.Unlock()

	refund := Refund{
		RefundID:  idsx.New("REF"),
		Amount:    refundAmount,
		Status:    domainx.PaymentRefunded,
		Timestamp: g.now(),
	}
	log.Ctx(ctx).Info().
		Str("transaction_id", transactionID).
		Str("refund_id", refund.RefundID).
		Float64("amount", refundAmount).
		Msg("payment refunded")
	return refund, nil
}
