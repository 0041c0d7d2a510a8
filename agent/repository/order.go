package repository

import (
	"context"
	"sort"
	"sync"

	domainx "github.com/tanpawarit/chative-retail/agent/domain"
)

// OrderRepository persists confirmed orders. Save is an upsert keyed by order id.
type OrderRepository interface {
	Save(ctx context.Context, order *domainx.Order) error
	Get(ctx context.Context, orderID string) (*domainx.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domainx.Order, error)
}

type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domainx.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: map[string]*domainx.Order{}}
}

func (r *MemoryOrderRepository) Save(_ context.Context, order *domainx.Order) error {
	if order == nil || order.OrderID == "" {
		return errInvalidOrder
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderID] = cloneOrder(order)
	return nil
}

func (r *MemoryOrderRepository) Get(_ context.Context, orderID string) (*domainx.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, orderNotFound(orderID)
	}
	return cloneOrder(o), nil
}

// ListByCustomer returns newest first.
func (r *MemoryOrderRepository) ListByCustomer(_ context.Context, customerID string, limit int) ([]*domainx.Order, error) {
	r.mu.RLock()
	var out []*domainx.Order
	for _, o := range r.orders {
		if o.CustomerID == customerID {
			out = append(out, cloneOrder(o))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneOrder(o *domainx.Order) *domainx.Order {
	cp := *o
	cp.Items = domainx.CloneItems(o.Items)
	cp.AppliedPromotions = append([]string(nil), o.AppliedPromotions...)
	if o.EstimatedDelivery != nil {
		t := *o.EstimatedDelivery
		cp.EstimatedDelivery = &t
	}
	return &cp
}
