package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
)

// MemoryOrderRepo is the reference OrderStore: a mutex-guarded map with the
// same atomicity contract as the MySQL repo. Used by tests and local runs
// without a database.
type MemoryOrderRepo struct {
	mu     sync.Mutex
	byID   map[string]*domain.Order
	byKey  map[string]string // idempotency key -> order id
	bySess map[string]string // session id -> order id
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{
		byID:   map[string]*domain.Order{},
		byKey:  map[string]string{},
		bySess: map[string]string{},
	}
}

func (r *MemoryOrderRepo) CreateOrGet(ctx context.Context, key string, build func() (*domain.Order, error)) (*domain.Order, bool, error) {
	if key == "" {
		return nil, false, usecase.ErrMissingIdempotencyKey
	}

	r.mu.Lock()
	if id, ok := r.byKey[key]; ok {
		o := cloneOrder(r.byID[id])
		r.mu.Unlock()
		return o, false, nil
	}
	r.mu.Unlock()

	// Build outside the lock; the builder does catalog lookups.
	o, err := build()
	if err != nil {
		return nil, false, err
	}
	o.IdempotencyKey = key

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: a concurrent duplicate may have committed while we built.
	if id, ok := r.byKey[key]; ok {
		return cloneOrder(r.byID[id]), false, nil
	}
	r.byID[o.ID] = cloneOrder(o)
	r.byKey[key] = o.ID
	return cloneOrder(o), true, nil
}

func (r *MemoryOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, usecase.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySess[sessionID]
	if !ok {
		return nil, usecase.ErrOrderNotFound
	}
	return cloneOrder(r.byID[id]), nil
}

func (r *MemoryOrderRepo) MarkPaid(ctx context.Context, id string, res domain.PaymentResult, paidAt time.Time) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, false, usecase.ErrOrderNotFound
	}
	if o.IsPaid {
		return cloneOrder(o), false, nil
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	pr := res
	o.PaymentResult = &pr
	r.bySess[res.SessionID] = o.ID
	return cloneOrder(o), true, nil
}

func (r *MemoryOrderRepo) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.byID[id]
	if !ok {
		return nil, usecase.ErrOrderNotFound
	}
	if !o.IsDelivered {
		o.IsDelivered = true
		o.DeliveredAt = &deliveredAt
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepo) ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.byID {
		if o.OwnerRef == ownerRef {
			out = append(out, cloneOrder(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryOrderRepo) ListAll(ctx context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Order, 0, len(r.byID))
	for _, o := range r.byID {
		out = append(out, cloneOrder(o))
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func cloneOrder(o *domain.Order) *domain.Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		cp.PaymentResult = &pr
	}
	return &cp
}

var _ usecase.OrderStore = (*MemoryOrderRepo)(nil)
