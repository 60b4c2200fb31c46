package kafka

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/repo"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) ResolvePrice(_ context.Context, ref string) (decimal.Decimal, error) {
	if ref != "P1" {
		return decimal.Zero, fmt.Errorf("%w: %s", usecase.ErrUnknownProduct, ref)
	}
	return decimal.RequireFromString("25.00"), nil
}

type stubBroker struct {
	sessions map[string]*domain.CheckoutSession
}

func (b *stubBroker) CreateSession(context.Context, []usecase.CartItem, domain.ShippingAddress, string) (usecase.CreatedSession, error) {
	return usecase.CreatedSession{}, nil
}

func (b *stubBroker) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	s, ok := b.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", usecase.ErrSessionNotFound, id)
	}
	return s, nil
}

func newHandlerFixture(t *testing.T) (*SessionCompletedHandler, *repo.MemoryOrderRepo, *stubBroker, *domain.Order) {
	t.Helper()
	store := repo.NewMemoryOrderRepo()
	broker := &stubBroker{sessions: map[string]*domain.CheckoutSession{}}
	pricing := usecase.PricingConfig{
		TaxRate:               decimal.RequireFromString("0.10"),
		ShippingFlatFee:       decimal.RequireFromString("5.00"),
		FreeShippingThreshold: decimal.RequireFromString("100.00"),
		Currency:              "usd",
	}
	engine := usecase.NewEngine(store, stubCatalog{}, broker, pricing)

	order, _, err := engine.SubmitOrder(context.Background(), usecase.SubmitOrderInput{
		OwnerRef:       "user-1",
		IdempotencyKey: "K1",
		Items:          []usecase.CartItem{{ProductRef: "P1", Name: "Widget", Quantity: 2}},
	})
	require.NoError(t, err)

	return NewSessionCompletedHandler(engine), store, broker, order
}

func TestSessionCompletedSettlesOrder(t *testing.T) {
	h, store, broker, order := newHandlerFixture(t)
	ctx := context.Background()

	broker.sessions["cs_1"] = &domain.CheckoutSession{
		ID:          "cs_1",
		Status:      domain.SessionComplete,
		AmountTotal: decimal.RequireFromString("60.00"),
		CreatedAt:   time.Now().UTC(),
	}

	err := h.Handle(ctx, usecase.SessionCompletedMsg{SessionID: "cs_1", OrderID: order.ID, Status: "complete"})
	require.NoError(t, err)

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)

	// Redelivery of the same event settles nothing twice.
	err = h.Handle(ctx, usecase.SessionCompletedMsg{SessionID: "cs_1", OrderID: order.ID, Status: "complete"})
	require.NoError(t, err)
}

func TestSessionCompletedResolvesOrderFromSession(t *testing.T) {
	h, store, broker, order := newHandlerFixture(t)
	ctx := context.Background()

	broker.sessions["cs_1"] = &domain.CheckoutSession{
		ID:          "cs_1",
		Status:      domain.SessionComplete,
		AmountTotal: decimal.RequireFromString("60.00"),
		CreatedAt:   time.Now().UTC(),
	}

	// First settlement correlates the session; a later event without an
	// order id finds it again.
	err := h.Handle(ctx, usecase.SessionCompletedMsg{SessionID: "cs_1", OrderID: order.ID, Status: "complete"})
	require.NoError(t, err)

	err = h.Handle(ctx, usecase.SessionCompletedMsg{SessionID: "cs_1", Status: "complete"})
	require.NoError(t, err)

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
}

func TestSessionCompletedIgnoresUncorrelated(t *testing.T) {
	h, _, broker, _ := newHandlerFixture(t)

	broker.sessions["cs_stray"] = &domain.CheckoutSession{
		ID:          "cs_stray",
		Status:      domain.SessionComplete,
		AmountTotal: decimal.RequireFromString("60.00"),
	}

	// No order references this session yet: the event is dropped, the
	// client-side settlement path will converge later.
	err := h.Handle(context.Background(), usecase.SessionCompletedMsg{SessionID: "cs_stray", Status: "complete"})
	assert.NoError(t, err)
}

func TestSessionCompletedMismatchIsTerminal(t *testing.T) {
	h, store, broker, order := newHandlerFixture(t)
	ctx := context.Background()

	broker.sessions["cs_1"] = &domain.CheckoutSession{
		ID:          "cs_1",
		Status:      domain.SessionComplete,
		AmountTotal: decimal.RequireFromString("59.99"),
	}

	// Mismatch must not bubble up as retryable; the event is consumed and
	// the order stays unpaid for investigation.
	err := h.Handle(ctx, usecase.SessionCompletedMsg{SessionID: "cs_1", OrderID: order.ID, Status: "complete"})
	require.NoError(t, err)

	stored, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestSessionCompletedIgnoresNonComplete(t *testing.T) {
	h, _, _, order := newHandlerFixture(t)
	err := h.Handle(context.Background(), usecase.SessionCompletedMsg{SessionID: "cs_1", OrderID: order.ID, Status: "expired"})
	assert.NoError(t, err)
}
