package usecase

import (
	"context"
	"fmt"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/google/uuid"
)

// Engine orchestrates order creation and payment reconciliation: it turns a
// submitted cart into exactly one durable order per idempotency key, and
// later matches a completed checkout session against that order, rejecting
// any amount drift.
type Engine struct {
	store   OrderStore
	catalog Catalog
	broker  CheckoutBroker
	pricing PricingConfig

	// Optional side channels; nil-safe, best-effort.
	cache  OrderCache
	events EventPublisher
}

func NewEngine(store OrderStore, catalog Catalog, broker CheckoutBroker, pricing PricingConfig) *Engine {
	return &Engine{store: store, catalog: catalog, broker: broker, pricing: pricing}
}

func (e *Engine) WithCache(c OrderCache) *Engine         { e.cache = c; return e }
func (e *Engine) WithPublisher(p EventPublisher) *Engine { e.events = p; return e }

type SubmitOrderInput struct {
	OwnerRef        string
	IdempotencyKey  string
	Items           []CartItem
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

// SubmitOrder creates the order for this cart, or returns the already created
// one when the idempotency key has been seen before. created reports which of
// the two happened.
func (e *Engine) SubmitOrder(ctx context.Context, in SubmitOrderInput) (order *domain.Order, created bool, err error) {
	if in.IdempotencyKey == "" {
		return nil, false, ErrMissingIdempotencyKey
	}
	if len(in.Items) == 0 {
		return nil, false, fmt.Errorf("%w: no order items", ErrInvalidInput)
	}

	// The replay check inside CreateOrGet runs before the builder, so a
	// duplicate submission never touches the catalog or repricing.
	order, created, err = e.store.CreateOrGet(ctx, in.IdempotencyKey, func() (*domain.Order, error) {
		return e.buildOrder(ctx, in)
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		e.cacheStatus(ctx, order.ID, orderStatus(order))
		if e.events != nil {
			_ = e.events.PublishCreated(ctx, OrderCreatedMsg{
				OrderID:  order.ID,
				OwnerRef: order.OwnerRef,
				Total:    order.TotalPrice.StringFixed(2),
				Currency: e.pricing.Currency,
			})
		}
	}
	return order, created, nil
}

// buildOrder resolves authoritative prices and materializes a new unpaid
// order. Client-claimed prices are discarded here.
func (e *Engine) buildOrder(ctx context.Context, in SubmitOrderInput) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, ci := range in.Items {
		price, err := e.catalog.ResolvePrice(ctx, ci.ProductRef)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrderItem{
			ProductRef: ci.ProductRef,
			Name:       ci.Name,
			Image:      ci.Image,
			Quantity:   ci.Quantity,
			UnitPrice:  price,
		})
	}

	quote, err := ComputePrices(e.pricing, items)
	if err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:              uuid.NewString(),
		OwnerRef:        in.OwnerRef,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		ItemsPrice:      quote.ItemsPrice,
		TaxPrice:        quote.TaxPrice,
		ShippingPrice:   quote.ShippingPrice,
		TotalPrice:      quote.TotalPrice,
		IdempotencyKey:  in.IdempotencyKey,
		CreatedAt:       time.Now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return o, nil
}

// SettlePayment reconciles a completed checkout session against an order.
// The unpaid->paid transition happens at most once; replays return the paid
// order unchanged.
func (e *Engine) SettlePayment(ctx context.Context, orderID, sessionID string) (*domain.Order, error) {
	sess, err := e.broker.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.SessionComplete {
		return nil, fmt.Errorf("%w: session %s is %s", ErrPaymentNotCompleted, sessionID, sess.Status)
	}

	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Exact decimal equality at 2dp. A mismatch means tampering or pricing
	// drift; it is surfaced, never reconciled away.
	if !sess.AmountTotal.Equal(order.TotalPrice) {
		logging.FromCtx(ctx).Warn("settlement amount mismatch",
			"order_id", order.ID,
			"session_id", sess.ID,
			"order_total", order.TotalPrice.StringFixed(2),
			"session_total", sess.AmountTotal.StringFixed(2),
		)
		return nil, fmt.Errorf("%w: order %s expects %s, session charged %s",
			ErrAmountMismatch, order.ID, order.TotalPrice.StringFixed(2), sess.AmountTotal.StringFixed(2))
	}

	if order.IsPaid {
		return order, nil
	}

	res := domain.PaymentResult{
		SessionID:  sess.ID,
		Status:     string(sess.Status),
		SettledAt:  sess.CreatedAt,
		PayerEmail: sess.PayerEmail,
	}
	order, applied, err := e.store.MarkPaid(ctx, order.ID, res, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if applied {
		e.cacheStatus(ctx, order.ID, orderStatus(order))
		if e.events != nil {
			_ = e.events.PublishPaid(ctx, OrderPaidMsg{
				OrderID:   order.ID,
				OwnerRef:  order.OwnerRef,
				SessionID: sess.ID,
				Total:     order.TotalPrice.StringFixed(2),
				Currency:  e.pricing.Currency,
			})
		}
	}
	return order, nil
}

// MarkDelivered is the administrative fulfillment transition, independent of
// payment state. Idempotent.
func (e *Engine) MarkDelivered(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := e.store.MarkDelivered(ctx, orderID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	e.cacheStatus(ctx, order.ID, orderStatus(order))
	return order, nil
}

func (e *Engine) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return e.store.GetByID(ctx, orderID)
}

// FindBySessionID recovers the order a returning client's session id
// correlates to, so reloads and polls converge without creating duplicates.
func (e *Engine) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return e.store.GetBySessionID(ctx, sessionID)
}

func (e *Engine) ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Order, error) {
	return e.store.ListByOwner(ctx, ownerRef)
}

func (e *Engine) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return e.store.ListAll(ctx)
}

// CreateCheckoutSession opens a processor-hosted session for the cart. The
// client display prices shape the hosted UI only; settlement re-verifies the
// charged amount against the stored order total.
func (e *Engine) CreateCheckoutSession(ctx context.Context, items []CartItem, addr domain.ShippingAddress, ownerRef string) (CreatedSession, error) {
	if len(items) == 0 {
		return CreatedSession{}, fmt.Errorf("%w: no cart items", ErrInvalidInput)
	}
	return e.broker.CreateSession(ctx, items, addr, ownerRef)
}

// SessionStatus reports the session's current state for client polling.
func (e *Engine) SessionStatus(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	return e.broker.GetSession(ctx, sessionID)
}

// OrderStatus answers the lightweight status probe, cache-first.
func (e *Engine) OrderStatus(ctx context.Context, orderID string) (string, error) {
	if e.cache != nil {
		if st, ok, err := e.cache.GetStatus(ctx, orderID); err == nil && ok {
			return st, nil
		}
	}
	order, err := e.store.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	st := orderStatus(order)
	e.cacheStatus(ctx, orderID, st)
	return st, nil
}

func orderStatus(o *domain.Order) string {
	switch {
	case o.IsDelivered:
		return "DELIVERED"
	case o.IsPaid:
		return "PAID"
	default:
		return "CREATED"
	}
}

func (e *Engine) cacheStatus(ctx context.Context, orderID, status string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetStatus(ctx, orderID, status); err != nil {
		logging.FromCtx(ctx).Warn("order status cache set failed", "order_id", orderID, "err", err)
	}
}
