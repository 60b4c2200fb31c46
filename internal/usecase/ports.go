package usecase

import (
	"context"
	"errors"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
	ErrUnknownProduct        = errors.New("unknown product")
	ErrOrderNotFound         = errors.New("order not found")
	ErrSessionNotFound       = errors.New("payment session not found")
	ErrPaymentNotCompleted   = errors.New("payment not completed")
	ErrAmountMismatch        = errors.New("paid amount does not match order total")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
)

// OrderStore is the durable order collection. CreateOrGet is the idempotency
// guard: it commits at most one order per key, even under concurrent
// duplicates, and returns the existing order untouched on replay. build runs
// only when no order holds the key yet; it may run more than once if two
// writers race, but only one result is ever committed.
type OrderStore interface {
	CreateOrGet(ctx context.Context, idempotencyKey string, build func() (*domain.Order, error)) (o *domain.Order, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error)
	// MarkPaid applies the unpaid->paid transition. applied is false when the
	// order was already paid; the returned order reflects the stored state
	// either way. ErrOrderNotFound on a missing id.
	MarkPaid(ctx context.Context, id string, res domain.PaymentResult, paidAt time.Time) (o *domain.Order, applied bool, err error)
	// MarkDelivered is a no-op on an already delivered order.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (*domain.Order, error)
	ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
}

// Catalog resolves a product reference to its authoritative unit price.
type Catalog interface {
	ResolvePrice(ctx context.Context, productRef string) (decimal.Decimal, error)
}

// CartItem is a client-submitted cart line. DisplayPrice is only forwarded to
// the hosted checkout UI; it never reaches a stored order.
type CartItem struct {
	ProductRef   string
	Name         string
	Image        string
	Quantity     int
	DisplayPrice decimal.Decimal
}

type CreatedSession struct {
	SessionID    string
	ClientSecret string
}

// CheckoutBroker fronts the external payment processor.
type CheckoutBroker interface {
	CreateSession(ctx context.Context, items []CartItem, addr domain.ShippingAddress, ownerRef string) (CreatedSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error)
}

// OrderCache is a best-effort status cache; failures are logged, never fatal.
type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}

// EventPublisher emits order lifecycle events for downstream consumers
// (fulfillment, notifications). Best-effort, at-least-once.
type EventPublisher interface {
	PublishCreated(ctx context.Context, msg OrderCreatedMsg) error
	PublishPaid(ctx context.Context, msg OrderPaidMsg) error
}
