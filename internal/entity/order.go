package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNoItems         = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid unit price")
)

// OrderItem is a single cart line frozen into an order. UnitPrice is the
// catalog price at creation time, never the price the client claimed.
type OrderItem struct {
	ProductRef string
	Name       string
	Image      string
	Quantity   int
	UnitPrice  decimal.Decimal
}

type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

// PaymentResult records the external checkout session an order was settled
// against.
type PaymentResult struct {
	SessionID  string
	Status     string
	SettledAt  time.Time
	PayerEmail string
}

type Order struct {
	ID              string
	OwnerRef        string
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   string

	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal

	IsPaid        bool
	PaidAt        *time.Time
	PaymentResult *PaymentResult

	IsDelivered bool
	DeliveredAt *time.Time

	IdempotencyKey string
	CreatedAt      time.Time
}

func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if it.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
	}
	return nil
}

// SessionID returns the correlated checkout session id, or "" if the order
// has not been settled.
func (o *Order) SessionID() string {
	if o.PaymentResult == nil {
		return ""
	}
	return o.PaymentResult.SessionID
}
