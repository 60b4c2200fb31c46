package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

// CheckoutSession is the read-only view of the processor-hosted payment
// session. AmountTotal is what the processor actually charged, at 2dp.
type CheckoutSession struct {
	ID          string
	Status      SessionStatus
	AmountTotal decimal.Decimal
	PayerEmail  string
	CreatedAt   time.Time
}
