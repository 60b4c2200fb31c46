package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// CheckoutBroker drives Stripe embedded checkout sessions. Display prices
// from the cart shape the hosted UI only; the engine re-verifies the charged
// amount against the stored order at settlement.
type CheckoutBroker struct {
	api       *client.API
	returnURL string
	currency  string
}

func NewCheckoutBroker(secretKey, returnURL, currency string) *CheckoutBroker {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &CheckoutBroker{api: api, returnURL: returnURL, currency: currency}
}

func (b *CheckoutBroker) CreateSession(ctx context.Context, items []usecase.CartItem, addr domain.ShippingAddress, ownerRef string) (usecase.CreatedSession, error) {
	lineItems := make([]*stripego.CheckoutSessionLineItemParams, 0, len(items))
	for _, it := range items {
		lineItems = append(lineItems, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(b.currency),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(it.Name),
				},
				// Cents; IntPart is exact after shifting 2 places.
				UnitAmount: stripego.Int64(it.DisplayPrice.Shift(2).Round(0).IntPart()),
			},
			Quantity: stripego.Int64(int64(it.Quantity)),
		})
	}

	params := &stripego.CheckoutSessionParams{
		Mode:      stripego.String(string(stripego.CheckoutSessionModePayment)),
		UIMode:    stripego.String(string(stripego.CheckoutSessionUIModeEmbedded)),
		ReturnURL: stripego.String(b.returnURL),
		LineItems: lineItems,
	}
	params.Context = ctx
	params.AddMetadata("owner_ref", ownerRef)
	params.AddMetadata("shipping_city", addr.City)
	params.AddMetadata("shipping_country", addr.Country)

	s, err := b.api.CheckoutSessions.New(params)
	if err != nil {
		return usecase.CreatedSession{}, wrapStripeErr(err)
	}
	return usecase.CreatedSession{SessionID: s.ID, ClientSecret: s.ClientSecret}, nil
}

func (b *CheckoutBroker) GetSession(ctx context.Context, sessionID string) (*domain.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx

	s, err := b.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, wrapStripeErr(err)
	}

	out := &domain.CheckoutSession{
		ID:          s.ID,
		Status:      domain.SessionStatus(s.Status),
		AmountTotal: decimalFromCents(s.AmountTotal),
		CreatedAt:   time.Unix(s.Created, 0).UTC(),
	}
	if s.CustomerDetails != nil {
		out.PayerEmail = s.CustomerDetails.Email
	}
	return out, nil
}

// decimalFromCents keeps the processor's integer-cent amounts exact at 2dp.
func decimalFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func wrapStripeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", usecase.ErrUpstreamUnavailable, err)
	}
	var se *stripego.Error
	if errors.As(err, &se) {
		if se.Code == stripego.ErrorCodeResourceMissing {
			return fmt.Errorf("%w: %v", usecase.ErrSessionNotFound, err)
		}
		if se.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", usecase.ErrUpstreamUnavailable, err)
		}
	}
	return err
}

var _ usecase.CheckoutBroker = (*CheckoutBroker)(nil)
