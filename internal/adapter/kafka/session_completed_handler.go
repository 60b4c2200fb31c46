package kafka

import (
	"context"
	"errors"

	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
)

// SessionCompletedHandler drives settlement from the processor's async
// notifications, so a webhook that lands before (or instead of) the client's
// own pay call still converges on the same paid order.
type SessionCompletedHandler struct {
	Engine *usecase.Engine
}

func NewSessionCompletedHandler(engine *usecase.Engine) *SessionCompletedHandler {
	return &SessionCompletedHandler{Engine: engine}
}

func (h *SessionCompletedHandler) Handle(ctx context.Context, ev usecase.SessionCompletedMsg) error {
	log := logging.FromCtx(ctx).With("session_id", ev.SessionID)

	if ev.Status != "complete" {
		return nil
	}

	orderID := ev.OrderID
	if orderID == "" {
		order, err := h.Engine.FindBySessionID(ctx, ev.SessionID)
		if err != nil {
			if errors.Is(err, usecase.ErrOrderNotFound) {
				// No order correlates yet; the client-side path settles it.
				log.Info("no order for completed session yet")
				return nil
			}
			return err
		}
		orderID = order.ID
	}

	_, err := h.Engine.SettlePayment(ctx, orderID, ev.SessionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, usecase.ErrAmountMismatch), errors.Is(err, usecase.ErrPaymentNotCompleted):
		// Terminal for this event; already logged for investigation.
		log.Warn("session event not settled", "order_id", orderID, "err", err)
		return nil
	default:
		// Retryable (order not created yet, upstream down): leave unmarked.
		return err
	}
}
