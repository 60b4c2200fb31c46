package usecase

// Published to the order.events exchange.
type OrderCreatedMsg struct {
	OrderID  string `json:"orderId"`
	OwnerRef string `json:"ownerRef"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type OrderPaidMsg struct {
	OrderID   string `json:"orderId"`
	OwnerRef  string `json:"ownerRef"`
	SessionID string `json:"sessionId"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
}

// Consumed from the payment-events topic: the processor's asynchronous
// notification that a checkout session reached a terminal state.
type SessionCompletedMsg struct {
	SessionID string `json:"sessionId"`
	OrderID   string `json:"orderId,omitempty"`
	Status    string `json:"status"` // e.g. "complete"
}
