package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	engine  *usecase.Engine
	timeout time.Duration
}

func NewOrderHandler(engine *usecase.Engine, timeout time.Duration) *OrderHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &OrderHandler{engine: engine, timeout: timeout}
}

type cartItemReq struct {
	Product string `json:"product" binding:"required"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Qty     int    `json:"qty" binding:"required"`
	// Display price as claimed by the client; forwarded to the hosted
	// checkout UI only, never persisted.
	Price string `json:"price"`
}

type shippingAddressReq struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type createOrderReq struct {
	IdempotencyKey  string             `json:"idempotencyKey"`
	OrderItems      []cartItemReq      `json:"orderItems" binding:"required"`
	ShippingAddress shippingAddressReq `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
}

// CreateOrder handles POST /api/orders. Replays with the same idempotency
// key return the original order with 200; first creation returns 201.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key")
	if idemKey == "" {
		idemKey = req.IdempotencyKey
	}

	ctx, cancel := h.reqCtx(c)
	defer cancel()

	order, created, err := h.engine.SubmitOrder(ctx, usecase.SubmitOrderInput{
		OwnerRef:        middleware.Principal(c),
		IdempotencyKey:  idemKey,
		Items:           toCartItems(req.OrderItems),
		ShippingAddress: toShippingAddress(req.ShippingAddress),
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, orderResponse(order))
}

type payOrderReq struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// PayOrder handles PUT /api/orders/:id/pay: settle the order against a
// completed checkout session. Safe to retry.
func (h *OrderHandler) PayOrder(c *gin.Context) {
	var req payOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := h.reqCtx(c)
	defer cancel()

	order, err := h.engine.SettlePayment(ctx, c.Param("id"), req.SessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

// DeliverOrder handles PUT /api/orders/:id/deliver (admin).
func (h *OrderHandler) DeliverOrder(c *gin.Context) {
	ctx, cancel := h.reqCtx(c)
	defer cancel()

	order, err := h.engine.MarkDelivered(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	ctx, cancel := h.reqCtx(c)
	defer cancel()

	order, err := h.engine.FindByID(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	ctx, cancel := h.reqCtx(c)
	defer cancel()

	status, err := h.engine.OrderStatus(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status})
}

func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	ctx, cancel := h.reqCtx(c)
	defer cancel()

	orders, err := h.engine.ListByOwner(ctx, middleware.Principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ordersResponse(orders))
}

func (h *OrderHandler) GetAllOrders(c *gin.Context) {
	ctx, cancel := h.reqCtx(c)
	defer cancel()

	orders, err := h.engine.ListAll(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ordersResponse(orders))
}

type checkoutSessionReq struct {
	CartItems       []cartItemReq      `json:"cartItems" binding:"required"`
	ShippingAddress shippingAddressReq `json:"shippingAddress"`
}

// CreateCheckoutSession handles POST /api/orders/checkout-session.
func (h *OrderHandler) CreateCheckoutSession(c *gin.Context) {
	var req checkoutSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := h.reqCtx(c)
	defer cancel()

	sess, err := h.engine.CreateCheckoutSession(ctx,
		toCartItems(req.CartItems), toShippingAddress(req.ShippingAddress), middleware.Principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sess.SessionID, "clientSecret": sess.ClientSecret})
}

// GetSessionStatus handles GET /api/orders/session-status?session_id=...
func (h *OrderHandler) GetSessionStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
		return
	}

	ctx, cancel := h.reqCtx(c)
	defer cancel()

	sess, err := h.engine.SessionStatus(ctx, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         string(sess.Status),
		"amount_total":   sess.AmountTotal.StringFixed(2),
		"customer_email": sess.PayerEmail,
	})
}

// GetOrderBySession handles GET /api/orders/order-by-session?session_id=...
// so a returning client converges on its order from the session id alone.
func (h *OrderHandler) GetOrderBySession(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
		return
	}

	ctx, cancel := h.reqCtx(c)
	defer cancel()

	order, err := h.engine.FindBySessionID(ctx, sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(logging.WithCtx(c.Request.Context(), logging.From(c)), h.timeout)
}

// fail maps the engine's error taxonomy onto HTTP statuses. Transport
// concerns live here, never in the core.
func (h *OrderHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, usecase.ErrMissingIdempotencyKey),
		errors.Is(err, usecase.ErrUnknownProduct),
		errors.Is(err, usecase.ErrPaymentNotCompleted),
		errors.Is(err, usecase.ErrAmountMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, usecase.ErrOrderNotFound),
		errors.Is(err, usecase.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.From(c).Error("unhandled order error", "err", err)
		c.JSON(status, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func toCartItems(in []cartItemReq) []usecase.CartItem {
	out := make([]usecase.CartItem, 0, len(in))
	for _, it := range in {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			price = decimal.Zero // display-only; the catalog price is what counts
		}
		out = append(out, usecase.CartItem{
			ProductRef:   it.Product,
			Name:         it.Name,
			Image:        it.Image,
			Quantity:     it.Qty,
			DisplayPrice: price,
		})
	}
	return out
}

func toShippingAddress(in shippingAddressReq) domain.ShippingAddress {
	return domain.ShippingAddress{
		Address:    in.Address,
		City:       in.City,
		PostalCode: in.PostalCode,
		Country:    in.Country,
	}
}

type orderItemResp struct {
	Product string `json:"product"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Qty     int    `json:"qty"`
	Price   string `json:"price"`
}

type orderResp struct {
	ID              string             `json:"id"`
	User            string             `json:"user"`
	OrderItems      []orderItemResp    `json:"orderItems"`
	ShippingAddress shippingAddressReq `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	ItemsPrice      string             `json:"itemsPrice"`
	TaxPrice        string             `json:"taxPrice"`
	ShippingPrice   string             `json:"shippingPrice"`
	TotalPrice      string             `json:"totalPrice"`
	IsPaid          bool               `json:"isPaid"`
	PaidAt          *time.Time         `json:"paidAt,omitempty"`
	PaymentResult   *paymentResultResp `json:"paymentResult,omitempty"`
	IsDelivered     bool               `json:"isDelivered"`
	DeliveredAt     *time.Time         `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
}

type paymentResultResp struct {
	SessionID  string    `json:"sessionId"`
	Status     string    `json:"status"`
	SettledAt  time.Time `json:"settledAt"`
	PayerEmail string    `json:"payerEmail"`
}

func orderResponse(o *domain.Order) orderResp {
	items := make([]orderItemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResp{
			Product: it.ProductRef,
			Name:    it.Name,
			Image:   it.Image,
			Qty:     it.Quantity,
			Price:   it.UnitPrice.StringFixed(2),
		})
	}
	resp := orderResp{
		ID:         o.ID,
		User:       o.OwnerRef,
		OrderItems: items,
		ShippingAddress: shippingAddressReq{
			Address:    o.ShippingAddress.Address,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		PaymentMethod: o.PaymentMethod,
		ItemsPrice:    o.ItemsPrice.StringFixed(2),
		TaxPrice:      o.TaxPrice.StringFixed(2),
		ShippingPrice: o.ShippingPrice.StringFixed(2),
		TotalPrice:    o.TotalPrice.StringFixed(2),
		IsPaid:        o.IsPaid,
		PaidAt:        o.PaidAt,
		IsDelivered:   o.IsDelivered,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
	}
	if o.PaymentResult != nil {
		resp.PaymentResult = &paymentResultResp{
			SessionID:  o.PaymentResult.SessionID,
			Status:     o.PaymentResult.Status,
			SettledAt:  o.PaymentResult.SettledAt,
			PayerEmail: o.PaymentResult.PayerEmail,
		}
	}
	return resp
}

func ordersResponse(orders []*domain.Order) []orderResp {
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	return out
}
