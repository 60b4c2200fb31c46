package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/storefront-api/internal/adapter/repo"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{ prices map[string]string }

func (c *stubCatalog) ResolvePrice(_ context.Context, ref string) (decimal.Decimal, error) {
	p, ok := c.prices[ref]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", usecase.ErrUnknownProduct, ref)
	}
	return decimal.RequireFromString(p), nil
}

type stubBroker struct {
	mu       sync.Mutex
	sessions map[string]*domain.CheckoutSession
}

func (b *stubBroker) CreateSession(_ context.Context, _ []usecase.CartItem, _ domain.ShippingAddress, _ string) (usecase.CreatedSession, error) {
	return usecase.CreatedSession{SessionID: "cs_new", ClientSecret: "cs_new_secret"}, nil
}

func (b *stubBroker) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", usecase.ErrSessionNotFound, id)
	}
	cp := *s
	return &cp, nil
}

func (b *stubBroker) complete(id, amount string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[id] = &domain.CheckoutSession{
		ID:          id,
		Status:      domain.SessionComplete,
		AmountTotal: decimal.RequireFromString(amount),
		PayerEmail:  "buyer@example.com",
		CreatedAt:   time.Now().UTC(),
	}
}

func testRouter(t *testing.T) (*gin.Engine, *stubBroker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repo.NewMemoryOrderRepo()
	catalog := &stubCatalog{prices: map[string]string{"P1": "25.00"}}
	broker := &stubBroker{sessions: map[string]*domain.CheckoutSession{}}
	pricing := usecase.PricingConfig{
		TaxRate:               decimal.RequireFromString("0.10"),
		ShippingFlatFee:       decimal.RequireFromString("5.00"),
		FreeShippingThreshold: decimal.RequireFromString("100.00"),
		Currency:              "usd",
	}
	engine := usecase.NewEngine(store, catalog, broker, pricing)
	h := NewOrderHandler(engine, time.Second)

	r := gin.New()
	// Stand-in for the authz middleware: a fixed principal.
	r.Use(func(c *gin.Context) { c.Set("principal", "user-1") })
	r.POST("/api/orders", h.CreateOrder)
	r.GET("/api/orders", h.GetAllOrders)
	r.GET("/api/orders/mine", h.GetMyOrders)
	r.GET("/api/orders/order-by-session", h.GetOrderBySession)
	r.GET("/api/orders/:id", h.GetOrderByID)
	r.PUT("/api/orders/:id/pay", h.PayOrder)
	r.PUT("/api/orders/:id/deliver", h.DeliverOrder)
	return r, broker
}

func doJSON(r *gin.Engine, method, path, idemKey string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("X-Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderBody() map[string]any {
	return map[string]any{
		"orderItems": []map[string]any{
			{"product": "P1", "name": "Widget", "qty": 2, "price": "1.00"},
		},
		"shippingAddress": map[string]any{"city": "Hanoi", "country": "VN"},
		"paymentMethod":   "Stripe",
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(r, http.MethodPost, "/api/orders", "K1", orderBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "60.00", resp.TotalPrice)
	assert.Equal(t, "25.00", resp.OrderItems[0].Price, "catalog price wins over the claimed 1.00")
	assert.Equal(t, "user-1", resp.User)

	// Replay: 200 with the identical order.
	w2 := doJSON(r, http.MethodPost, "/api/orders", "K1", orderBody())
	require.Equal(t, http.StatusOK, w2.Code)
	var resp2 orderResp
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Equal(t, resp.ID, resp2.ID)
}

func TestCreateOrderMissingIdempotencyKey(t *testing.T) {
	r, _ := testRouter(t)
	w := doJSON(r, http.MethodPost, "/api/orders", "", orderBody())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	r, _ := testRouter(t)
	body := orderBody()
	body["orderItems"] = []map[string]any{{"product": "NOPE", "qty": 1}}
	w := doJSON(r, http.MethodPost, "/api/orders", "K1", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPayOrderEndpoint(t *testing.T) {
	r, broker := testRouter(t)

	w := doJSON(r, http.MethodPost, "/api/orders", "K1", orderBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// Unknown session.
	w = doJSON(r, http.MethodPut, "/api/orders/"+created.ID+"/pay", "", map[string]any{"sessionId": "cs_missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Mismatched amount is rejected and the order stays unpaid.
	broker.complete("cs_bad", "59.99")
	w = doJSON(r, http.MethodPut, "/api/orders/"+created.ID+"/pay", "", map[string]any{"sessionId": "cs_bad"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/api/orders/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.False(t, fetched.IsPaid)

	// Matching amount settles; a repeat stays 200 and paid.
	broker.complete("cs_ok", "60.00")
	w = doJSON(r, http.MethodPut, "/api/orders/"+created.ID+"/pay", "", map[string]any{"sessionId": "cs_ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paid))
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaymentResult)
	assert.Equal(t, "cs_ok", paid.PaymentResult.SessionID)

	w = doJSON(r, http.MethodPut, "/api/orders/"+created.ID+"/pay", "", map[string]any{"sessionId": "cs_ok"})
	assert.Equal(t, http.StatusOK, w.Code)

	// The session now resolves back to the same order.
	w = doJSON(r, http.MethodGet, "/api/orders/order-by-session?session_id=cs_ok", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bySession orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bySession))
	assert.Equal(t, created.ID, bySession.ID)
}

func TestDeliverOrderEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(r, http.MethodPost, "/api/orders", "K1", orderBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodPut, "/api/orders/"+created.ID+"/deliver", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var delivered orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &delivered))
	assert.True(t, delivered.IsDelivered)

	w = doJSON(r, http.MethodPut, "/api/orders/missing/deliver", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderLookupsEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(r, http.MethodGet, "/api/orders/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/orders/order-by-session", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/api/orders", "K1", orderBody())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodGet, "/api/orders/mine", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = doJSON(r, http.MethodGet, "/api/orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []orderResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 1)
}
