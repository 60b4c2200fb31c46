package http

import (
	"github.com/aq2208/storefront-api/internal/adapter/http/middleware"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *OrderHandler, th *TokenHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	orders := r.Group("/api/orders")
	{
		orders.POST("", authz.Require("orders.write"), h.CreateOrder)
		orders.GET("", authz.Require("orders.admin"), h.GetAllOrders)
		orders.GET("/mine", authz.Require("orders.read"), h.GetMyOrders)
		orders.POST("/checkout-session", authz.Require("orders.write"), h.CreateCheckoutSession)
		orders.GET("/session-status", authz.Require("orders.read"), h.GetSessionStatus)
		orders.GET("/order-by-session", authz.Require("orders.read"), h.GetOrderBySession)
		orders.GET("/:id", authz.Require("orders.read"), h.GetOrderByID)
		orders.GET("/:id/status", authz.Require("orders.read"), h.GetOrderStatus)
		orders.PUT("/:id/pay", authz.Require("orders.write"), h.PayOrder)
		orders.PUT("/:id/deliver", authz.Require("orders.admin"), h.DeliverOrder)
	}

	return r
}
