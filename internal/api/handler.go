package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"seafood-order-service/internal/auth"
	"seafood-order-service/internal/models"
	"seafood-order-service/internal/service"
	"seafood-order-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderAPI is the order service as seen by the HTTP layer
type OrderAPI interface {
	PlaceOrder(ctx context.Context, p models.Principal, req *service.PlaceOrderRequest) (*service.PlaceOrderResponse, error)
	ListMyOrders(ctx context.Context, p models.Principal) ([]models.Order, error)
	ListAllOrders(ctx context.Context, p models.Principal, limit int) ([]models.OrderSummary, error)
	GetOrderDetail(ctx context.Context, p models.Principal, orderID int64) (*models.OrderDetail, error)
	UpdateOrderStatus(ctx context.Context, p models.Principal, orderID int64, status models.OrderStatus) error
	DeleteAllOrders(ctx context.Context, p models.Principal) (int64, error)
	GetRevenueAnalytics(ctx context.Context, p models.Principal, days int) ([]models.DailyRevenue, error)
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    OrderAPI
	tokens    auth.TokenParser
	readiness map[string]Pinger
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders OrderAPI, tokens auth.TokenParser, readiness map[string]Pinger) *Handler {
	return &Handler{
		orders:    orders,
		tokens:    tokens,
		readiness: readiness,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", auth.RequireAuth(h.tokens))
	{
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/mine", h.listMyOrders)
		v1.GET("/orders/:id", h.getOrder)
	}

	admin := v1.Group("/admin", auth.RequireAdmin())
	{
		admin.GET("/orders", h.listAllOrders)
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)
		admin.DELETE("/orders", h.deleteAllOrders)
		admin.GET("/analytics/revenue", h.revenueAnalytics)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			ready = false
			continue
		}
		checks[name] = "up"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

type placeOrderBody struct {
	Items           []models.CartLine `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
}

// placeOrder handles checkout. A total in the body is ignored.
func (h *Handler) placeOrder(c *gin.Context) {
	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	req := &service.PlaceOrderRequest{
		Items:           body.Items,
		DeliveryAddress: body.DeliveryAddress,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	}

	resp, err := h.orders.PlaceOrder(c.Request.Context(), principal(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	code := http.StatusCreated
	if resp.Replayed {
		code = http.StatusOK
	}
	c.JSON(code, resp)
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orders.ListMyOrders(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	detail, err := h.orders.GetOrderDetail(c.Request.Context(), principal(c), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) listAllOrders(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}

	orders, err := h.orders.ListAllOrders(c.Request.Context(), principal(c), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type statusBody struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if err := h.orders.UpdateOrderStatus(c.Request.Context(), principal(c), orderID, body.Status); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status": body.Status})
}

func (h *Handler) deleteAllOrders(c *gin.Context) {
	deleted, err := h.orders.DeleteAllOrders(c.Request.Context(), principal(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders_deleted": deleted})
}

func (h *Handler) revenueAnalytics(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		return
	}

	series, err := h.orders.GetRevenueAnalytics(c.Request.Context(), principal(c), days)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": len(series), "series": series})
}

func principal(c *gin.Context) models.Principal {
	p, _ := auth.PrincipalFrom(c)
	return p
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_order_id"})
		return 0, false
	}
	return id, true
}

// intQuery reads an optional integer query parameter; absent means 0
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_" + name})
		return 0, false
	}
	return v, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
