package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-orders/internal/models"
	"shop-orders/internal/service"
	"shop-orders/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OrderService is the order behaviour the HTTP layer exposes
type OrderService interface {
	PlaceOrder(ctx context.Context, req *service.PlaceOrderRequest) (*models.OrderDetail, error)
	GetOrder(ctx context.Context, id int64) (*models.OrderDetail, error)
	ListOrders(ctx context.Context, page, pageSize int) (models.Page[models.OrderDetail], error)
	ListOrdersByUser(ctx context.Context, userID int64, page, pageSize int) (models.Page[models.OrderDetail], error)
	SetOrderState(ctx context.Context, orderID, stateID int64) (*models.OrderDetail, error)
	SetOrderPayment(ctx context.Context, orderID, paymentID int64) (*models.OrderDetail, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// ProductService is the catalog behaviour the HTTP layer exposes
type ProductService interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (models.Page[models.Product], error)
	CreateProduct(ctx context.Context, req *service.CreateProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req *service.UpdateProductRequest) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// StateLister lists the order lifecycle states
type StateLister interface {
	List(ctx context.Context) ([]models.OrderState, error)
}

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders   OrderService
	products ProductService
	states   StateLister
	checks   map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders OrderService, products ProductService, states StateLister) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		states:   states,
		checks:   map[string]Pinger{},
	}
}

// AddReadinessCheck makes /ready depend on p
func (h *Handler) AddReadinessCheck(name string, p Pinger) {
	h.checks[name] = p
}

type setStateRequest struct {
	StateID int64 `json:"state_id" binding:"required,min=1"`
}

type setPaymentRequest struct {
	PaymentID int64 `json:"payment_id" binding:"required,min=1"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/products", h.listProducts)
		api.POST("/products", h.createProduct)
		api.GET("/products/:id", h.getProduct)
		api.PUT("/products/:id", h.updateProduct)
		api.DELETE("/products/:id", h.deleteProduct)

		api.POST("/buy", h.placeOrder)
		api.GET("/buy", h.listOrders)
		api.GET("/buy/:id", h.getOrder)
		api.PUT("/buy/:id/state", h.setOrderState)
		api.PUT("/buy/:id/payment", h.setOrderPayment)
		api.DELETE("/buy/:id", h.deleteOrder)

		api.GET("/user/:userId/orders", h.listUserOrders)

		api.GET("/order-states", h.listOrderStates)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when every dependency answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// placeOrder handles order placement
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	order, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, presentOrder(*order))
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, presentOrder(*order))
}

func (h *Handler) listOrders(c *gin.Context) {
	page, perPage := pageParams(c)

	orders, err := h.orders.ListOrders(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MapPage(orders, presentOrder))
}

func (h *Handler) listUserOrders(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	page, perPage := pageParams(c)

	orders, err := h.orders.ListOrdersByUser(c.Request.Context(), userID, page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MapPage(orders, presentOrder))
}

func (h *Handler) setOrderState(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req setStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.orders.SetOrderState(c.Request.Context(), orderID, req.StateID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, presentOrder(*order))
}

func (h *Handler) setOrderPayment(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req setPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.orders.SetOrderPayment(c.Request.Context(), orderID, req.PaymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, presentOrder(*order))
}

func (h *Handler) deleteOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listOrderStates(c *gin.Context) {
	states, err := h.states.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": states})
}

func (h *Handler) listProducts(c *gin.Context) {
	page, perPage := pageParams(c)

	products, err := h.products.ListProducts(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := h.products.UpdateProduct(c.Request.Context(), productID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(c.Request.Context(), productID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// pathID parses a positive integer path parameter, answering 400 otherwise
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// pageParams reads ?page and ?per_page. Bad values fall back to the service defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return page, perPage
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

// requestLogger logs one line per request through zap
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		util.GetLogger().Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
