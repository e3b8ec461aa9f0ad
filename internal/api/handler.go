package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"serial-service/internal/apperrors"
	"serial-service/internal/service"
	"serial-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService *service.OrderService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService) *Handler {
	return &Handler{
		orderService: orderService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:order_no", h.getOrder)
		v1.PUT("/orders/:order_no", h.updateOrder)
		v1.DELETE("/orders/:order_no", h.deleteOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder registers an order and returns the minted serials
func (h *Handler) createOrder(c *gin.Context) {
	var req service.SubmitOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orderService.SubmitOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getOrder returns an order's rows by order number
func (h *Handler) getOrder(c *gin.Context) {
	view, err := h.orderService.SearchOrder(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// updateOrder rewrites an existing order's rows
func (h *Handler) updateOrder(c *gin.Context) {
	var req service.UpdateOrderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("order_no"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// deleteOrder removes every row of an order
func (h *Handler) deleteOrder(c *gin.Context) {
	removed, err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_no":     c.Param("order_no"),
		"rows_removed": removed,
	})
}

// respondError maps domain errors onto HTTP statuses. A busy workbook is
// 423 so callers know to retry rather than give up.
func respondError(c *gin.Context, err error) {
	var (
		verr *apperrors.ValidationError
		cerr *apperrors.CalendarError
		nerr *apperrors.NotFoundError
		berr *apperrors.BusyError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": verr.Error()})
	case errors.As(err, &cerr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date", "details": cerr.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "details": nerr.Error()})
	case errors.As(err, &berr):
		c.JSON(http.StatusLocked, gin.H{"error": "Workbook is in use, retry shortly", "details": berr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
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
