// Package handler exposes the order desk over HTTP using gin.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/orderdesk/internal/domain/address"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
	"github.com/xenking/orderdesk/internal/domain/user"
	"github.com/xenking/orderdesk/internal/idempotency"
)

// HeaderIdempotencyKey lets clients retry a placement without creating a
// second order.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler holds the services behind the HTTP API.
type Handler struct {
	users     *user.Service
	products  product.Repository
	orders    *order.Service
	addresses *address.Service
	guard     *idempotency.Guard
}

// NewHandler constructs a Handler. guard may be nil to disable
// idempotency keys.
func NewHandler(
	users *user.Service,
	products product.Repository,
	orders *order.Service,
	addresses *address.Service,
	guard *idempotency.Guard,
) *Handler {
	return &Handler{
		users:     users,
		products:  products,
		orders:    orders,
		addresses: addresses,
		guard:     guard,
	}
}

// Router returns a gin engine serving every /api route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(nameSpan())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "route not found"})
	})

	api := r.Group("/api")

	api.POST("/users/register", h.register)
	api.POST("/users/login", h.login)
	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)

	authed := api.Group("", h.basicAuth())
	authed.GET("/users/me", h.me)
	authed.POST("/orders", h.placeOrder)
	authed.GET("/orders/user", h.listMyOrders)
	authed.GET("/orders/:id", h.getOrder)
	authed.GET("/addresses", h.listAddresses)
	authed.POST("/addresses", h.addAddress)
	authed.GET("/addresses/:id", h.getAddress)
	authed.PUT("/addresses/:id", h.updateAddress)
	authed.DELETE("/addresses/:id", h.deleteAddress)

	admin := authed.Group("", requireAdmin())
	admin.GET("/orders", h.listAllOrders)
	admin.PUT("/orders/:id/status", h.updateStatus)

	return r
}

// nameSpan renames the otelhttp server span after the matched route.
func nameSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		if route := c.FullPath(); route != "" {
			trace.SpanFromContext(c.Request.Context()).SetName(c.Request.Method + " " + route)
		}
		c.Next()
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
