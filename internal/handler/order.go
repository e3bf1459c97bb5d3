package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xenking/orderdesk/internal/domain/order"
)

type placeOrderRequest struct {
	AddressID int64                  `json:"addressId"`
	Shipping  order.ShippingSnapshot `json:"shipping"`
	Items     []order.ItemRequest    `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// placeOrder creates an order for the caller. With an Idempotency-Key a
// repeated request returns the original order with 200 instead of 201.
func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	u := currentUser(c)
	placeReq := order.PlaceOrderRequest{
		UserID:    u.ID,
		AddressID: req.AddressID,
		Shipping:  req.Shipping,
		Items:     req.Items,
	}

	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if key == "" || h.guard == nil {
		o, err := h.orders.PlaceOrder(ctx, placeReq)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, toOrderResponse(o))
		return
	}

	var placed *order.Order
	id, replayed, err := h.guard.Do(ctx, u.ID, key, func(ctx context.Context) (int64, error) {
		o, err := h.orders.PlaceOrder(ctx, placeReq)
		if err != nil {
			return 0, err
		}
		placed = o
		return o.ID, nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	if !replayed {
		c.JSON(http.StatusCreated, toOrderResponse(placed))
		return
	}

	o, err := h.orders.Get(ctx, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Idempotent-Replayed", "true")
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orders.ListByUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderList(orders))
}

// getOrder serves the owner and admins. Other callers get 404 so order ids
// do not leak.
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if u := currentUser(c); o.UserID != u.ID && !u.IsAdmin() {
		fail(c, &order.NotFoundError{Entity: order.EntityOrder, ID: id, Err: order.ErrNotFound})
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderList(orders))
}

func (h *Handler) updateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}
