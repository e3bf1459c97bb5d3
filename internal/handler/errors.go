package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderdesk/internal/domain/address"
	"github.com/xenking/orderdesk/internal/domain/order"
	"github.com/xenking/orderdesk/internal/domain/product"
	"github.com/xenking/orderdesk/internal/domain/user"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// fail maps a service error onto a status code. Unclassified errors are
// logged and reported without detail.
func fail(c *gin.Context, err error) {
	var (
		notFound   *order.NotFoundError
		invalid    *order.ValidationError
		transition *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, errorResponse{Error: invalid.Reason, Field: invalid.Field})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, errorResponse{Error: transition.Error()})
	case errors.Is(err, user.ErrEmailTaken):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, user.ErrInvalidInput), errors.Is(err, address.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, user.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, product.ErrNotFound), errors.Is(err, user.ErrNotFound),
		errors.Is(err, address.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		zctx.From(c.Request.Context()).Error("Request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
}
