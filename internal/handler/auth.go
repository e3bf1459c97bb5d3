package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/orderdesk/internal/domain/user"
)

const currentUserKey = "orderdesk.user"

// basicAuth authenticates the request with HTTP Basic credentials and stores
// the account in the gin context.
func (h *Handler) basicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, password, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c)
			return
		}
		ctx := c.Request.Context()
		u, err := h.users.Authenticate(ctx, email, password)
		if err != nil {
			if !errors.Is(err, user.ErrInvalidCredentials) {
				zctx.From(ctx).Error("Authenticate failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
				return
			}
			unauthorized(c)
			return
		}
		c.Set(currentUserKey, u)
		c.Request = c.Request.WithContext(zctx.With(ctx, zap.Int64("user_id", u.ID)))
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "admin role required"})
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="orderdesk"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "authentication required"})
}

// currentUser returns the account set by basicAuth. It panics when called
// outside an authenticated route.
func currentUser(c *gin.Context) *user.User {
	return c.MustGet(currentUserKey).(*user.User)
}
