package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/response"
)

type permissionGate interface {
	RequirePermission(ctx context.Context, actor *models.Actor, key string) error
	RequireSuperAdmin(ctx context.Context, actor *models.Actor) error
}

// RequirePermission rejects the request unless the caller holds key.
// Must run after JWT.
func RequirePermission(gate permissionGate, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := gate.RequirePermission(c.Request.Context(), actor, key); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSuperAdmin rejects callers whose stored record is not a super admin.
func RequireSuperAdmin(gate permissionGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor(c)
		if actor == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := gate.RequireSuperAdmin(c.Request.Context(), actor); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
