package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/middleware/requestid"
	"github.com/noah-isme/sma-backoffice/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type tokenValidator interface {
	ValidateToken(token string) (*models.StaffClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// Claims returns the validated token claims, or nil on public routes.
func Claims(c *gin.Context) *models.StaffClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.StaffClaims)
	if !ok {
		return nil
	}
	return claims
}

// Actor builds the request scoped identity handed to services.
func Actor(c *gin.Context) *models.Actor {
	claims := Claims(c)
	if claims == nil {
		return nil
	}
	return &models.Actor{
		StaffID:      claims.StaffID,
		IsSuperAdmin: claims.IsSuperAdmin,
		RequestID:    requestid.Value(c),
		IPAddress:    c.ClientIP(),
		UserAgent:    c.GetHeader("User-Agent"),
	}
}
