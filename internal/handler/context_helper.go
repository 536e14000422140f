package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/middleware"
	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/response"
)

const entityTypeKey = "entityType"

// BindEntityType pins the owner type for routes mounted under /students or /staff.
func BindEntityType(entityType models.EntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(entityTypeKey, entityType)
		c.Next()
	}
}

// actorFromContext writes UNAUTHORIZED and returns nil when no token was validated.
func actorFromContext(c *gin.Context) *models.Actor {
	actor := middleware.Actor(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return actor
}

func entityTypeFromContext(c *gin.Context) models.EntityType {
	if value, ok := c.Get(entityTypeKey); ok {
		if typed, ok := value.(models.EntityType); ok {
			return typed
		}
	}
	parsed, _ := models.ParseEntityType(c.Query("entityType"))
	return parsed
}

func queryBool(c *gin.Context, key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && parsed
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
