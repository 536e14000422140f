package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/dto"
	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/response"
)

type permissionService interface {
	ListGrants(ctx context.Context, actor *models.Actor, staffID string) ([]models.PermissionGrant, error)
	EffectivePermissions(ctx context.Context, actor *models.Actor, staffID string) ([]models.EffectivePermission, error)
	ReplaceGrants(ctx context.Context, actor *models.Actor, staffID string, req dto.ReplaceGrantsRequest) ([]models.PermissionGrant, error)
	Check(ctx context.Context, actor *models.Actor, staffID, key string) (*dto.PermissionCheckResponse, error)
}

// PermissionHandler manages per-staff permission overrides.
type PermissionHandler struct {
	service permissionService
}

// NewPermissionHandler constructs the handler.
func NewPermissionHandler(service permissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// List godoc
// @Summary List explicit permission grants
// @Tags Permissions
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	grants, err := h.service.ListGrants(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, nil)
}

// Effective godoc
// @Summary Resolve every known permission and its deciding layer
// @Tags Permissions
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/permissions/effective [get]
func (h *PermissionHandler) Effective(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	perms, err := h.service.EffectivePermissions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perms, nil)
}

// Replace godoc
// @Summary Replace all explicit grants of a staff member
// @Description Runs in one transaction; an empty list clears every override.
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body dto.ReplaceGrantsRequest true "Grants"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /staff/{id}/permissions [put]
func (h *PermissionHandler) Replace(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.ReplaceGrantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grants payload"))
		return
	}
	grants, err := h.service.ReplaceGrants(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, nil)
}

// Check godoc
// @Summary Check one permission key
// @Tags Permissions
// @Produce json
// @Param id path string true "Staff ID"
// @Param key query string true "module.action"
// @Success 200 {object} response.Envelope
// @Router /staff/{id}/permissions/check [get]
func (h *PermissionHandler) Check(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "key is required"))
		return
	}
	result, err := h.service.Check(c.Request.Context(), actor, c.Param("id"), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
