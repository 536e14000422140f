package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/middleware"
	"github.com/noah-isme/sma-backoffice/internal/models"
	"github.com/noah-isme/sma-backoffice/internal/service"
	"github.com/noah-isme/sma-backoffice/pkg/response"
)

type requirementService interface {
	Catalog(entityType models.EntityType) []models.Requirement
	Checklist(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID string) ([]models.ChecklistItem, error)
}

type checklistExporter interface {
	Checklist(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID, format string) (*service.ExportFile, error)
}

// RequirementHandler serves the requirement catalog and per-entity checklists.
type RequirementHandler struct {
	requirements requirementService
	exports      checklistExporter
}

// NewRequirementHandler constructs the handler.
func NewRequirementHandler(requirements requirementService, exports checklistExporter) *RequirementHandler {
	return &RequirementHandler{requirements: requirements, exports: exports}
}

// Catalog godoc
// @Summary List known requirements
// @Tags Requirements
// @Produce json
// @Param entityType query string false "student or staff"
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *RequirementHandler) Catalog(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.requirements.Catalog(entityTypeFromContext(c)), nil)
}

// Checklist godoc
// @Summary Requirement checklist for a student or staff member
// @Tags Requirements
// @Produce json
// @Param id path string true "Student or staff ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/requirements [get]
// @Router /staff/{id}/requirements [get]
func (h *RequirementHandler) Checklist(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	items, err := h.requirements.Checklist(c.Request.Context(), actor, entityTypeFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, middleware.ResponseMeta(c))
}

// Export godoc
// @Summary Export a requirement checklist
// @Tags Requirements
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student or staff ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /students/{id}/requirements/export [get]
// @Router /staff/{id}/requirements/export [get]
func (h *RequirementHandler) Export(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	file, err := h.exports.Checklist(c.Request.Context(), actor, entityTypeFromContext(c), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
