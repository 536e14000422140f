package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/internal/dto"
	"github.com/noah-isme/sma-backoffice/internal/middleware"
	"github.com/noah-isme/sma-backoffice/internal/models"
	"github.com/noah-isme/sma-backoffice/internal/service"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/response"
)

type documentService interface {
	Upload(ctx context.Context, actor *models.Actor, req dto.UploadDocumentRequest, upload service.DocumentUpload) (*service.UploadResult, error)
	UnlinkRequirement(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID, code string) (*models.Document, error)
	SoftDelete(ctx context.Context, actor *models.Actor, id string, removeFile bool) (*models.Document, error)
	PermanentDelete(ctx context.Context, actor *models.Actor, id string) error
	BulkPurge(ctx context.Context, actor *models.Actor, req dto.PurgeDocumentsRequest) (*models.PurgeSummary, error)
	ListByEntity(ctx context.Context, actor *models.Actor, filter models.DocumentFilter) ([]models.Document, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.Document, error)
	GetDownloadURL(ctx context.Context, actor *models.Actor, id string) (*dto.DocumentDownloadResponse, error)
	Download(ctx context.Context, actor *models.Actor, id, token string) (*service.DocumentDownload, error)
}

// DocumentHandler exposes document lifecycle endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(service documentService) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// Upload godoc
// @Summary Upload a document for a student or staff member
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student or staff ID"
// @Param category formData string false "Category (exclusive with requirementCode)"
// @Param subcategory formData string false "Subcategory"
// @Param requirementCode formData string false "Requirement code"
// @Param notes formData string false "Notes"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id}/documents [post]
// @Router /staff/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	req.EntityType = entityTypeFromContext(c)
	req.EntityID = c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.WithDetails(appErrors.ErrInvalidFile, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	upload := service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	result, err := h.service.Upload(c.Request.Context(), actor, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.DocumentUploadResponse{
		Document:    result.Document,
		RedirectTab: result.RedirectTab,
		Superseded:  result.Superseded,
	}, middleware.ResponseMeta(c))
}

// List godoc
// @Summary List documents of a student or staff member
// @Tags Documents
// @Produce json
// @Param id path string true "Student or staff ID"
// @Param category query string false "Category filter"
// @Param includeArchived query bool false "Include archived documents"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/documents [get]
// @Router /staff/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	filter := models.DocumentFilter{
		EntityType:      entityTypeFromContext(c),
		EntityID:        c.Param("id"),
		Category:        strings.TrimSpace(c.Query("category")),
		IncludeArchived: queryBool(c, "includeArchived"),
		Limit:           queryInt(c, "limit", 0),
		Offset:          queryInt(c, "offset", 0),
	}
	docs, err := h.service.ListByEntity(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := middleware.ResponseMeta(c)
	if meta != nil {
		meta["count"] = len(docs)
	}
	response.JSON(c, http.StatusOK, docs, meta)
}

// Unlink godoc
// @Summary Unlink the current document of a requirement
// @Description Archives the document and clears the requirement pointer. The file is kept.
// @Tags Requirements
// @Produce json
// @Param id path string true "Student or staff ID"
// @Param code path string true "Requirement code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/requirements/{code} [delete]
// @Router /staff/{id}/requirements/{code} [delete]
func (h *DocumentHandler) Unlink(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	doc, err := h.service.UnlinkRequirement(c.Request.Context(), actor, entityTypeFromContext(c), c.Param("id"), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, middleware.ResponseMeta(c))
}

// Get godoc
// @Summary Get document metadata with a signed download link
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, middleware.ResponseMeta(c))
}

// DownloadURL godoc
// @Summary Issue a signed download URL
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	link, err := h.service.GetDownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a document via signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), actor, c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.Reader.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.Size, result.MimeType, result.Reader, nil)
}

// Delete godoc
// @Summary Archive a document
// @Description Documents that currently satisfy a requirement must be unlinked instead.
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Param removeFile query bool false "Also remove the stored file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	doc, err := h.service.SoftDelete(c.Request.Context(), actor, c.Param("id"), queryBool(c, "removeFile"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, middleware.ResponseMeta(c))
}

// PermanentDelete godoc
// @Summary Permanently delete a document (super admin)
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /documents/{id}/permanent [delete]
func (h *DocumentHandler) PermanentDelete(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	if err := h.service.PermanentDelete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Purge godoc
// @Summary Bulk permanent delete (super admin)
// @Description Refused when more documents match than the batch limit.
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.PurgeDocumentsRequest true "Purge filters"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents/purge [post]
func (h *DocumentHandler) Purge(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.PurgeDocumentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid purge payload"))
		return
	}
	summary, err := h.service.BulkPurge(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, middleware.ResponseMeta(c))
}
