package dto

import (
	"time"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// UploadDocumentRequest contains metadata submitted alongside a file upload.
// Exactly one of Category or RequirementCode must be set.
type UploadDocumentRequest struct {
	EntityType      models.EntityType `form:"-" json:"-" validate:"required,oneof=student staff"`
	EntityID        string            `form:"-" json:"-" validate:"required,max=64"`
	Category        string            `form:"category" json:"category" validate:"omitempty,max=100"`
	Subcategory     string            `form:"subcategory" json:"subcategory" validate:"omitempty,max=100"`
	RequirementCode string            `form:"requirementCode" json:"requirementCode" validate:"omitempty,max=100"`
	Notes           string            `form:"notes" json:"notes" validate:"omitempty,max=1000"`
}

// PurgeDocumentsRequest selects documents for a bulk permanent delete.
type PurgeDocumentsRequest struct {
	OlderThanDays int      `json:"olderThanDays" validate:"gte=0,lte=36500"`
	ArchivedOnly  bool     `json:"archivedOnly"`
	Categories    []string `json:"categories" validate:"omitempty,dive,required,max=100"`
	EntityType    string   `json:"entityType" validate:"omitempty,oneof=student staff"`
}

// DocumentUploadResponse wraps the stored document with the tab to show next.
type DocumentUploadResponse struct {
	Document    *models.Document `json:"document"`
	RedirectTab string           `json:"redirectTab"`
	Superseded  []string         `json:"supersededIds,omitempty"`
}

// DocumentDownloadResponse carries a signed download URL.
type DocumentDownloadResponse struct {
	DocumentID  string    `json:"documentId"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
