package models

import (
	"errors"
	"time"
)

// ErrDuplicateDocument is reported by storage when an active document with the
// same entity and file name already exists.
var ErrDuplicateDocument = errors.New("duplicate active document")

// DocumentStatus replaces the legacy Y/N archive flag.
type DocumentStatus string

const (
	DocumentStatusActive   DocumentStatus = "active"
	DocumentStatusArchived DocumentStatus = "archived"
	// DocumentStatusPurged is never stored; it labels rows removed by a permanent delete.
	DocumentStatusPurged DocumentStatus = "purged"
)

// Document is one uploaded file tied to a student or staff record.
type Document struct {
	ID                    string         `db:"id" json:"id"`
	EntityType            EntityType     `db:"entity_type" json:"entityType"`
	EntityID              string         `db:"entity_id" json:"entityId"`
	Category              string         `db:"category" json:"category"`
	Subcategory           *string        `db:"subcategory" json:"subcategory,omitempty"`
	FileName              string         `db:"file_name" json:"fileName"`
	FilePath              string         `db:"file_path" json:"filePath"`
	FileSize              int64          `db:"file_size" json:"fileSize"`
	MimeType              string         `db:"mime_type" json:"mimeType"`
	UploadedBy            string         `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt            time.Time      `db:"uploaded_at" json:"uploadedAt"`
	Notes                 *string        `db:"notes" json:"notes,omitempty"`
	LinkedRequirementCode *string        `db:"linked_requirement_code" json:"linkedRequirementCode,omitempty"`
	Status                DocumentStatus `db:"status" json:"status"`
	ArchivedAt            *time.Time     `db:"archived_at" json:"archivedAt,omitempty"`
	ArchivedBy            *string        `db:"archived_by" json:"archivedBy,omitempty"`
}

// IsArchived reports whether the document has been superseded or soft deleted.
func (d *Document) IsArchived() bool {
	return d != nil && d.Status == DocumentStatusArchived
}

// LinkedTo reports whether the document currently satisfies the requirement code.
func (d *Document) LinkedTo(code string) bool {
	return d != nil && d.LinkedRequirementCode != nil && *d.LinkedRequirementCode == code
}

// DocumentFilter narrows entity document listings.
type DocumentFilter struct {
	EntityType      EntityType
	EntityID        string
	Category        string
	IncludeArchived bool
	Limit           int
	Offset          int
}

// PurgeCriteria selects documents for a bulk permanent delete.
type PurgeCriteria struct {
	OlderThanDays int
	ArchivedOnly  bool
	Categories    []string
	EntityType    EntityType
	// Now anchors the age threshold; zero means time.Now.
	Now time.Time
}

// Cutoff returns the upload time before which documents match, or zero when no age filter applies.
func (c PurgeCriteria) Cutoff() time.Time {
	if c.OlderThanDays <= 0 {
		return time.Time{}
	}
	now := c.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return now.AddDate(0, 0, -c.OlderThanDays)
}

// HasFilter reports whether at least one narrowing criterion is set.
func (c PurgeCriteria) HasFilter() bool {
	return c.OlderThanDays > 0 || c.ArchivedOnly || len(c.Categories) > 0 || c.EntityType != ""
}

// PurgeSummary reports the per-item outcome of a bulk permanent delete.
type PurgeSummary struct {
	Matched         int      `json:"matched"`
	DeletedCount    int      `json:"deletedCount"`
	FailedCount     int      `json:"failedCount"`
	FailedFileNames []string `json:"failedFileNames"`
}
