package models

import "time"

// Requirement is a named obligation a single current document can satisfy.
type Requirement struct {
	Code        string     `json:"code"`
	DisplayName string     `json:"displayName"`
	TabName     string     `json:"tabName"`
	EntityType  EntityType `json:"entityType,omitempty"`
	Known       bool       `json:"known"`
}

// RequirementStatus is the pointer row naming the current document for a requirement.
type RequirementStatus struct {
	EntityType      EntityType `db:"entity_type" json:"entityType"`
	EntityID        string     `db:"entity_id" json:"entityId"`
	RequirementCode string     `db:"requirement_code" json:"requirementCode"`
	DocumentID      *string    `db:"document_id" json:"documentId,omitempty"`
	UpdatedBy       *string    `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	FileName        *string    `db:"file_name" json:"fileName,omitempty"`
	UploadedAt      *time.Time `db:"uploaded_at" json:"uploadedAt,omitempty"`
}

// Satisfied reports whether a current document is linked.
func (s RequirementStatus) Satisfied() bool {
	return s.DocumentID != nil && *s.DocumentID != ""
}

// ChecklistItem joins a catalog requirement with its current status for an entity.
type ChecklistItem struct {
	Requirement
	Satisfied  bool       `json:"satisfied"`
	DocumentID *string    `json:"documentId,omitempty"`
	FileName   *string    `json:"fileName,omitempty"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
}
