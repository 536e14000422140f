package models

import "time"

// Audit actions emitted by the back office.
const (
	AuditActionLogin               = "LOGIN"
	AuditActionDocumentUpload      = "DOCUMENT_UPLOAD"
	AuditActionDocumentArchive     = "DOCUMENT_ARCHIVE"
	AuditActionDocumentPurge       = "DOCUMENT_PURGE"
	AuditActionDocumentBulkPurge   = "DOCUMENT_BULK_PURGE"
	AuditActionRequirementUnlink   = "REQUIREMENT_UNLINK"
	AuditActionPermissionsReplaced = "PERMISSIONS_REPLACE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	StaffID    *string   `db:"staff_id" json:"staff_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	RequestID  string    `db:"request_id" json:"request_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
