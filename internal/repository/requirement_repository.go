package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// ErrRequirementCodeMissing is returned when SetCurrentDocument receives an unlinked document.
var ErrRequirementCodeMissing = errors.New("document has no linked requirement code")

// RequirementRepository owns the requirement_status pointer table and keeps it
// consistent with the document history in the same transaction.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// SetCurrentDocument archives the previous active document for the requirement,
// inserts doc and points the status row at it, atomically. The status row is
// locked first so concurrent replacements for the same pair serialise.
func (r *RequirementRepository) SetCurrentDocument(ctx context.Context, doc *models.Document) (archivedIDs []string, err error) {
	if doc.LinkedRequirementCode == nil || *doc.LinkedRequirementCode == "" {
		return nil, ErrRequirementCodeMissing
	}
	prepareDocument(doc)
	code := *doc.LinkedRequirementCode
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin requirement transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockRequirementStatus(ctx, tx, doc.EntityType, doc.EntityID, code, now); err != nil {
		return nil, err
	}

	const archivePrevious = `UPDATE documents SET status = $4, archived_at = $5, archived_by = $6
	WHERE entity_type = $1 AND entity_id = $2 AND linked_requirement_code = $3 AND status = $7
	RETURNING id`
	if err = tx.SelectContext(ctx, &archivedIDs, archivePrevious,
		doc.EntityType, doc.EntityID, code, models.DocumentStatusArchived, now, doc.UploadedBy, models.DocumentStatusActive); err != nil {
		return nil, fmt.Errorf("archive previous requirement document: %w", err)
	}

	if _, err = tx.NamedExecContext(ctx, insertDocumentQuery, doc); err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("insert requirement document: %w", models.ErrDuplicateDocument)
		}
		return nil, fmt.Errorf("insert requirement document: %w", err)
	}

	const point = `UPDATE requirement_status SET document_id = $4, updated_by = $5, updated_at = $6
	WHERE entity_type = $1 AND entity_id = $2 AND requirement_code = $3`
	if _, err = tx.ExecContext(ctx, point, doc.EntityType, doc.EntityID, code, doc.ID, doc.UploadedBy, now); err != nil {
		return nil, fmt.Errorf("update requirement status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit requirement document: %w", err)
	}
	return archivedIDs, nil
}

// Unlink clears the requirement pointer and archives the linked document while
// keeping the row and file. Returns sql.ErrNoRows when nothing is linked.
func (r *RequirementRepository) Unlink(ctx context.Context, entityType models.EntityType, entityID, code, actorID string, at time.Time) (doc *models.Document, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unlink transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var documentID sql.NullString
	const selectPointer = `SELECT document_id FROM requirement_status
	WHERE entity_type = $1 AND entity_id = $2 AND requirement_code = $3 FOR UPDATE`
	if err = tx.GetContext(ctx, &documentID, selectPointer, entityType, entityID, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock requirement status: %w", err)
	}
	if !documentID.Valid || documentID.String == "" {
		err = sql.ErrNoRows
		return nil, err
	}

	const archive = `UPDATE documents SET status = $2, archived_at = $3, archived_by = $4 WHERE id = $1 AND status = $5`
	if _, err = tx.ExecContext(ctx, archive, documentID.String, models.DocumentStatusArchived, at, actorID, models.DocumentStatusActive); err != nil {
		return nil, fmt.Errorf("archive linked document: %w", err)
	}

	const clear = `UPDATE requirement_status SET document_id = NULL, updated_by = $4, updated_at = $5
	WHERE entity_type = $1 AND entity_id = $2 AND requirement_code = $3`
	if _, err = tx.ExecContext(ctx, clear, entityType, entityID, code, actorID, at); err != nil {
		return nil, fmt.Errorf("clear requirement status: %w", err)
	}

	var unlinked models.Document
	if err = tx.GetContext(ctx, &unlinked, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, documentID.String); err != nil {
		return nil, fmt.Errorf("reload unlinked document: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unlink: %w", err)
	}
	return &unlinked, nil
}

// ListStatuses returns every status row for the entity joined with its current document.
func (r *RequirementRepository) ListStatuses(ctx context.Context, entityType models.EntityType, entityID string) ([]models.RequirementStatus, error) {
	const query = `SELECT rs.entity_type, rs.entity_id, rs.requirement_code, rs.document_id, rs.updated_by, rs.updated_at,
       d.file_name, d.uploaded_at
	FROM requirement_status rs
	LEFT JOIN documents d ON d.id = rs.document_id
	WHERE rs.entity_type = $1 AND rs.entity_id = $2
	ORDER BY rs.requirement_code ASC`
	var statuses []models.RequirementStatus
	if err := r.db.SelectContext(ctx, &statuses, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list requirement statuses: %w", err)
	}
	return statuses, nil
}

func lockRequirementStatus(ctx context.Context, tx *sqlx.Tx, entityType models.EntityType, entityID, code string, now time.Time) error {
	const ensure = `INSERT INTO requirement_status (entity_type, entity_id, requirement_code, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (entity_type, entity_id, requirement_code) DO NOTHING`
	if _, err := tx.ExecContext(ctx, ensure, entityType, entityID, code, now); err != nil {
		return fmt.Errorf("ensure requirement status: %w", err)
	}
	var current sql.NullString
	const lock = `SELECT document_id FROM requirement_status
	WHERE entity_type = $1 AND entity_id = $2 AND requirement_code = $3 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lock, entityType, entityID, code); err != nil {
		return fmt.Errorf("lock requirement status: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
