package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

const documentColumns = `id, entity_type, entity_id, category, subcategory, file_name, file_path, file_size, mime_type,
       uploaded_by, uploaded_at, notes, linked_requirement_code, status, archived_at, archived_by`

const insertDocumentQuery = `INSERT INTO documents
	(id, entity_type, entity_id, category, subcategory, file_name, file_path, file_size, mime_type,
	 uploaded_by, uploaded_at, notes, linked_requirement_code, status, archived_at, archived_by)
	VALUES (:id, :entity_type, :entity_id, :category, :subcategory, :file_name, :file_path, :file_size, :mime_type,
	 :uploaded_by, :uploaded_at, :notes, :linked_requirement_code, :status, :archived_at, :archived_by)`

// DocumentRepository handles document metadata persistence.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an uploaded category document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	prepareDocument(doc)
	if _, err := r.db.NamedExecContext(ctx, insertDocumentQuery, doc); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create document: %w", models.ErrDuplicateDocument)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document row regardless of status.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// List returns documents for one entity, newest first.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	args := []interface{}{filter.EntityType, filter.EntityID}
	conditions := []string{"entity_type = $1", "entity_id = $2"}
	if !filter.IncludeArchived {
		args = append(args, models.DocumentStatusActive)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY uploaded_at DESC LIMIT %d OFFSET %d`,
		documentColumns, strings.Join(conditions, " AND "), limit, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// FindActiveByFileName returns the active document with the given original name, or sql.ErrNoRows.
func (r *DocumentRepository) FindActiveByFileName(ctx context.Context, entityType models.EntityType, entityID, fileName string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE entity_type = $1 AND entity_id = $2 AND file_name = $3 AND status = $4
	ORDER BY uploaded_at DESC LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, entityType, entityID, fileName, models.DocumentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document by file name: %w", err)
	}
	return &doc, nil
}

// Archive soft deletes an active document. Returns sql.ErrNoRows when nothing changed.
func (r *DocumentRepository) Archive(ctx context.Context, id, archivedBy string, archivedAt time.Time) error {
	const query = `UPDATE documents SET status = $2, archived_at = $3, archived_by = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.DocumentStatusArchived, archivedAt, archivedBy, models.DocumentStatusActive)
	if err != nil {
		return fmt.Errorf("archive document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check archive rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountPurgeCandidates counts documents matching the bulk purge criteria.
func (r *DocumentRepository) CountPurgeCandidates(ctx context.Context, criteria models.PurgeCriteria) (int, error) {
	where, args := purgeConditions(criteria)
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"+where, args...); err != nil {
		return 0, fmt.Errorf("count purge candidates: %w", err)
	}
	return total, nil
}

// ListPurgeCandidates returns at most limit documents matching the criteria, oldest first.
func (r *DocumentRepository) ListPurgeCandidates(ctx context.Context, criteria models.PurgeCriteria, limit int) ([]models.Document, error) {
	where, args := purgeConditions(criteria)
	query := fmt.Sprintf("SELECT %s FROM documents%s ORDER BY uploaded_at ASC LIMIT %d", documentColumns, where, limit)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list purge candidates: %w", err)
	}
	return docs, nil
}

// Purge permanently deletes a document row inside a transaction. removeFile runs
// after the row delete and before commit; its error rolls the delete back.
func (r *DocumentRepository) Purge(ctx context.Context, id string, removeFile func(doc *models.Document) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var doc models.Document
	if err = tx.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock document: %w", err)
	}
	const clearPointer = `UPDATE requirement_status SET document_id = NULL, updated_at = $2 WHERE document_id = $1`
	if _, err = tx.ExecContext(ctx, clearPointer, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear requirement pointer: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if removeFile != nil {
		if err = removeFile(&doc); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit purge: %w", err)
	}
	return nil
}

func purgeConditions(criteria models.PurgeCriteria) (string, []interface{}) {
	args := make([]interface{}, 0, 4)
	conditions := make([]string, 0, 4)
	if cutoff := criteria.Cutoff(); !cutoff.IsZero() {
		args = append(args, cutoff)
		conditions = append(conditions, fmt.Sprintf("uploaded_at < $%d", len(args)))
	}
	if criteria.ArchivedOnly {
		args = append(args, models.DocumentStatusArchived)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if criteria.EntityType != "" {
		args = append(args, criteria.EntityType)
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if len(criteria.Categories) > 0 {
		marks := make([]string, len(criteria.Categories))
		for i, category := range criteria.Categories {
			args = append(args, category)
			marks[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("category IN (%s)", strings.Join(marks, ",")))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func prepareDocument(doc *models.Document) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusActive
	}
}
