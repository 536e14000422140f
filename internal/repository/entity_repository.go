package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// EntityRepository resolves polymorphic document owners against their tables.
type EntityRepository struct {
	db *sqlx.DB
}

// NewEntityRepository constructs the repository.
func NewEntityRepository(db *sqlx.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// Lookup returns the owner reference or sql.ErrNoRows when it does not exist.
func (r *EntityRepository) Lookup(ctx context.Context, entityType models.EntityType, id string) (*models.EntityRef, error) {
	var query string
	switch entityType {
	case models.EntityTypeStudent:
		query = `SELECT 'student' AS entity_type, id, full_name AS display_name FROM students WHERE id = $1`
	case models.EntityTypeStaff:
		query = `SELECT 'staff' AS entity_type, id, full_name AS display_name FROM staff WHERE id = $1`
	default:
		return nil, fmt.Errorf("unsupported entity type %q", entityType)
	}

	var ref models.EntityRef
	if err := r.db.GetContext(ctx, &ref, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lookup %s: %w", entityType, err)
	}
	return &ref, nil
}
