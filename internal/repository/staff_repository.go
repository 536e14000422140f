package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

const staffColumns = `id, email, password_hash, full_name, role_type_id, is_super_admin, active, created_at, updated_at`

// StaffRepository provides database access for back office staff accounts.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository creates a new instance of StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByEmail returns a staff member by email address.
func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE email = $1 LIMIT 1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff by email: %w", err)
	}
	return &staff, nil
}

// FindByID returns a staff member by identifier.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id = $1 LIMIT 1`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find staff by id: %w", err)
	}
	return &staff, nil
}

// UpdateLastLogin stamps the staff row after a successful login.
func (r *StaffRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE staff SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
