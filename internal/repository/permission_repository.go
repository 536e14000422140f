package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// PermissionRepository reads role defaults and manages per-staff grants.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// GetGrant returns the explicit grant for the staff member, or sql.ErrNoRows.
func (r *PermissionRepository) GetGrant(ctx context.Context, staffID string, key models.PermissionKey) (*models.PermissionGrant, error) {
	const query = `SELECT staff_id, module, action, allowed, granted_by, granted_on
	FROM staff_permissions WHERE staff_id = $1 AND module = $2 AND action = $3`
	var grant models.PermissionGrant
	if err := r.db.GetContext(ctx, &grant, query, staffID, key.Module, key.Action); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get permission grant: %w", err)
	}
	return &grant, nil
}

// ListGrants returns every explicit grant held by the staff member.
func (r *PermissionRepository) ListGrants(ctx context.Context, staffID string) ([]models.PermissionGrant, error) {
	const query = `SELECT staff_id, module, action, allowed, granted_by, granted_on
	FROM staff_permissions WHERE staff_id = $1 ORDER BY module, action`
	var grants []models.PermissionGrant
	if err := r.db.SelectContext(ctx, &grants, query, staffID); err != nil {
		return nil, fmt.Errorf("list permission grants: %w", err)
	}
	return grants, nil
}

// ListRoleDefaults returns the defaults configured for a role type.
func (r *PermissionRepository) ListRoleDefaults(ctx context.Context, roleTypeID int) ([]models.RoleDefault, error) {
	const query = `SELECT role_type_id, module, action, allowed
	FROM role_permission_defaults WHERE role_type_id = $1 ORDER BY module, action`
	var defaults []models.RoleDefault
	if err := r.db.SelectContext(ctx, &defaults, query, roleTypeID); err != nil {
		return nil, fmt.Errorf("list role defaults: %w", err)
	}
	return defaults, nil
}

// ListKnownKeys returns every module/action pair mentioned by any role default.
func (r *PermissionRepository) ListKnownKeys(ctx context.Context) ([]models.PermissionKey, error) {
	const query = `SELECT DISTINCT module, action FROM role_permission_defaults ORDER BY module, action`
	var keys []models.PermissionKey
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("list permission keys: %w", err)
	}
	return keys, nil
}

// ReplaceGrants deletes all grants of the staff member and inserts the new set
// in one transaction. Any failure leaves the previous grants untouched.
func (r *PermissionRepository) ReplaceGrants(ctx context.Context, staffID string, grants []models.PermissionGrant) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace grants transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM staff_permissions WHERE staff_id = $1`, staffID); err != nil {
		return fmt.Errorf("delete permission grants: %w", err)
	}

	const insert = `INSERT INTO staff_permissions (staff_id, module, action, allowed, granted_by, granted_on)
	VALUES (:staff_id, :module, :action, :allowed, :granted_by, :granted_on)`
	for i := range grants {
		grants[i].StaffID = staffID
		if _, err = tx.NamedExecContext(ctx, insert, &grants[i]); err != nil {
			return fmt.Errorf("insert permission grant %s: %w", grants[i].Key(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace grants: %w", err)
	}
	return nil
}
