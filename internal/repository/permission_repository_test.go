package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

func TestPermissionRepositoryGetGrant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	rows := sqlmock.NewRows([]string{"staff_id", "module", "action", "allowed", "granted_by", "granted_on"}).
		AddRow("staff-1", "documents", "delete", false, "admin", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_permissions WHERE staff_id = $1 AND module = $2 AND action = $3")).
		WithArgs("staff-1", "documents", "delete").
		WillReturnRows(rows)

	grant, err := repo.GetGrant(context.Background(), "staff-1", models.PermissionKey{Module: "documents", Action: "delete"})
	require.NoError(t, err)
	assert.False(t, grant.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryGetGrantMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM staff_permissions")).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetGrant(context.Background(), "staff-1", models.PermissionKey{Module: "documents", Action: "view"})
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPermissionRepositoryListRoleDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	rows := sqlmock.NewRows([]string{"role_type_id", "module", "action", "allowed"}).
		AddRow(2, "documents", "view", true).
		AddRow(2, "education", "edit", true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM role_permission_defaults WHERE role_type_id = $1")).
		WithArgs(2).
		WillReturnRows(rows)

	defaults, err := repo.ListRoleDefaults(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, defaults, 2)
	assert.Equal(t, "education", defaults[1].Module)
}

func TestPermissionRepositoryReplaceGrantsCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM staff_permissions WHERE staff_id = $1")).
		WithArgs("staff-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO staff_permissions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO staff_permissions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grants := []models.PermissionGrant{
		{Module: "documents", Action: "view", Allowed: true, GrantedBy: "admin", GrantedOn: time.Now()},
		{Module: "documents", Action: "delete", Allowed: false, GrantedBy: "admin", GrantedOn: time.Now()},
	}
	require.NoError(t, repo.ReplaceGrants(context.Background(), "staff-1", grants))
	assert.Equal(t, "staff-1", grants[1].StaffID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepositoryReplaceGrantsRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPermissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM staff_permissions")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO staff_permissions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO staff_permissions")).WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	grants := []models.PermissionGrant{
		{Module: "documents", Action: "view", Allowed: true},
		{Module: "documents", Action: "upload", Allowed: true},
	}
	err := repo.ReplaceGrants(context.Background(), "staff-1", grants)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
