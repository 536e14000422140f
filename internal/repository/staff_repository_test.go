package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

func TestStaffRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStaffRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role_type_id", "is_super_admin", "active", "created_at", "updated_at"}).
		AddRow("staff-1", "registrar@example.com", "hash", "Registrar", 3, false, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE email = $1 LIMIT 1")).
		WithArgs("registrar@example.com").
		WillReturnRows(rows)

	staff, err := repo.FindByEmail(context.Background(), "registrar@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, staff.RoleTypeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityRepositoryLookup(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEntityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"entity_type", "id", "display_name"}).AddRow("student", "stu-1", "Ada"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM staff WHERE id = $1")).
		WithArgs("nobody").
		WillReturnError(sql.ErrNoRows)

	ref, err := repo.Lookup(context.Background(), models.EntityTypeStudent, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", ref.DisplayName)

	_, err = repo.Lookup(context.Background(), models.EntityTypeStaff, "nobody")
	require.ErrorIs(t, err, sql.ErrNoRows)

	_, err = repo.Lookup(context.Background(), models.EntityType("alumni"), "x")
	require.Error(t, err)
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{Action: models.AuditActionDocumentUpload, Resource: "document"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
