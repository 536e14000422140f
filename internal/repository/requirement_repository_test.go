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

func requirementDocument(code string) *models.Document {
	return &models.Document{
		EntityType:            models.EntityTypeStudent,
		EntityID:              "stu-1",
		Category:              "education",
		FileName:              "transcript.pdf",
		FilePath:              "student/stu-1/transcript_1_abcdef12.pdf",
		FileSize:              512,
		MimeType:              "application/pdf",
		UploadedBy:            "staff-1",
		LinkedRequirementCode: &code,
	}
}

func expectStatusLock(mock sqlmock.Sqlmock, current interface{}) {
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requirement_status")).
		WithArgs(models.EntityTypeStudent, "stu-1", "high_school_transcript", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(models.EntityTypeStudent, "stu-1", "high_school_transcript").
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(current))
}

func TestSetCurrentDocumentArchivesPreviousAndCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequirementRepository(db)

	mock.ExpectBegin()
	expectStatusLock(mock, "doc-old")
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents SET status = $4")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-old"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_status SET document_id = $4")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := requirementDocument("high_school_transcript")
	archived, err := repo.SetCurrentDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-old"}, archived)
	assert.NotEmpty(t, doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCurrentDocumentRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequirementRepository(db)

	mock.ExpectBegin()
	expectStatusLock(mock, nil)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents SET status = $4")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.SetCurrentDocument(context.Background(), requirementDocument("high_school_transcript"))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetCurrentDocumentRequiresCode(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequirementRepository(db)

	_, err := repo.SetCurrentDocument(context.Background(), &models.Document{})
	require.ErrorIs(t, err, ErrRequirementCodeMissing)
}

func TestUnlinkArchivesAndClearsPointer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequirementRepository(db)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document_id FROM requirement_status")).
		WithArgs(models.EntityTypeStudent, "stu-1", "high_school_transcript").
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow("doc-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $2")).
		WithArgs("doc-1", models.DocumentStatusArchived, at, "staff-1", models.DocumentStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_status SET document_id = NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("doc-1").
		WillReturnRows(documentRow("doc-1", "transcript.pdf", models.DocumentStatusArchived, "high_school_transcript"))
	mock.ExpectCommit()

	doc, err := repo.Unlink(context.Background(), models.EntityTypeStudent, "stu-1", "high_school_transcript", "staff-1", at)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusArchived, doc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlinkWithoutCurrentDocument(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequirementRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document_id FROM requirement_status")).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(nil))
	mock.ExpectRollback()

	_, err := repo.Unlink(context.Background(), models.EntityTypeStudent, "stu-1", "high_school_transcript", "staff-1", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStatuses(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequirementRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"entity_type", "entity_id", "requirement_code", "document_id", "updated_by", "updated_at", "file_name", "uploaded_at"}).
		AddRow("student", "stu-1", "high_school_transcript", "doc-1", "staff-1", now, "transcript.pdf", now).
		AddRow("student", "stu-1", "id_verification", nil, "staff-1", now, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requirement_status rs")).
		WithArgs(models.EntityTypeStudent, "stu-1").
		WillReturnRows(rows)

	statuses, err := repo.ListStatuses(context.Background(), models.EntityTypeStudent, "stu-1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Satisfied())
	assert.False(t, statuses[1].Satisfied())
}
