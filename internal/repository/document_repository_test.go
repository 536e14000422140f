package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

var documentRowColumns = []string{"id", "entity_type", "entity_id", "category", "subcategory", "file_name", "file_path", "file_size",
	"mime_type", "uploaded_by", "uploaded_at", "notes", "linked_requirement_code", "status", "archived_at", "archived_by"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func documentRow(id, fileName string, status models.DocumentStatus, code interface{}) *sqlmock.Rows {
	return sqlmock.NewRows(documentRowColumns).
		AddRow(id, "student", "stu-1", "education", nil, fileName, "student/stu-1/"+fileName, 128,
			"application/pdf", "staff-1", time.Now(), nil, code, string(status), nil, nil)
}

func TestDocumentRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnResult(sqlmock.NewResult(1, 1))

	doc := &models.Document{EntityType: models.EntityTypeStudent, EntityID: "stu-1", Category: "medical", FileName: "x.pdf"}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, models.DocumentStatusActive, doc.Status)
	assert.False(t, doc.UploadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Document{EntityType: models.EntityTypeStudent, EntityID: "stu-1"})
	require.ErrorIs(t, err, models.ErrDuplicateDocument)
}

func TestDocumentRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDocumentRepositoryListActiveByDefault(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE entity_type = $1 AND entity_id = $2 AND status = $3 AND category = $4")).
		WithArgs(models.EntityTypeStudent, "stu-1", models.DocumentStatusActive, "education").
		WillReturnRows(documentRow("doc-1", "diploma.pdf", models.DocumentStatusActive, nil))

	docs, err := repo.List(context.Background(), models.DocumentFilter{EntityType: models.EntityTypeStudent, EntityID: "stu-1", Category: "education"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryArchiveNothingChanged(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Archive(context.Background(), "doc-1", "staff-1", time.Now())
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDocumentRepositoryCountPurgeCandidates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	criteria := models.PurgeCriteria{OlderThanDays: 30, ArchivedOnly: true, Categories: []string{"medical", "financial"}, Now: now}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM documents WHERE uploaded_at < $1 AND status = $2 AND category IN ($3,$4)")).
		WithArgs(now.AddDate(0, 0, -30), models.DocumentStatusArchived, "medical", "financial").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1500))

	total, err := repo.CountPurgeCandidates(context.Background(), criteria)
	require.NoError(t, err)
	assert.Equal(t, 1500, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryPurgeCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("doc-1").
		WillReturnRows(documentRow("doc-1", "transcript.pdf", models.DocumentStatusActive, "high_school_transcript"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_status SET document_id = NULL")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).WithArgs("doc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var removed string
	err := repo.Purge(context.Background(), "doc-1", func(doc *models.Document) error {
		removed = doc.FilePath
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "student/stu-1/transcript.pdf", removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryPurgeRollsBackOnFileError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("doc-1").
		WillReturnRows(documentRow("doc-1", "transcript.pdf", models.DocumentStatusArchived, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_status SET document_id = NULL")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	diskErr := errors.New("permission denied")
	err := repo.Purge(context.Background(), "doc-1", func(*models.Document) error { return diskErr })
	require.ErrorIs(t, err, diskErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryPurgeMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("gone").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Purge(context.Background(), "gone", nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
