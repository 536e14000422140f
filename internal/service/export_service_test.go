package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/internal/models"
	"github.com/noah-isme/sma-backoffice/pkg/export"
)

type checklistStub struct {
	items []models.ChecklistItem
	err   error
}

func (c checklistStub) Checklist(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID string) ([]models.ChecklistItem, error) {
	return c.items, c.err
}

type failingRenderer struct{}

func (failingRenderer) ContentType() string { return "text/csv" }
func (failingRenderer) Extension() string   { return ".csv" }
func (failingRenderer) Render(export.Dataset) ([]byte, error) {
	return nil, errors.New("boom")
}

func sampleChecklist() []models.ChecklistItem {
	docID := "doc-1"
	fileName := "diploma.pdf"
	uploadedAt := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	return []models.ChecklistItem{
		{Requirement: models.Requirement{Code: "high_school_diploma", DisplayName: "High School Diploma", TabName: "education"}, Satisfied: true, DocumentID: &docID, FileName: &fileName, UploadedAt: &uploadedAt},
		{Requirement: models.Requirement{Code: "payment_agreement", DisplayName: "Payment Agreement", TabName: "financial"}},
	}
}

func TestExportServiceChecklistCSV(t *testing.T) {
	svc := NewExportService(checklistStub{items: sampleChecklist()}, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	file, err := svc.Checklist(context.Background(), registrar(), models.EntityTypeStudent, "stu-1", "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "checklist_student_stu-1_20240501_090000.csv", file.FileName)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Requirement,Tab,Status,File,Uploaded At", lines[0])
	assert.Equal(t, "High School Diploma,education,on file,diploma.pdf,2024-03-04 10:30", lines[1])
	assert.Equal(t, "Payment Agreement,financial,missing,,", lines[2])
}

func TestExportServiceChecklistPDF(t *testing.T) {
	svc := NewExportService(checklistStub{items: sampleChecklist()}, nil, nil, nil)

	file, err := svc.Checklist(context.Background(), registrar(), models.EntityTypeStaff, "st-1", "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.FileName, ".pdf"))
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestExportServiceChecklistErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewExportService(checklistStub{}, nil, nil, nil)
	_, err := svc.Checklist(ctx, registrar(), models.EntityTypeStudent, "stu-1", "xlsx")
	requireCode(t, err, "VALIDATION_ERROR")

	svc = NewExportService(checklistStub{err: errForbidden()}, nil, nil, nil)
	_, err = svc.Checklist(ctx, registrar(), models.EntityTypeStudent, "stu-1", "csv")
	requireCode(t, err, "FORBIDDEN")

	svc = NewExportService(checklistStub{items: sampleChecklist()}, failingRenderer{}, nil, nil)
	_, err = svc.Checklist(ctx, registrar(), models.EntityTypeStudent, "stu-1", "csv")
	requireCode(t, err, "INTERNAL_ERROR")
}

func errForbidden() error {
	return (&permissionStub{}).RequirePermission(context.Background(), registrar(), PermissionDocumentsView)
}
