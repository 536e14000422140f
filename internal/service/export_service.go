package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type datasetRenderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

type checklistSource interface {
	Checklist(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID string) ([]models.ChecklistItem, error)
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders requirement checklists as CSV or PDF.
type ExportService struct {
	checklists checklistSource
	renderers  map[string]datasetRenderer
	logger     *zap.Logger
	now        func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export.
func NewExportService(checklists checklistSource, csv, pdf datasetRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		checklists: checklists,
		renderers:  map[string]datasetRenderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:     logger,
		now:        time.Now,
	}
}

// Checklist renders the requirement checklist of one entity.
func (s *ExportService) Checklist(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	items, err := s.checklists.Checklist(ctx, actor, entityType, entityID)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	dataset := export.Dataset{
		Title:    fmt.Sprintf("Requirement checklist: %s %s", entityType, entityID),
		Subtitle: "Generated " + generatedAt.Format(time.RFC3339),
		Headers:  []string{"Requirement", "Tab", "Status", "File", "Uploaded At"},
		Rows:     make([]map[string]string, 0, len(items)),
	}
	for _, item := range items {
		status := "missing"
		if item.Satisfied {
			status = "on file"
		}
		row := map[string]string{
			"Requirement": item.DisplayName,
			"Tab":         item.TabName,
			"Status":      status,
			"File":        deref(item.FileName),
			"Uploaded At": "",
		}
		if item.UploadedAt != nil {
			row["Uploaded At"] = item.UploadedAt.UTC().Format("2006-01-02 15:04")
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	data, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("checklist export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("checklist_%s_%s_%s%s", entityType, sanitize(entityID), generatedAt.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
