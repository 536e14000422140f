package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
)

type requirementStatusLister interface {
	ListStatuses(ctx context.Context, entityType models.EntityType, entityID string) ([]models.RequirementStatus, error)
}

// RequirementService reports which requirements an entity has satisfied.
type RequirementService struct {
	statuses    requirementStatusLister
	entities    entityLookup
	permissions permissionChecker
	resolver    *RequirementResolver
	logger      *zap.Logger
}

// NewRequirementService constructs the service.
func NewRequirementService(statuses requirementStatusLister, entities entityLookup, permissions permissionChecker, resolver *RequirementResolver, logger *zap.Logger) *RequirementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resolver == nil {
		resolver = NewRequirementResolver()
	}
	return &RequirementService{statuses: statuses, entities: entities, permissions: permissions, resolver: resolver, logger: logger}
}

// Catalog lists the known requirements, optionally for one entity type.
func (s *RequirementService) Catalog(entityType models.EntityType) []models.Requirement {
	return s.resolver.Catalog(entityType)
}

// Checklist joins the catalog for the entity type with the entity's current
// documents. Status rows for codes outside the catalog are appended.
func (s *RequirementService) Checklist(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID string) ([]models.ChecklistItem, error) {
	if err := s.permissions.RequirePermission(ctx, actor, PermissionDocumentsView); err != nil {
		return nil, err
	}
	if !entityType.Valid() || strings.TrimSpace(entityID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entity type and entity id are required")
	}
	if _, err := s.entities.Lookup(ctx, entityType, entityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrEntityNotFound, fmt.Sprintf("%s %s does not exist", entityType, entityID))
		}
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to look up entity")
	}

	rows, err := s.statuses.ListStatuses(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to load requirement status")
	}
	byCode := make(map[string]models.RequirementStatus, len(rows))
	for _, row := range rows {
		byCode[row.RequirementCode] = row
	}

	catalog := s.resolver.Catalog(entityType)
	items := make([]models.ChecklistItem, 0, len(catalog)+len(rows))
	for _, req := range catalog {
		items = append(items, checklistItem(req, byCode[req.Code]))
		delete(byCode, req.Code)
	}
	extra := make([]string, 0, len(byCode))
	for code, row := range byCode {
		if row.Satisfied() {
			extra = append(extra, code)
		}
	}
	sort.Strings(extra)
	for _, code := range extra {
		items = append(items, checklistItem(s.resolver.Resolve(code), byCode[code]))
	}
	return items, nil
}

func checklistItem(req models.Requirement, status models.RequirementStatus) models.ChecklistItem {
	item := models.ChecklistItem{Requirement: req, Satisfied: status.Satisfied()}
	if item.Satisfied {
		item.DocumentID = status.DocumentID
		item.FileName = status.FileName
		item.UploadedAt = status.UploadedAt
	}
	return item
}
