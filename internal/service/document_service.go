package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice/internal/dto"
	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/storage"
)

// DefaultMaxFileSize is the upload ceiling when none is configured.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// DefaultPurgeBatchLimit caps bulk purges when none is configured.
const DefaultPurgeBatchLimit = 1000

// DefaultAllowedMIMEs lists the accepted upload content types.
var DefaultAllowedMIMEs = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

var errFileRemoval = errors.New("remove stored file")

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	FindActiveByFileName(ctx context.Context, entityType models.EntityType, entityID, fileName string) (*models.Document, error)
	Archive(ctx context.Context, id, archivedBy string, archivedAt time.Time) error
	CountPurgeCandidates(ctx context.Context, criteria models.PurgeCriteria) (int, error)
	ListPurgeCandidates(ctx context.Context, criteria models.PurgeCriteria, limit int) ([]models.Document, error)
	Purge(ctx context.Context, id string, removeFile func(doc *models.Document) error) error
}

type requirementStore interface {
	SetCurrentDocument(ctx context.Context, doc *models.Document) ([]string, error)
	Unlink(ctx context.Context, entityType models.EntityType, entityID, code, actorID string, at time.Time) (*models.Document, error)
	ListStatuses(ctx context.Context, entityType models.EntityType, entityID string) ([]models.RequirementStatus, error)
}

type entityLookup interface {
	Lookup(ctx context.Context, entityType models.EntityType, id string) (*models.EntityRef, error)
}

type permissionChecker interface {
	RequirePermission(ctx context.Context, actor *models.Actor, key string) error
	RequireSuperAdmin(ctx context.Context, actor *models.Actor) error
}

type fileCleaner interface {
	Schedule(key string)
}

type downloadSigner interface {
	Generate(documentID, key string) (string, time.Time, error)
	Parse(token string) (documentID, key string, expiresAt time.Time, err error)
}

// DocumentUpload carries the uploaded stream and its declared metadata.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Document    *models.Document
	RedirectTab string
	Superseded  []string
}

// DocumentDownload bundles an open stream for the handler to copy out.
type DocumentDownload struct {
	Reader    io.ReadCloser
	FileName  string
	MimeType  string
	Size      int64
	ExpiresAt time.Time
}

// DocumentServiceConfig holds validation limits.
type DocumentServiceConfig struct {
	MaxFileSize     int64
	AllowedMIMEs    []string
	PurgeBatchLimit int
	APIPrefix       string
}

// DocumentService owns the document lifecycle: upload, requirement linking,
// archive and permanent removal.
type DocumentService struct {
	docs         documentStore
	requirements requirementStore
	entities     entityLookup
	permissions  permissionChecker
	resolver     *RequirementResolver
	storage      storage.FileStorage
	signer       downloadSigner
	audit        auditLogger
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          DocumentServiceConfig
	mimeSet      map[string]struct{}
	cleanup      fileCleaner
	now          func() time.Time
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(docs documentStore, requirements requirementStore, entities entityLookup, permissions permissionChecker, resolver *RequirementResolver, files storage.FileStorage, signer downloadSigner, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if resolver == nil {
		resolver = NewRequirementResolver()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = DefaultAllowedMIMEs
	}
	if cfg.PurgeBatchLimit <= 0 {
		cfg.PurgeBatchLimit = DefaultPurgeBatchLimit
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &DocumentService{
		docs:         docs,
		requirements: requirements,
		entities:     entities,
		permissions:  permissions,
		resolver:     resolver,
		storage:      files,
		signer:       signer,
		audit:        audit,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		mimeSet:      mimeSet,
		now:          time.Now,
	}
}

// SetFileCleaner installs a background retrier for file deletions that fail inline.
func (s *DocumentService) SetFileCleaner(cleaner fileCleaner) {
	s.cleanup = cleaner
}

// Upload validates, stores and records a document. Requirement uploads replace
// the current document of that requirement; the previous one is archived.
func (s *DocumentService) Upload(ctx context.Context, actor *models.Actor, req dto.UploadDocumentRequest, upload DocumentUpload) (*UploadResult, error) {
	if actor == nil || actor.StaffID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	req.EntityType = models.EntityType(strings.ToLower(strings.TrimSpace(string(req.EntityType))))
	req.Category = strings.TrimSpace(req.Category)
	req.RequirementCode = normalizeRequirementCode(req.RequirementCode)

	mimeType, err := s.validateUpload(req, upload)
	if err != nil {
		return nil, err
	}

	isRequirement := req.RequirementCode != ""
	var requirement models.Requirement
	permission := PermissionDocumentsUpload
	if isRequirement {
		requirement = s.resolver.Resolve(req.RequirementCode)
		permission = s.resolver.EditPermission(req.RequirementCode)
	}
	if err := s.permissions.RequirePermission(ctx, actor, permission); err != nil {
		return nil, err
	}
	if err := s.ensureEntity(ctx, req.EntityType, req.EntityID); err != nil {
		return nil, err
	}

	fileName := filepath.Base(strings.TrimSpace(upload.Filename))
	existing, err := s.docs.FindActiveByFileName(ctx, req.EntityType, req.EntityID, fileName)
	switch {
	case err == nil:
		if !isRequirement || !existing.LinkedTo(req.RequirementCode) {
			return nil, appErrors.WithDetails(appErrors.ErrDuplicateFileName, fmt.Sprintf("%s is already on file", fileName))
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to check for duplicate file names")
	}

	key := buildStorageKey(req.EntityType, req.EntityID, fileName, mimeType, s.now())
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrStorageFailure, "failed to reset upload stream")
	}
	if _, err := s.storage.Save(ctx, key, upload.Content, upload.Size, mimeType); err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrStorageFailure, "failed to store document file")
	}

	doc := &models.Document{
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Category:    req.Category,
		Subcategory: optionalString(req.Subcategory),
		FileName:    fileName,
		FilePath:    key,
		FileSize:    upload.Size,
		MimeType:    mimeType,
		UploadedBy:  actor.StaffID,
		UploadedAt:  s.now().UTC(),
		Notes:       optionalString(req.Notes),
		Status:      models.DocumentStatusActive,
	}
	result := &UploadResult{Document: doc, RedirectTab: req.Category}
	kind := "category"
	if isRequirement {
		kind = "requirement"
		code := requirement.Code
		doc.Category = requirement.TabName
		doc.LinkedRequirementCode = &code
		result.RedirectTab = requirement.TabName
		result.Superseded, err = s.requirements.SetCurrentDocument(ctx, doc)
	} else {
		err = s.docs.Create(ctx, doc)
	}
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("file_path", key), zap.Error(delErr))
			s.scheduleCleanup(key)
		}
		if errors.Is(err, models.ErrDuplicateDocument) {
			return nil, appErrors.WithDetails(appErrors.ErrDuplicateFileName, fmt.Sprintf("%s is already on file", fileName))
		}
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to save document")
	}

	s.metrics.RecordDocumentUpload(doc.EntityType, kind)
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionDocumentUpload,
		Resource:   "document",
		ResourceID: &doc.ID,
		NewValues: auditPayload(map[string]interface{}{
			"entityType":      doc.EntityType,
			"entityId":        doc.EntityID,
			"fileName":        doc.FileName,
			"category":        doc.Category,
			"requirementCode": doc.LinkedRequirementCode,
			"superseded":      result.Superseded,
		}),
	})
	return result, nil
}

// UnlinkRequirement archives the current document of a requirement and clears
// the pointer. Row and file stay for history.
func (s *DocumentService) UnlinkRequirement(ctx context.Context, actor *models.Actor, entityType models.EntityType, entityID, code string) (*models.Document, error) {
	if actor == nil || actor.StaffID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	code = normalizeRequirementCode(code)
	if !entityType.Valid() || strings.TrimSpace(entityID) == "" || code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entity type, entity id and requirement code are required")
	}
	if err := s.permissions.RequirePermission(ctx, actor, s.resolver.EditPermission(code)); err != nil {
		return nil, err
	}
	doc, err := s.requirements.Unlink(ctx, entityType, entityID, code, actor.StaffID, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement has no current document")
		}
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to unlink requirement")
	}
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionRequirementUnlink,
		Resource:   "document",
		ResourceID: &doc.ID,
		NewValues:  auditPayload(map[string]string{"requirementCode": code, "status": string(doc.Status)}),
	})
	return doc, nil
}

// SoftDelete archives a document. Documents that currently satisfy a
// requirement must be unlinked instead.
func (s *DocumentService) SoftDelete(ctx context.Context, actor *models.Actor, id string, removeFile bool) (*models.Document, error) {
	if actor == nil || actor.StaffID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.permissions.RequirePermission(ctx, actor, PermissionDocumentsDelete); err != nil {
		return nil, err
	}
	doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.IsArchived() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	if doc.LinkedRequirementCode != nil && *doc.LinkedRequirementCode != "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation,
			fmt.Sprintf("document is the current record for %s; unlink the requirement instead", *doc.LinkedRequirementCode))
	}

	at := s.now().UTC()
	if err := s.docs.Archive(ctx, doc.ID, actor.StaffID, at); err != nil {
		s.metrics.RecordDocumentRemoval("archive", false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to archive document")
	}
	doc.Status = models.DocumentStatusArchived
	doc.ArchivedAt = &at
	doc.ArchivedBy = &actor.StaffID

	if removeFile {
		if err := s.storage.Delete(ctx, doc.FilePath); err != nil {
			s.logger.Warn("archived document but file removal failed", zap.String("document_id", doc.ID), zap.String("file_path", doc.FilePath), zap.Error(err))
			s.scheduleCleanup(doc.FilePath)
		}
	}
	s.metrics.RecordDocumentRemoval("archive", true)
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionDocumentArchive,
		Resource:   "document",
		ResourceID: &doc.ID,
		OldValues:  auditPayload(map[string]string{"status": string(models.DocumentStatusActive)}),
		NewValues:  auditPayload(map[string]interface{}{"status": doc.Status, "fileRemoved": removeFile}),
	})
	return doc, nil
}

// PermanentDelete removes the row, any requirement pointer to it and the file.
// A file that is already gone counts as removed.
func (s *DocumentService) PermanentDelete(ctx context.Context, actor *models.Actor, id string) error {
	if err := s.permissions.RequireSuperAdmin(ctx, actor); err != nil {
		return err
	}
	var purged models.Document
	err := s.docs.Purge(ctx, id, func(doc *models.Document) error {
		purged = *doc
		return s.removeStoredFile(ctx, doc)
	})
	if err != nil {
		s.metrics.RecordDocumentRemoval("purge", false)
		return s.translatePurgeError(err)
	}
	s.metrics.RecordDocumentRemoval("purge", true)
	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionDocumentPurge,
		Resource:   "document",
		ResourceID: &id,
		OldValues:  auditPayload(purged),
		NewValues:  auditPayload(map[string]string{"status": string(models.DocumentStatusPurged)}),
	})
	return nil
}

// BulkPurge permanently deletes every document matching req. The whole call is
// refused when more rows match than the batch limit.
func (s *DocumentService) BulkPurge(ctx context.Context, actor *models.Actor, req dto.PurgeDocumentsRequest) (*models.PurgeSummary, error) {
	if err := s.permissions.RequireSuperAdmin(ctx, actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purge criteria")
	}
	criteria := models.PurgeCriteria{
		OlderThanDays: req.OlderThanDays,
		ArchivedOnly:  req.ArchivedOnly,
		Categories:    req.Categories,
		EntityType:    models.EntityType(strings.ToLower(req.EntityType)),
		Now:           s.now().UTC(),
	}
	if !criteria.HasFilter() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one purge filter is required")
	}

	matched, err := s.docs.CountPurgeCandidates(ctx, criteria)
	if err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to count purge candidates")
	}
	if matched > s.cfg.PurgeBatchLimit {
		return nil, appErrors.WithDetails(appErrors.ErrBulkLimitExceeded,
			fmt.Sprintf("%d documents match; narrow the filters to at most %d", matched, s.cfg.PurgeBatchLimit))
	}
	summary := &models.PurgeSummary{Matched: matched, FailedFileNames: []string{}}
	if matched == 0 {
		return summary, nil
	}

	candidates, err := s.docs.ListPurgeCandidates(ctx, criteria, s.cfg.PurgeBatchLimit)
	if err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to load purge candidates")
	}
	summary.Matched = len(candidates)
	s.metrics.ObservePurgeBatch(len(candidates))

	for i := range candidates {
		candidate := candidates[i]
		err := s.docs.Purge(ctx, candidate.ID, func(doc *models.Document) error {
			return s.removeStoredFile(ctx, doc)
		})
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			summary.DeletedCount++
			s.metrics.RecordDocumentRemoval("bulk_purge", true)
			continue
		}
		summary.FailedCount++
		summary.FailedFileNames = append(summary.FailedFileNames, candidate.FileName)
		s.metrics.RecordDocumentRemoval("bulk_purge", false)
		s.logger.Warn("bulk purge item failed",
			zap.String("document_id", candidate.ID),
			zap.String("file_name", candidate.FileName),
			zap.Error(err))
	}

	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:    models.AuditActionDocumentBulkPurge,
		Resource:  "document",
		OldValues: auditPayload(req),
		NewValues: auditPayload(summary),
	})
	return summary, nil
}

// ListByEntity returns documents owned by the entity, newest first.
func (s *DocumentService) ListByEntity(ctx context.Context, actor *models.Actor, filter models.DocumentFilter) ([]models.Document, error) {
	if err := s.permissions.RequirePermission(ctx, actor, PermissionDocumentsView); err != nil {
		return nil, err
	}
	if !filter.EntityType.Valid() || strings.TrimSpace(filter.EntityID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entity type and entity id are required")
	}
	if err := s.ensureEntity(ctx, filter.EntityType, filter.EntityID); err != nil {
		return nil, err
	}
	docs, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to list documents")
	}
	return docs, nil
}

// Get returns one document, archived ones included.
func (s *DocumentService) Get(ctx context.Context, actor *models.Actor, id string) (*models.Document, error) {
	if err := s.permissions.RequirePermission(ctx, actor, PermissionDocumentsView); err != nil {
		return nil, err
	}
	return s.loadDocument(ctx, id)
}

// GetDownloadURL issues a signed, expiring download link.
func (s *DocumentService) GetDownloadURL(ctx context.Context, actor *models.Actor, id string) (*dto.DocumentDownloadResponse, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &dto.DocumentDownloadResponse{
		DocumentID:  doc.ID,
		DownloadURL: fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Download validates token against the document and opens its file.
func (s *DocumentService) Download(ctx context.Context, actor *models.Actor, id, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	documentID, key, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if documentID != doc.ID || key != doc.FilePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	reader, size, err := s.storage.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file is missing")
		}
		return nil, appErrors.Cause(err, appErrors.ErrStorageFailure, "failed to open document file")
	}
	return &DocumentDownload{
		Reader:    reader,
		FileName:  doc.FileName,
		MimeType:  doc.MimeType,
		Size:      size,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *DocumentService) validateUpload(req dto.UploadDocumentRequest, upload DocumentUpload) (string, error) {
	var problems []string
	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	switch {
	case req.Category == "" && req.RequirementCode == "":
		problems = append(problems, "either category or requirementCode is required")
	case req.Category != "" && req.RequirementCode != "":
		problems = append(problems, "category and requirementCode are mutually exclusive")
	}
	if len(problems) > 0 {
		return "", appErrors.WithDetails(appErrors.ErrValidation, problems...)
	}

	if upload.Content == nil || upload.Size <= 0 || strings.TrimSpace(upload.Filename) == "" {
		return "", appErrors.WithDetails(appErrors.ErrInvalidFile, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		problems = append(problems, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return "", err
	}
	if _, ok := s.mimeSet[mimeType]; !ok {
		problems = append(problems, fmt.Sprintf("file type %s is not allowed", mimeType))
	}
	if len(problems) > 0 {
		return "", appErrors.WithDetails(appErrors.ErrInvalidFile, problems...)
	}
	return mimeType, nil
}

func (s *DocumentService) detectMime(upload DocumentUpload) (string, error) {
	if declared := strings.TrimSpace(upload.MimeType); declared != "" {
		if idx := strings.Index(declared, ";"); idx >= 0 {
			declared = declared[:idx]
		}
		return strings.ToLower(strings.TrimSpace(declared)), nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Cause(err, appErrors.ErrInvalidFile, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Cause(err, appErrors.ErrInvalidFile, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.WithDetails(appErrors.ErrInvalidFile, "file is empty")
	}
	detected := http.DetectContentType(header[:n])
	if idx := strings.Index(detected, ";"); idx >= 0 {
		detected = detected[:idx]
	}
	return detected, nil
}

func (s *DocumentService) ensureEntity(ctx context.Context, entityType models.EntityType, entityID string) error {
	if s.entities == nil {
		return nil
	}
	if _, err := s.entities.Lookup(ctx, entityType, entityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.WithDetails(appErrors.ErrEntityNotFound, fmt.Sprintf("%s %s does not exist", entityType, entityID))
		}
		return appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to look up entity")
	}
	return nil
}

func (s *DocumentService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) scheduleCleanup(key string) {
	if s.cleanup != nil {
		s.cleanup.Schedule(key)
	}
}

// removeStoredFile treats an already missing file as removed.
func (s *DocumentService) removeStoredFile(ctx context.Context, doc *models.Document) error {
	if err := s.storage.Delete(ctx, doc.FilePath); err != nil {
		return fmt.Errorf("%w %s: %v", errFileRemoval, doc.FilePath, err)
	}
	return nil
}

func (s *DocumentService) translatePurgeError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "document not found")
	case errors.Is(err, errFileRemoval):
		return appErrors.Cause(err, appErrors.ErrStorageFailure, "failed to remove document file")
	default:
		return appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to delete document")
	}
}

// buildStorageKey returns <entityType>/<entityID>/<base>_<unix>_<rand><ext>.
func buildStorageKey(entityType models.EntityType, entityID, original, mimeType string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	base := sanitize(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "document"
	}
	if len(base) > 60 {
		base = base[:60]
	}
	return fmt.Sprintf("%s/%s/%s_%d_%s%s", entityType, sanitize(entityID), base, at.Unix(), randomSuffix(), ext)
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(buf)
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
