package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
	"github.com/noah-isme/sma-backoffice/pkg/storage"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Error())
}

// memoryDocuments backs both documentStore and requirementStore so tests can
// observe the status pointer and document rows together.
type memoryDocuments struct {
	mu          sync.Mutex
	seq         int
	docs        map[string]*models.Document
	pointers    map[string]string
	createErr   error
	countResult int
	purgeCalls  int
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: map[string]*models.Document{}, pointers: map[string]string{}}
}

func pointerKey(entityType models.EntityType, entityID, code string) string {
	return fmt.Sprintf("%s|%s|%s", entityType, entityID, code)
}

func (m *memoryDocuments) insertLocked(doc *models.Document) {
	if doc.ID == "" {
		m.seq++
		doc.ID = fmt.Sprintf("doc-%d", m.seq)
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusActive
	}
	stored := *doc
	m.docs[doc.ID] = &stored
}

func (m *memoryDocuments) Create(ctx context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.insertLocked(doc)
	return nil
}

func (m *memoryDocuments) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *doc
	return &copy, nil
}

func (m *memoryDocuments) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for _, doc := range m.docs {
		if doc.EntityType != filter.EntityType || doc.EntityID != filter.EntityID {
			continue
		}
		if !filter.IncludeArchived && doc.Status != models.DocumentStatusActive {
			continue
		}
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryDocuments) FindActiveByFileName(ctx context.Context, entityType models.EntityType, entityID, fileName string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.EntityType == entityType && doc.EntityID == entityID && doc.FileName == fileName && doc.Status == models.DocumentStatusActive {
			copy := *doc
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryDocuments) Archive(ctx context.Context, id, archivedBy string, archivedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.Status != models.DocumentStatusActive {
		return sql.ErrNoRows
	}
	doc.Status = models.DocumentStatusArchived
	doc.ArchivedAt = &archivedAt
	doc.ArchivedBy = &archivedBy
	return nil
}

func (m *memoryDocuments) matchesLocked(doc *models.Document, criteria models.PurgeCriteria) bool {
	if cutoff := criteria.Cutoff(); !cutoff.IsZero() && !doc.UploadedAt.Before(cutoff) {
		return false
	}
	if criteria.ArchivedOnly && doc.Status != models.DocumentStatusArchived {
		return false
	}
	if criteria.EntityType != "" && doc.EntityType != criteria.EntityType {
		return false
	}
	if len(criteria.Categories) > 0 {
		found := false
		for _, category := range criteria.Categories {
			if category == doc.Category {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *memoryDocuments) CountPurgeCandidates(ctx context.Context, criteria models.PurgeCriteria) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countResult > 0 {
		return m.countResult, nil
	}
	total := 0
	for _, doc := range m.docs {
		if m.matchesLocked(doc, criteria) {
			total++
		}
	}
	return total, nil
}

func (m *memoryDocuments) ListPurgeCandidates(ctx context.Context, criteria models.PurgeCriteria, limit int) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Document{}
	for _, doc := range m.docs {
		if m.matchesLocked(doc, criteria) && len(out) < limit {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryDocuments) Purge(ctx context.Context, id string, removeFile func(doc *models.Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeCalls++
	doc, ok := m.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if removeFile != nil {
		copy := *doc
		if err := removeFile(&copy); err != nil {
			return err
		}
	}
	delete(m.docs, id)
	for key, docID := range m.pointers {
		if docID == id {
			delete(m.pointers, key)
		}
	}
	return nil
}

func (m *memoryDocuments) SetCurrentDocument(ctx context.Context, doc *models.Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	code := *doc.LinkedRequirementCode
	now := time.Now().UTC()
	var archived []string
	for _, existing := range m.docs {
		if existing.EntityType == doc.EntityType && existing.EntityID == doc.EntityID && existing.LinkedTo(code) && existing.Status == models.DocumentStatusActive {
			existing.Status = models.DocumentStatusArchived
			existing.ArchivedAt = &now
			archived = append(archived, existing.ID)
		}
	}
	m.insertLocked(doc)
	m.pointers[pointerKey(doc.EntityType, doc.EntityID, code)] = doc.ID
	return archived, nil
}

func (m *memoryDocuments) Unlink(ctx context.Context, entityType models.EntityType, entityID, code, actorID string, at time.Time) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pointerKey(entityType, entityID, code)
	id, ok := m.pointers[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.pointers, key)
	doc := m.docs[id]
	doc.Status = models.DocumentStatusArchived
	doc.ArchivedAt = &at
	doc.ArchivedBy = &actorID
	copy := *doc
	return &copy, nil
}

func (m *memoryDocuments) ListStatuses(ctx context.Context, entityType models.EntityType, entityID string) ([]models.RequirementStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RequirementStatus{}
	prefix := pointerKey(entityType, entityID, "")
	for key, id := range m.pointers {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		doc := m.docs[id]
		docID := id
		out = append(out, models.RequirementStatus{
			EntityType: entityType, EntityID: entityID, RequirementCode: strings.TrimPrefix(key, prefix),
			DocumentID: &docID, FileName: &doc.FileName, UploadedAt: &doc.UploadedAt,
		})
	}
	return out, nil
}

func (m *memoryDocuments) activeFor(entityType models.EntityType, entityID, code string) []models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, doc := range m.docs {
		if doc.EntityType == entityType && doc.EntityID == entityID && doc.LinkedTo(code) && doc.Status == models.DocumentStatusActive {
			out = append(out, *doc)
		}
	}
	return out
}

func (m *memoryDocuments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// memoryStorage is an in-memory storage.FileStorage.
type memoryStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	saves     int
	failSave  error
	failPaths map[string]error
}

var _ storage.FileStorage = (*memoryStorage)(nil)

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: map[string][]byte{}, failPaths: map[string]error{}}
}

func (s *memoryStorage) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failSave != nil {
		return "", s.failSave
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.files[key] = data
	return key, nil
}

func (s *memoryStorage) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	if !ok {
		return nil, 0, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failPaths[key]; ok {
		return err
	}
	delete(s.files, key)
	return nil
}

func (s *memoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok, nil
}

func (s *memoryStorage) fileCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type entityStub struct {
	known map[string]bool
}

func (e entityStub) Lookup(ctx context.Context, entityType models.EntityType, id string) (*models.EntityRef, error) {
	if !e.known[string(entityType)+"/"+id] {
		return nil, sql.ErrNoRows
	}
	return &models.EntityRef{Type: entityType, ID: id, DisplayName: id}, nil
}

// permissionStub grants the listed keys; superAdmins pass every check.
type permissionStub struct {
	allowed     map[string]bool
	superAdmins map[string]bool
	checked     []string
	mu          sync.Mutex
}

func (p *permissionStub) RequirePermission(ctx context.Context, actor *models.Actor, key string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	p.mu.Lock()
	p.checked = append(p.checked, key)
	p.mu.Unlock()
	if p.superAdmins[actor.StaffID] || p.allowed[key] {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "missing permission "+key)
}

func (p *permissionStub) RequireSuperAdmin(ctx context.Context, actor *models.Actor) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if p.superAdmins[actor.StaffID] {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "super admin required")
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}
