package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice/internal/dto"
	"github.com/noah-isme/sma-backoffice/internal/models"
	appErrors "github.com/noah-isme/sma-backoffice/pkg/errors"
)

// Permission keys guarding back office operations.
const (
	PermissionDocumentsView   = "documents.view"
	PermissionDocumentsUpload = "documents.upload"
	PermissionDocumentsDelete = "documents.delete"
	PermissionManage          = "permissions.manage"
)

type permissionStore interface {
	GetGrant(ctx context.Context, staffID string, key models.PermissionKey) (*models.PermissionGrant, error)
	ListGrants(ctx context.Context, staffID string) ([]models.PermissionGrant, error)
	ListRoleDefaults(ctx context.Context, roleTypeID int) ([]models.RoleDefault, error)
	ListKnownKeys(ctx context.Context) ([]models.PermissionKey, error)
	ReplaceGrants(ctx context.Context, staffID string, grants []models.PermissionGrant) error
}

type staffFinder interface {
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

type roleDefaultCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

// PermissionServiceConfig tunes role default caching.
type PermissionServiceConfig struct {
	CacheTTL time.Duration
}

// PermissionService resolves capabilities: super admin, then explicit grant,
// then role default, then deny.
type PermissionService struct {
	repo      permissionStore
	staff     staffFinder
	cache     roleDefaultCache
	resolver  *RequirementResolver
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       PermissionServiceConfig
	now       func() time.Time
}

// NewPermissionService constructs the service. cache may be nil.
func NewPermissionService(repo permissionStore, staff staffFinder, cache roleDefaultCache, resolver *RequirementResolver, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PermissionServiceConfig) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if resolver == nil {
		resolver = NewRequirementResolver()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &PermissionService{
		repo:      repo,
		staff:     staff,
		cache:     cache,
		resolver:  resolver,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// HasPermission reports whether the staff member holds key. Unknown staff resolve to false.
func (s *PermissionService) HasPermission(ctx context.Context, staffID, key string) (bool, error) {
	parsed, err := models.ParsePermissionKey(key)
	if err != nil {
		return false, appErrors.WithDetails(appErrors.ErrValidation, err.Error())
	}
	staff, err := s.staff.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordPermissionCheck(models.PermissionSourceDenyDefault, false)
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	decision, err := s.resolve(ctx, staff, parsed)
	if err != nil {
		return false, err
	}
	s.metrics.RecordPermissionCheck(decision.Source, decision.Allowed)
	return decision.Allowed, nil
}

// Check resolves key for staffID on behalf of actor. Staff may check their own keys.
func (s *PermissionService) Check(ctx context.Context, actor *models.Actor, staffID, key string) (*dto.PermissionCheckResponse, error) {
	if err := s.requireSelfOrManager(ctx, actor, staffID); err != nil {
		return nil, err
	}
	allowed, err := s.HasPermission(ctx, staffID, key)
	if err != nil {
		return nil, err
	}
	return &dto.PermissionCheckResponse{StaffID: staffID, Key: key, Allowed: allowed}, nil
}

// RequirePermission returns FORBIDDEN unless the actor holds key.
func (s *PermissionService) RequirePermission(ctx context.Context, actor *models.Actor, key string) error {
	if actor == nil || actor.StaffID == "" {
		return appErrors.ErrUnauthorized
	}
	allowed, err := s.HasPermission(ctx, actor.StaffID, key)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.Info("permission denied", zap.String("staff_id", actor.StaffID), zap.String("permission", key), zap.String("request_id", actor.RequestID))
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("missing permission %s", key))
	}
	return nil
}

// RequireSuperAdmin checks the stored flag rather than the token claim.
func (s *PermissionService) RequireSuperAdmin(ctx context.Context, actor *models.Actor) error {
	if actor == nil || actor.StaffID == "" {
		return appErrors.ErrUnauthorized
	}
	staff, err := s.staff.FindByID(ctx, actor.StaffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "super admin required")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	if !staff.IsSuperAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "super admin required")
	}
	return nil
}

// ListGrants returns the explicit overrides of staffID. Staff may read their own.
func (s *PermissionService) ListGrants(ctx context.Context, actor *models.Actor, staffID string) ([]models.PermissionGrant, error) {
	if err := s.requireSelfOrManager(ctx, actor, staffID); err != nil {
		return nil, err
	}
	if _, err := s.loadStaff(ctx, staffID); err != nil {
		return nil, err
	}
	grants, err := s.repo.ListGrants(ctx, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grants")
	}
	return grants, nil
}

// EffectivePermissions resolves every known key for staffID and names the deciding layer.
func (s *PermissionService) EffectivePermissions(ctx context.Context, actor *models.Actor, staffID string) ([]models.EffectivePermission, error) {
	if err := s.requireSelfOrManager(ctx, actor, staffID); err != nil {
		return nil, err
	}
	staff, err := s.loadStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	keys := map[string]models.PermissionKey{}
	add := func(raw string) {
		if key, err := models.ParsePermissionKey(raw); err == nil {
			keys[key.String()] = key
		}
	}
	for _, raw := range []string{PermissionDocumentsView, PermissionDocumentsUpload, PermissionDocumentsDelete, PermissionManage} {
		add(raw)
	}
	for _, raw := range s.resolver.EditPermissions() {
		add(raw)
	}
	known, err := s.repo.ListKnownKeys(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permission keys")
	}
	for _, key := range known {
		keys[key.String()] = key
	}
	grants, err := s.repo.ListGrants(ctx, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grants")
	}
	for _, grant := range grants {
		keys[grant.Key().String()] = grant.Key()
	}

	out := make([]models.EffectivePermission, 0, len(keys))
	for _, key := range keys {
		decision, err := s.resolve(ctx, staff, key)
		if err != nil {
			return nil, err
		}
		out = append(out, decision)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ReplaceGrants swaps the full grant set of staffID in one transaction.
// Later duplicates of the same key win.
func (s *PermissionService) ReplaceGrants(ctx context.Context, actor *models.Actor, staffID string, req dto.ReplaceGrantsRequest) ([]models.PermissionGrant, error) {
	if err := s.RequirePermission(ctx, actor, PermissionManage); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grants payload")
	}
	if _, err := s.loadStaff(ctx, staffID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	index := map[string]int{}
	grants := make([]models.PermissionGrant, 0, len(req.Grants))
	var problems []string
	for _, input := range req.Grants {
		key, err := models.ParsePermissionKey(input.Key)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		grant := models.PermissionGrant{
			StaffID:   staffID,
			Module:    key.Module,
			Action:    key.Action,
			Allowed:   input.Allowed,
			GrantedBy: actor.StaffID,
			GrantedOn: now,
		}
		if i, ok := index[key.String()]; ok {
			grants[i] = grant
			continue
		}
		index[key.String()] = len(grants)
		grants = append(grants, grant)
	}
	if len(problems) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, problems...)
	}

	previous, err := s.repo.ListGrants(ctx, staffID)
	if err != nil {
		s.logger.Warn("failed to snapshot grants before replace", zap.String("staff_id", staffID), zap.Error(err))
	}
	if err := s.repo.ReplaceGrants(ctx, staffID, grants); err != nil {
		return nil, appErrors.Cause(err, appErrors.ErrPersistenceFailure, "failed to replace grants")
	}

	emitAudit(ctx, s.audit, s.logger, actor, &models.AuditLog{
		Action:     models.AuditActionPermissionsReplaced,
		Resource:   "staff_permissions",
		ResourceID: &staffID,
		OldValues:  auditPayload(previous),
		NewValues:  auditPayload(grants),
	})
	return grants, nil
}

func (s *PermissionService) resolve(ctx context.Context, staff *models.Staff, key models.PermissionKey) (models.EffectivePermission, error) {
	decision := models.EffectivePermission{Key: key.String()}
	if staff.IsSuperAdmin {
		decision.Allowed = true
		decision.Source = models.PermissionSourceSuperAdmin
		return decision, nil
	}

	grant, err := s.repo.GetGrant(ctx, staff.ID, key)
	switch {
	case err == nil:
		decision.Allowed = grant.Allowed
		decision.Source = models.PermissionSourceGrant
		return decision, nil
	case !errors.Is(err, sql.ErrNoRows):
		return decision, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission grant")
	}

	defaults, err := s.roleDefaults(ctx, staff.RoleTypeID)
	if err != nil {
		return decision, err
	}
	if allowed, ok := defaults[key.String()]; ok {
		decision.Allowed = allowed
		decision.Source = models.PermissionSourceRoleDefault
		return decision, nil
	}

	decision.Source = models.PermissionSourceDenyDefault
	return decision, nil
}

func (s *PermissionService) roleDefaults(ctx context.Context, roleTypeID int) (map[string]bool, error) {
	cacheKey := fmt.Sprintf("perm:role:%d", roleTypeID)
	var cached map[string]bool
	if s.cache != nil && s.cache.Get(ctx, cacheKey, &cached) && cached != nil {
		return cached, nil
	}
	rows, err := s.repo.ListRoleDefaults(ctx, roleTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role defaults")
	}
	defaults := make(map[string]bool, len(rows))
	for _, row := range rows {
		defaults[models.PermissionKey{Module: row.Module, Action: row.Action}.String()] = row.Allowed
	}
	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, defaults, s.cfg.CacheTTL)
	}
	return defaults, nil
}

func (s *PermissionService) requireSelfOrManager(ctx context.Context, actor *models.Actor, staffID string) error {
	if actor == nil || actor.StaffID == "" {
		return appErrors.ErrUnauthorized
	}
	if actor.StaffID == staffID {
		return nil
	}
	return s.RequirePermission(ctx, actor, PermissionManage)
}

func (s *PermissionService) loadStaff(ctx context.Context, staffID string) (*models.Staff, error) {
	staff, err := s.staff.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	return staff, nil
}
