package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-backoffice/internal/models"
)

// DefaultRequirementTab is used for codes missing from the catalog.
const DefaultRequirementTab = "information"

var requirementCatalog = map[string]models.Requirement{
	"enrollment_agreement":   {DisplayName: "Enrollment Agreement", TabName: "enrollment", EntityType: models.EntityTypeStudent},
	"id_verification":        {DisplayName: "ID Verification", TabName: "information", EntityType: models.EntityTypeStudent},
	"high_school_diploma":    {DisplayName: "High School Diploma", TabName: "education", EntityType: models.EntityTypeStudent},
	"high_school_transcript": {DisplayName: "High School Transcript", TabName: "education", EntityType: models.EntityTypeStudent},
	"financial_aid_form":     {DisplayName: "Financial Aid Form", TabName: "financial", EntityType: models.EntityTypeStudent},
	"payment_agreement":      {DisplayName: "Payment Agreement", TabName: "financial", EntityType: models.EntityTypeStudent},
	"background_check":       {DisplayName: "Background Check", TabName: "employment", EntityType: models.EntityTypeStaff},
	"i9_form":                {DisplayName: "I-9 Form", TabName: "employment", EntityType: models.EntityTypeStaff},
	"w4_form":                {DisplayName: "W-4 Form", TabName: "employment", EntityType: models.EntityTypeStaff},
	"teaching_license":       {DisplayName: "Teaching License", TabName: "credentials", EntityType: models.EntityTypeStaff},
}

// RequirementResolver maps requirement codes to display metadata and the
// profile tab whose edit permission governs them.
type RequirementResolver struct {
	catalog map[string]models.Requirement
}

// NewRequirementResolver returns a resolver over the built-in catalog.
func NewRequirementResolver() *RequirementResolver {
	catalog := make(map[string]models.Requirement, len(requirementCatalog))
	for code, req := range requirementCatalog {
		req.Code = code
		req.Known = true
		catalog[code] = req
	}
	return &RequirementResolver{catalog: catalog}
}

// Resolve returns metadata for code. Unknown codes fall back to the
// information tab with a humanised name.
func (r *RequirementResolver) Resolve(code string) models.Requirement {
	code = normalizeRequirementCode(code)
	if req, ok := r.catalog[code]; ok {
		return req
	}
	return models.Requirement{
		Code:        code,
		DisplayName: humanize(code),
		TabName:     DefaultRequirementTab,
	}
}

// TabFor returns the profile tab for code.
func (r *RequirementResolver) TabFor(code string) string {
	return r.Resolve(code).TabName
}

// EditPermission returns the permission key needed to change documents for code.
func (r *RequirementResolver) EditPermission(code string) string {
	return models.PermissionKey{Module: r.TabFor(code), Action: "edit"}.String()
}

// Catalog lists known requirements for entityType, or all of them when empty.
func (r *RequirementResolver) Catalog(entityType models.EntityType) []models.Requirement {
	out := make([]models.Requirement, 0, len(r.catalog))
	for _, req := range r.catalog {
		if entityType != "" && req.EntityType != entityType {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TabName != out[j].TabName {
			return out[i].TabName < out[j].TabName
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// EditPermissions lists every tab edit key reachable through the catalog.
func (r *RequirementResolver) EditPermissions() []string {
	seen := map[string]struct{}{DefaultRequirementTab: {}}
	for _, req := range r.catalog {
		seen[req.TabName] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for tab := range seen {
		keys = append(keys, models.PermissionKey{Module: tab, Action: "edit"}.String())
	}
	sort.Strings(keys)
	return keys
}

func normalizeRequirementCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func humanize(code string) string {
	parts := strings.FieldsFunc(code, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
