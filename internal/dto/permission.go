package dto

// GrantInput is one explicit permission override.
type GrantInput struct {
	Key     string `json:"key" validate:"required,max=150"`
	Allowed bool   `json:"allowed"`
}

// ReplaceGrantsRequest replaces every explicit grant of a staff member.
// An empty list clears all overrides.
type ReplaceGrantsRequest struct {
	Grants []GrantInput `json:"grants" validate:"dive"`
}

// PermissionCheckResponse reports a single resolved permission.
type PermissionCheckResponse struct {
	StaffID string `json:"staffId"`
	Key     string `json:"key"`
	Allowed bool   `json:"allowed"`
}
