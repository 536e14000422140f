package models

import (
	"fmt"
	"strings"
	"time"
)

// PermissionKey identifies a capability as module + action ("documents.delete").
type PermissionKey struct {
	Module string `db:"module" json:"module"`
	Action string `db:"action" json:"action"`
}

// ParsePermissionKey splits "module.action" into its parts.
func ParsePermissionKey(raw string) (PermissionKey, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	idx := strings.LastIndex(raw, ".")
	if idx <= 0 || idx == len(raw)-1 {
		return PermissionKey{}, fmt.Errorf("permission %q must look like module.action", raw)
	}
	return PermissionKey{Module: raw[:idx], Action: raw[idx+1:]}, nil
}

// String renders the key as module.action.
func (k PermissionKey) String() string {
	return k.Module + "." + k.Action
}

// PermissionGrant is an explicit per-staff override. Absence means inherit.
type PermissionGrant struct {
	StaffID   string    `db:"staff_id" json:"staffId"`
	Module    string    `db:"module" json:"module"`
	Action    string    `db:"action" json:"action"`
	Allowed   bool      `db:"allowed" json:"allowed"`
	GrantedBy string    `db:"granted_by" json:"grantedBy"`
	GrantedOn time.Time `db:"granted_on" json:"grantedOn"`
}

// Key returns the grant's permission key.
func (g PermissionGrant) Key() PermissionKey {
	return PermissionKey{Module: g.Module, Action: g.Action}
}

// RoleDefault is read-only reference data applied when no grant exists.
type RoleDefault struct {
	RoleTypeID int    `db:"role_type_id" json:"roleTypeId"`
	Module     string `db:"module" json:"module"`
	Action     string `db:"action" json:"action"`
	Allowed    bool   `db:"allowed" json:"allowed"`
}

// PermissionSource explains which layer produced an effective decision.
type PermissionSource string

const (
	PermissionSourceSuperAdmin  PermissionSource = "super_admin"
	PermissionSourceGrant       PermissionSource = "grant"
	PermissionSourceRoleDefault PermissionSource = "role_default"
	PermissionSourceDenyDefault PermissionSource = "deny_default"
)

// EffectivePermission is one resolved capability for a staff member.
type EffectivePermission struct {
	Key     string           `json:"key"`
	Allowed bool             `json:"allowed"`
	Source  PermissionSource `json:"source"`
}
