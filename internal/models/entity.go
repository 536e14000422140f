package models

import (
	"strings"
	"time"
)

// EntityType names the kind of record that owns a document.
type EntityType string

const (
	EntityTypeStudent EntityType = "student"
	EntityTypeStaff   EntityType = "staff"
)

// ParseEntityType normalises raw input and reports whether it is supported.
func ParseEntityType(raw string) (EntityType, bool) {
	switch EntityType(strings.ToLower(strings.TrimSpace(raw))) {
	case EntityTypeStudent:
		return EntityTypeStudent, true
	case EntityTypeStaff:
		return EntityTypeStaff, true
	default:
		return "", false
	}
}

// Valid reports whether t is a supported owner type.
func (t EntityType) Valid() bool {
	_, ok := ParseEntityType(string(t))
	return ok
}

// EntityRef is the polymorphic owner reference returned by entity lookups.
type EntityRef struct {
	Type        EntityType `db:"entity_type" json:"entityType"`
	ID          string     `db:"id" json:"id"`
	DisplayName string     `db:"display_name" json:"displayName"`
}

// Student is the subset of the student record the back office needs.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"studentNumber"`
	FullName      string    `db:"full_name" json:"fullName"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Staff is a back office user. IsSuperAdmin bypasses every permission check.
type Staff struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"fullName"`
	RoleTypeID   int       `db:"role_type_id" json:"roleTypeId"`
	IsSuperAdmin bool      `db:"is_super_admin" json:"isSuperAdmin"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
