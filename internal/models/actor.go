package models

import "github.com/golang-jwt/jwt/v5"

// Actor is the request scoped identity passed explicitly into every operation.
type Actor struct {
	StaffID      string
	IsSuperAdmin bool
	RequestID    string
	IPAddress    string
	UserAgent    string
}

// StaffClaims represents the JWT payload for access tokens.
type StaffClaims struct {
	StaffID      string `json:"staff_id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	RoleTypeID   int    `json:"role_type_id"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	jwt.RegisteredClaims
}

// LoginRequest holds credentials for authenticating a staff member.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued token and staff summary.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Staff       Staff  `json:"staff"`
}
