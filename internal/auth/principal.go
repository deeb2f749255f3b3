// Package auth identifies the caller of every service operation.
package auth

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleService Role = "service"
	RoleAdmin   Role = "admin"
)

// Principal is the authenticated actor. It is passed explicitly to every
// service call; nothing reads it from ambient state.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsZero() bool {
	return p.Role == "" && p.UserID == uuid.Nil
}

// Subject is the casbin subject for the principal's role.
func (p Principal) Subject() string {
	return "role:" + string(p.Role)
}

// Owns reports whether the principal acts on its own data.
func (p Principal) Owns(userID uuid.UUID) bool {
	return p.UserID != uuid.Nil && p.UserID == userID
}

func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "supabase_admin":
		return RoleAdmin
	case "service", "service_role":
		return RoleService
	default:
		return RoleUser
	}
}

// System is the principal used by background jobs and webhooks.
func System() Principal {
	return Principal{Role: RoleService}
}
