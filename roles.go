package accounts

import "strings"

// Role is the directory role stored on an account record.
type Role string

const (
	// RoleAdmin holds every permission and may manage account records
	RoleAdmin Role = "admin"
	// RoleUser holds whatever permissions were granted explicitly
	RoleUser Role = "user"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether r is the administrator role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// NormalizeRole maps anything that is not exactly "admin" to RoleUser.
func NormalizeRole(value string) Role {
	if Role(strings.TrimSpace(value)) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// ParseRole is the strict variant used for caller input.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	return role, role.IsValid()
}
