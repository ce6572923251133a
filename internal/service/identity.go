package service

import "strconv"

// Role is the capability carried on every authenticated identity. Handlers
// dispatch on it instead of scattering string comparisons.
type Role string

// Roles recognised by the support subsystem.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole normalises a raw claim value into a known role.
func ParseRole(raw string) Role {
	if raw == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// IsAdmin reports whether the role belongs to the admin pool.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Identity is the decoded authenticated caller attached to a connection or
// request.
type Identity struct {
	UserID uint
	Role   Role
}

// Group names the broadcast group the identity belongs to: the shared
// "admins" group for the admin pool, otherwise the caller's own user id.
func (i Identity) Group() string {
	if i.Role.IsAdmin() {
		return AdminsGroup
	}
	return strconv.FormatUint(uint64(i.UserID), 10)
}

// UserGroup names the broadcast group of a specific end-user.
func UserGroup(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// AdminsGroup is the broadcast group shared by every connected admin.
const AdminsGroup = "admins"
