package rbac

import "strings"

type Role string
type Action string

// RoleAdmin is the only role assigned today. New roles only need an entry
// here and a row in permissions.
const (
	RoleAdmin Role = "Admin"
)

// DefaultRole is assigned to every registered account.
const DefaultRole = RoleAdmin

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

var permissions = map[Role]map[Action]bool{
	RoleAdmin: {ActionRead: true, ActionWrite: true, ActionAdmin: true},
}

func Can(role Role, action Action) bool {
	return permissions[role][action]
}

// Normalize maps a stored or claimed role name onto a known Role, ignoring
// case. ok is false for unknown names.
func Normalize(role string) (Role, bool) {
	trimmed := strings.TrimSpace(role)
	for known := range permissions {
		if strings.EqualFold(string(known), trimmed) {
			return known, true
		}
	}
	return "", false
}

func Roles() []Role {
	out := make([]Role, 0, len(permissions))
	for role := range permissions {
		out = append(out, role)
	}
	return out
}
