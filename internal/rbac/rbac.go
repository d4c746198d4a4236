package rbac

import "strings"

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
	ActionAdmin Action = "admin"
)

// rank orders roles by privilege. Unknown roles have rank 0 and never pass a check.
func rank(role Role) int {
	switch role {
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Allows reports whether current satisfies required under admin ⊇ editor ⊇ viewer.
func Allows(current, required Role) bool {
	have, need := rank(current), rank(required)
	if have == 0 || need == 0 {
		return false
	}
	return have >= need
}

// Required returns the minimum role an action needs.
func Required(action Action) Role {
	switch action {
	case ActionRead:
		return RoleViewer
	case ActionWrite:
		return RoleEditor
	case ActionAdmin:
		return RoleAdmin
	default:
		return ""
	}
}

func Can(role Role, action Action) bool {
	return Allows(role, Required(action))
}

// Parse returns the role named by value. Unknown values come back invalid so
// callers fail closed instead of silently granting viewer access.
func Parse(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if rank(role) == 0 {
		return "", false
	}
	return role, true
}
