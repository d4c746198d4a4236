package rbac

import "strings"

const (
	LoginPath   = "/admin/login"
	DefaultPath = "/admin"
)

// routeTable maps admin client routes to the role they require. Longest
// prefix wins; anything under /admin that is not listed needs viewer.
var routeTable = []struct {
	prefix   string
	required Role
}{
	{prefix: "/admin/users", required: RoleAdmin},
	{prefix: "/admin/settings", required: RoleAdmin},
	{prefix: "/admin/content", required: RoleViewer},
	{prefix: "/admin/services", required: RoleViewer},
	{prefix: "/admin/portfolio", required: RoleViewer},
	{prefix: "/admin/plans", required: RoleViewer},
	{prefix: "/admin/messages", required: RoleViewer},
	{prefix: "/admin", required: RoleViewer},
}

type Decision struct {
	Allowed  bool   `json:"allowed"`
	Required Role   `json:"required,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// RouteRequirement returns the role a client path requires and whether the
// path is gated at all.
func RouteRequirement(path string) (Role, bool) {
	path = cleanPath(path)
	if path == LoginPath {
		return "", false
	}
	best := -1
	var required Role
	for _, entry := range routeTable {
		if path != entry.prefix && !strings.HasPrefix(path, entry.prefix+"/") {
			continue
		}
		if len(entry.prefix) > best {
			best = len(entry.prefix)
			required = entry.required
		}
	}
	if best < 0 {
		return "", false
	}
	return required, true
}

// Authorize decides whether a session holding role (empty when signed out)
// may render path. Denials carry the route the client should go to instead.
func Authorize(authenticated bool, role Role, path string) Decision {
	required, gated := RouteRequirement(path)
	if !gated {
		return Decision{Allowed: true}
	}
	if !authenticated {
		return Decision{Allowed: false, Required: required, Redirect: LoginPath}
	}
	if Allows(role, required) {
		return Decision{Allowed: true, Required: required}
	}
	redirect := DefaultPath
	if !Allows(role, RoleViewer) {
		redirect = LoginPath
	}
	return Decision{Allowed: false, Required: required, Redirect: redirect}
}

func cleanPath(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
