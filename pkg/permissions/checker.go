// Package permissions decides which actions a role may take inside its clinic
// scope. It never widens a scope; that is the tenancy resolver's job.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "patients.*")
//   - "resource.action" - Specific action (e.g., "patients.read")
package permissions

import (
	"net/http"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "patients.*" matches "patients.read", "patients.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// RoleAllows reports whether role grants the required permission.
func RoleAllows(role tenant.Role, required string) bool {
	return HasPermission(rolePermissions[role], required)
}

// Require rejects requests whose role lacks the permission with 403. It reads
// the role placed in the context by authentication.
func Require(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := tenant.Role(httputil.GetUserRole(r.Context()))
			if !RoleAllows(role, required) {
				httputil.Error(w, errors.Forbidden("missing permission "+required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsValidPermission checks if a permission string is in the known list.
func IsValidPermission(perm string) bool {
	if perm == "*" {
		return true
	}
	for _, p := range Known {
		if p == perm {
			return true
		}
	}
	return false
}
