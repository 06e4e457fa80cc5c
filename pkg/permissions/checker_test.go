package permissions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"full access", []string{"*"}, "invoices.delete", true},
		{"exact", []string{"patients.read"}, "patients.read", true},
		{"resource wildcard", []string{"patients.*"}, "patients.delete", true},
		{"wildcard does not cross resources", []string{"patients.*"}, "patients_archive.read", false},
		{"missing", []string{"patients.read"}, "patients.write", false},
		{"nothing required", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.perms, tt.required))
		})
	}
}

func TestRoleMatrix(t *testing.T) {
	assert.True(t, RoleAllows(tenant.RoleOwner, InvoicesDelete))
	assert.True(t, RoleAllows(tenant.RoleDentist, MedicalRecordsWrite))
	assert.False(t, RoleAllows(tenant.RoleAssistant, PatientsWrite))
	assert.False(t, RoleAllows(tenant.RolePatient, PatientsRead))
	assert.False(t, RoleAllows("superuser", PatientsRead))

	for role := range rolePermissions {
		for _, p := range rolePermissions[role] {
			if p == "*" || len(p) > 2 && p[len(p)-2:] == ".*" {
				continue
			}
			assert.True(t, IsValidPermission(p), "%s grants unknown permission %s", role, p)
		}
	}
}

func TestRequire(t *testing.T) {
	handler := Require(PatientsWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(role string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", nil)
		req = req.WithContext(httputil.WithUserContext(context.Background(), "u1", "", role))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusNoContent, serve("receptionist"))
	assert.Equal(t, http.StatusForbidden, serve("assistant"))
	assert.Equal(t, http.StatusForbidden, serve(""))
}
