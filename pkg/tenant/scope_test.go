package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clinicA = "6f1c2a4e-5b1d-4c8e-9a11-0a0000000001"
	clinicB = "6f1c2a4e-5b1d-4c8e-9a11-0b0000000002"
)

func TestScope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr error
	}{
		{name: "single clinic", scope: Single("u1", RoleDentist, clinicA)},
		{name: "owner with two clinics", scope: Scope{UserID: "o1", Role: RoleOwner, ClinicIDs: []string{clinicA, clinicB}, SelectedClinicID: clinicB}},
		{name: "empty", scope: Scope{UserID: "u1", Role: RoleDentist}, wantErr: ErrEmptyScope},
		{name: "selected outside set", scope: Scope{Role: RoleOwner, ClinicIDs: []string{clinicA}, SelectedClinicID: clinicB}, wantErr: ErrClinicOutOfScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestScope_ValidateRejectsMalformedAndStaffSpanningClinics(t *testing.T) {
	assert.Error(t, Single("u1", RoleDentist, "not-a-uuid").Validate())
	assert.Error(t, Scope{Role: RoleReceptionist, ClinicIDs: []string{clinicA, clinicB}}.Validate())
}

func TestScope_WriteClinicID(t *testing.T) {
	id, err := Single("u1", RoleDentist, clinicA).WriteClinicID()
	require.NoError(t, err)
	assert.Equal(t, clinicA, id)

	_, err = Scope{Role: RoleOwner, ClinicIDs: []string{clinicA, clinicB}}.WriteClinicID()
	assert.Error(t, err, "owner spanning clinics must select one before writing")

	_, err = Scope{}.WriteClinicID()
	assert.ErrorIs(t, err, ErrEmptyScope)
}

func TestScope_Narrow(t *testing.T) {
	owner := Scope{UserID: "o1", Role: RoleOwner, ClinicIDs: []string{clinicA, clinicB}, SelectedClinicID: clinicA}

	narrowed, err := owner.Narrow(clinicB)
	require.NoError(t, err)
	assert.Equal(t, []string{clinicB}, narrowed.ClinicIDs)
	assert.Equal(t, clinicB, narrowed.SelectedClinicID)
	assert.False(t, narrowed.IsMulti())

	_, err = Single("u1", RoleDentist, clinicA).Narrow(clinicB)
	assert.ErrorIs(t, err, ErrClinicOutOfScope)
}

func TestScopeContext(t *testing.T) {
	_, err := ScopeFromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoScope)

	ctx := WithScope(context.Background(), Single("u1", RoleAdmin, clinicA))
	got, err := ScopeFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, clinicA, got.SelectedClinicID)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("owner")
	assert.True(t, ok)
	assert.True(t, r.IsOwner())

	_, ok = ParseRole("superuser")
	assert.False(t, ok)

	assert.True(t, RoleHygienist.IsStaff())
	assert.False(t, RolePatient.IsStaff())
}
