package database

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantNil    bool
	}{
		{
			name:       "unique violation",
			err:        &pq.Error{Code: "23505", Constraint: "patients_clinic_email_key"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "wrapped foreign key violation",
			err:        fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Constraint: "patients_clinic_id_fkey"}),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not null violation",
			err:        &pq.Error{Code: "23502", Column: "clinic_id"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:    "unmapped code",
			err:     &pq.Error{Code: "40001"},
			wantNil: true,
		},
		{
			name:    "not a pq error",
			err:     fmt.Errorf("plain"),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPQError(tt.err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
		})
	}
}

func TestMapPQError_ClinicForeignKey(t *testing.T) {
	got := MapPQError(&pq.Error{Code: "23503", Constraint: "fk_patients_clinic"})
	require.NotNil(t, got)
	assert.Equal(t, "clinic does not exist", got.Message)
}
