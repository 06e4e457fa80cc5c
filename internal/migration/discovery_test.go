package migration

import (
	"testing"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fk(table, column, ref string) ForeignKey {
	return ForeignKey{Table: table, Column: column, RefTable: ref, RefColumn: "id", Constraint: table + "_" + column + "_fkey"}
}

func TestFindLandmines_IsolatedSchemaIsClean(t *testing.T) {
	tables := []string{"clinics", "users", "owner_clinics", "patients", "appointments", "notifications", "cart_items", "tenant_migrations"}
	scoped := []string{"users", "owner_clinics", "patients", "appointments"}
	fks := []ForeignKey{
		fk("users", "clinic_id", "clinics"),
		fk("owner_clinics", "owner_id", "users"),
		fk("owner_clinics", "clinic_id", "clinics"),
		fk("patients", "clinic_id", "clinics"),
		fk("appointments", "patient_id", "patients"),
		fk("appointments", "dentist_id", "users"),
		fk("notifications", "user_id", "users"),
		fk("cart_items", "patient_id", "patients"),
	}

	assert.Empty(t, findLandmines(schema.Default(), tables, scoped, fks))
}

func TestFindLandmines_ReportsUnscopedChildren(t *testing.T) {
	tables := []string{"clinics", "users", "patients", "treatment_plans", "treatment_steps", "cart_items"}
	scoped := []string{"users", "patients"}
	fks := []ForeignKey{
		fk("patients", "clinic_id", "clinics"),
		fk("treatment_plans", "patient_id", "patients"),
		fk("treatment_steps", "plan_id", "treatment_plans"),
		fk("cart_items", "patient_id", "patients"),
	}

	got := findLandmines(schema.Default(), tables, scoped, fks)
	require.Len(t, got, 2)

	assert.Equal(t, "treatment_plans", got[0].Table)
	assert.Equal(t, []string{"patients", "treatment_plans"}, got[0].Path)
	assert.Contains(t, got[0].Reason, "via patient_id")

	assert.Equal(t, "treatment_steps", got[1].Table)
	assert.Equal(t, []string{"patients", "treatment_plans", "treatment_steps"}, got[1].Path)
}

func TestFindLandmines_ReportsRegisteredTableWithoutColumn(t *testing.T) {
	tables := []string{"clinics", "users", "patients", "invoices"}
	scoped := []string{"users", "patients"}
	fks := []ForeignKey{fk("invoices", "patient_id", "patients")}

	got := findLandmines(schema.Default(), tables, scoped, fks)
	require.Len(t, got, 1)
	assert.Equal(t, "invoices", got[0].Table)
	assert.Contains(t, got[0].Reason, "tenant-owned table without clinic_id")
}
