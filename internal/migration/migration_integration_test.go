package migration_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/testutil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	ctx := context.Background()

	if !testing.Short() {
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "integration tests disabled:", err)
		}
	}

	code := m.Run()
	if suite != nil {
		suite.Cleanup(ctx)
	}
	os.Exit(code)
}

// seedLegacy fills a pre-isolation schema: one clinic, two users, two patients,
// an appointment, a record and an invoice per patient.
func seedLegacy(t *testing.T, ctx context.Context, db sqlx.ExecerContext) (clinicID string, patientIDs []string) {
	t.Helper()
	c := suite.Fixtures.Clinic()
	testutil.InsertClinic(t, ctx, db, c)

	for i := 0; i < 2; i++ {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (email, password_hash, first_name, last_name, role) VALUES ($1, 'x', 'Ana', 'Ruiz', 'dentist')`,
			fmt.Sprintf("legacy%d-%s@test.dentiagest.es", i, uuid.NewString()[:6]))
		require.NoError(t, err)

		pid := uuid.NewString()
		patientIDs = append(patientIDs, pid)
		_, err = db.ExecContext(ctx, `INSERT INTO patients (id, first_name, last_name) VALUES ($1, 'Luis', 'Gil')`, pid)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `INSERT INTO appointments (patient_id, scheduled_at) VALUES ($1, $2)`, pid, time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `INSERT INTO medical_records (patient_id, record_type) VALUES ($1, 'checkup')`, pid)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `INSERT INTO invoices (patient_id, invoice_number) VALUES ($1, $2)`, pid, fmt.Sprintf("F-%d", i))
		require.NoError(t, err)
	}
	return c.ID, patientIDs
}

func TestMigrator_LegacySchemaToConstrained(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupLegacy(t, ctx, "migrate-legacy")
	clinicID, _ := seedLegacy(t, ctx, s.DB)

	m := migration.NewMigrator(s.DB, logger.Nop())
	reg := schema.Default()
	opts := migration.Options{DefaultClinicID: clinicID, AppliedBy: "integration"}

	results, err := m.ApplyAll(ctx, reg.TenantOwned, opts)
	require.NoError(t, err)
	require.Len(t, results, len(reg.TenantOwned))

	for _, res := range results {
		assert.Equal(t, migration.OutcomeMigrated, res.Outcome, res.Table)
		assert.Equal(t, migration.StageConstrained, res.To, res.Table)
		assert.True(t, res.Counts.Complete(), res.Table)
	}

	t.Run("every tenant-owned table verifies", func(t *testing.T) {
		v := migration.NewVerifier(s.DB)
		for _, spec := range reg.TenantOwned {
			counts, err := v.Verify(ctx, spec.Name, schema.ClinicColumn)
			require.NoError(t, err, spec.Name)
			assert.Equal(t, counts.Total, counts.Valid, spec.Name)
		}
	})

	t.Run("children inherit the parent's clinic", func(t *testing.T) {
		var mismatched int
		err := s.DB.GetContext(ctx, &mismatched, `SELECT COUNT(*) FROM appointments a JOIN patients p ON p.id = a.patient_id WHERE a.clinic_id <> p.clinic_id`)
		require.NoError(t, err)
		assert.Zero(t, mismatched)
	})

	t.Run("state is recorded", func(t *testing.T) {
		states, err := migration.NewStateStore(s.DB).List(ctx)
		require.NoError(t, err)
		require.Len(t, states, len(reg.TenantOwned))
		for _, st := range states {
			assert.Equal(t, migration.StageConstrained, st.Stage, st.Table)
			assert.Equal(t, "integration", st.AppliedBy)
		}
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		again, err := m.ApplyAll(ctx, reg.TenantOwned, opts)
		require.NoError(t, err)
		for _, res := range again {
			assert.Equal(t, migration.OutcomeAlreadyApplied, res.Outcome, res.Table)
			assert.Empty(t, res.Steps)
		}
	})

	t.Run("children cannot point at another clinic's patient", func(t *testing.T) {
		other := suite.Fixtures.Clinic()
		testutil.InsertClinic(t, ctx, s.DB, other)
		var patientID string
		require.NoError(t, s.DB.GetContext(ctx, &patientID, `SELECT id FROM patients LIMIT 1`))

		_, err := s.DB.ExecContext(ctx,
			`INSERT INTO invoices (clinic_id, patient_id, invoice_number) VALUES ($1, $2, 'X-1')`, other.ID, patientID)
		assertForeignKeyViolation(t, err)
	})

	t.Run("new rows without a clinic are rejected", func(t *testing.T) {
		_, err := s.DB.ExecContext(ctx, `INSERT INTO patients (first_name, last_name) VALUES ('No', 'Clinic')`)
		assert.Error(t, err)
	})

	t.Run("no landmines remain", func(t *testing.T) {
		landmines, err := migration.NewDiscovery(s.DB).Landmines(ctx, reg)
		require.NoError(t, err)
		assert.Empty(t, landmines)
	})
}

func TestMigrator_IncompleteBackfillRollsBack(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupLegacy(t, ctx, "migrate-rollback")
	clinicID, _ := seedLegacy(t, ctx, s.DB)

	m := migration.NewMigrator(s.DB, logger.Nop())
	reg := schema.Default()

	// patients only gets the column, so appointments have nothing to inherit
	_, err := m.Apply(ctx, reg.MustLookup("patients"), migration.Options{DefaultClinicID: clinicID, Target: migration.StageColumnAdded})
	require.NoError(t, err)

	_, err = m.Apply(ctx, reg.MustLookup("appointments"), migration.Options{DefaultClinicID: clinicID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, migration.ErrDataIntegrity))

	col, err := migration.NewInspector(s.DB).Column(ctx, "appointments", schema.ClinicColumn)
	require.NoError(t, err)
	assert.False(t, col.Exists, "column add must be rolled back with the failed backfill")

	_, recorded, err := migration.NewStateStore(s.DB).Get(ctx, "appointments")
	require.NoError(t, err)
	assert.False(t, recorded)
}

func TestMigrator_DefaultClinicMustExist(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupLegacy(t, ctx, "migrate-default-clinic")
	seedLegacy(t, ctx, s.DB)

	m := migration.NewMigrator(s.DB, logger.Nop())
	_, err := m.Apply(ctx, schema.Default().MustLookup("users"), migration.Options{DefaultClinicID: uuid.NewString()})
	assert.True(t, errors.Is(err, migration.ErrSchemaAssumption))
}

func TestVerifier_DetectsOrphans(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupLegacy(t, ctx, "verify-orphans")
	seedLegacy(t, ctx, s.DB)

	_, err := s.DB.ExecContext(ctx, `ALTER TABLE patients ADD COLUMN clinic_id UUID`)
	require.NoError(t, err)
	_, err = s.DB.ExecContext(ctx, `UPDATE patients SET clinic_id = gen_random_uuid()`)
	require.NoError(t, err)

	counts, err := migration.NewVerifier(s.DB).Verify(ctx, "patients", schema.ClinicColumn)
	assert.True(t, errors.Is(err, migration.ErrDataIntegrity))
	assert.Equal(t, int64(2), counts.Orphans())
	assert.Zero(t, counts.Nulls())
}

func TestDiscovery_FindsUnregisteredChild(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupBaseline(t, ctx, "discover-landmines")

	_, err := s.DB.ExecContext(ctx, `CREATE TABLE treatment_plans (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		patient_id UUID NOT NULL REFERENCES patients(id)
	)`)
	require.NoError(t, err)

	d := migration.NewDiscovery(s.DB)
	refs, err := d.ReferencingTables(ctx, "patients")
	require.NoError(t, err)
	var referencing []string
	for _, r := range refs {
		referencing = append(referencing, r.Table)
	}
	assert.Contains(t, referencing, "treatment_plans")
	assert.Contains(t, referencing, "cart_items")

	landmines, err := d.Landmines(ctx, schema.Default())
	require.NoError(t, err)
	require.Len(t, landmines, 1)
	assert.Equal(t, "treatment_plans", landmines[0].Table)
	assert.Equal(t, []string{"patients", "treatment_plans"}, landmines[0].Path)
}

func TestMigrator_EnforceBaselineWithoutHistory(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupBaseline(t, ctx, "enforce-baseline")

	m := migration.NewMigrator(s.DB, logger.Nop())
	results, err := m.Enforce(ctx, []string{"patients", "invoices"}, "tester")
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, migration.OutcomeMigrated, res.Outcome, res.Table)
		assert.Equal(t, migration.StageEnforced, res.To, res.Table)
	}

	again, err := m.Enforce(ctx, []string{"patients"}, "tester")
	require.NoError(t, err)
	assert.Equal(t, migration.OutcomeAlreadyApplied, again[0].Outcome)
}

func assertForeignKeyViolation(t *testing.T, err error) {
	t.Helper()
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr), "got %v", err)
	assert.Equal(t, pq.ErrorCode("23503"), pqErr.Code)
}

func TestBaseline_ChildRowsStayInTheParentsClinic(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupBaseline(t, ctx, "baseline-parent-keys")

	a := suite.Fixtures.Clinic()
	b := suite.Fixtures.Clinic()
	testutil.InsertClinic(t, ctx, s.DB, a)
	testutil.InsertClinic(t, ctx, s.DB, b)
	p := suite.Fixtures.Patient(a.ID)
	testutil.InsertPatient(t, ctx, s.DB, p)

	for _, stmt := range []string{
		`INSERT INTO appointments (clinic_id, patient_id, scheduled_at) VALUES ($1, $2, NOW())`,
		`INSERT INTO medical_records (clinic_id, patient_id, record_type) VALUES ($1, $2, 'exam')`,
		`INSERT INTO invoices (clinic_id, patient_id, invoice_number) VALUES ($1, $2, 'F-1')`,
	} {
		_, err := s.DB.ExecContext(ctx, stmt, b.ID, p.ID)
		assertForeignKeyViolation(t, err)

		_, err = s.DB.ExecContext(ctx, stmt, a.ID, p.ID)
		require.NoError(t, err, stmt)
	}

	var supplierID string
	require.NoError(t, s.DB.GetContext(ctx, &supplierID,
		`INSERT INTO suppliers (clinic_id, name) VALUES ($1, 'Dental Depot') RETURNING id`, a.ID))
	_, err := s.DB.ExecContext(ctx, `INSERT INTO purchase_orders (clinic_id, supplier_id) VALUES ($1, $2)`, b.ID, supplierID)
	assertForeignKeyViolation(t, err)
}
