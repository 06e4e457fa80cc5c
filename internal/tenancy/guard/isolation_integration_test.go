package guard_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

type chartPatient struct {
	ID        string `db:"id"`
	ClinicID  string `db:"clinic_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

func (p *chartPatient) SetClinicID(id string) { p.ClinicID = id }

var chartPatients = guard.Table{
	Name:       "patients",
	Columns:    []string{"id", "clinic_id", "first_name", "last_name"},
	Insertable: []string{"first_name", "last_name"},
	Mutable:    []string{"first_name", "last_name"},
	Touch:      "updated_at",
	OrderBy:    "last_name",
}

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

func TestIsolation_ClinicsDoNotSeeEachOther(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupBaseline(t, ctx, "guard-isolation")

	a := suite.Fixtures.Clinic()
	b := suite.Fixtures.Clinic()
	testutil.InsertClinic(t, ctx, s.DB, a)
	testutil.InsertClinic(t, ctx, s.DB, b)

	store, err := guard.NewStore[chartPatient](s.DB, chartPatients, nil)
	require.NoError(t, err)

	staffA := tenant.Single("staff-a", tenant.RoleDentist, a.ID)
	staffB := tenant.Single("staff-b", tenant.RoleReceptionist, b.ID)

	p := &chartPatient{FirstName: "Ana", LastName: "Ruiz", ClinicID: b.ID}
	require.NoError(t, store.Insert(ctx, staffA, p))
	require.Equal(t, a.ID, p.ClinicID)

	t.Run("staff of the other clinic reads nothing", func(t *testing.T) {
		rows, total, err := store.List(ctx, staffB, guard.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Zero(t, total)

		_, err = store.Get(ctx, staffB, p.ID)
		assert.True(t, errors.IsNotFound(err))

		ok, err := store.Exists(ctx, staffB, p.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("staff of the other clinic cannot change or delete", func(t *testing.T) {
		err := store.Update(ctx, staffB, p.ID, &chartPatient{FirstName: "Hijacked", LastName: "X"})
		assert.True(t, errors.IsNotFound(err))
		assert.True(t, errors.IsNotFound(store.Delete(ctx, staffB, p.ID)))

		got, err := store.Get(ctx, staffA, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.FirstName)
	})

	t.Run("owner of both clinics reads both", func(t *testing.T) {
		q := &chartPatient{FirstName: "Luis", LastName: "Gil"}
		require.NoError(t, store.Insert(ctx, staffB, q))

		owner := tenant.Scope{UserID: "owner", Role: tenant.RoleOwner, ClinicIDs: []string{a.ID, b.ID}, SelectedClinicID: a.ID}
		rows, total, err := store.List(ctx, owner, guard.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		clinics := map[string]bool{}
		for _, r := range rows {
			clinics[r.ClinicID] = true
		}
		assert.True(t, clinics[a.ID] && clinics[b.ID])

		narrowed, err := owner.Narrow(b.ID)
		require.NoError(t, err)
		n, err := store.Count(ctx, narrowed)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("every stored row carries a clinic in the scope set", func(t *testing.T) {
		var bad int
		err := s.DB.GetContext(ctx, &bad, `SELECT COUNT(*) FROM patients WHERE clinic_id NOT IN ($1, $2)`, a.ID, b.ID)
		require.NoError(t, err)
		assert.Zero(t, bad)
	})
}

func TestIsolation_ConcurrentStockWithdrawals(t *testing.T) {
	testutil.RequireSuite(t, suite)
	ctx := context.Background()
	s := suite.SetupBaseline(t, ctx, "guard-stock")

	a := suite.Fixtures.Clinic()
	testutil.InsertClinic(t, ctx, s.DB, a)
	var id string
	require.NoError(t, s.DB.GetContext(ctx, &id,
		`INSERT INTO inventory_items (clinic_id, name, quantity) VALUES ($1, 'Gloves', 10) RETURNING id`, a.ID))

	store, err := guard.NewStore[stockItem](s.DB, stockTable, nil)
	require.NoError(t, err)
	scope := tenant.Single("staff-a", tenant.RoleAssistant, a.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Add(ctx, scope, id, "quantity", -6)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "errors: %v", errs)

	got, err := store.Get(ctx, scope, id)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
}
