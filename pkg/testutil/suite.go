package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	globalDB        *sqlx.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	RawDB     *sqlx.DB
	Schemas   *SchemaManager
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite creates a new integration test suite.
// Call this in TestMain to set up shared test infrastructure. The test binary
// also runs the package's unit tests, so a missing Docker daemon must not abort
// it: keep the suite nil and let RequireSuite skip.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    ctx := context.Background()
//	    if !testing.Short() {
//	        var err error
//	        if suite, err = testutil.NewIntegrationSuite(ctx); err != nil {
//	            fmt.Fprintln(os.Stderr, "integration tests disabled:", err)
//	        }
//	    }
//	    code := m.Run()
//	    if suite != nil {
//	        suite.Cleanup(ctx)
//	    }
//	    os.Exit(code)
//	}
//
//	func TestSomething(t *testing.T) {
//	    testutil.RequireSuite(t, suite)
//	    s := suite.SetupBaseline(t, ctx, "something")
//	    // ... run tests against s.DB
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	container, db, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}
	if err := container.Prepare(ctx, db); err != nil {
		return nil, err
	}

	log := logger.Nop()
	return &IntegrationSuite{
		Container: container,
		RawDB:     db,
		Schemas:   NewSchemaManager(db, container.DSN, log),
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// getOrCreateContainer returns the shared test container
func getOrCreateContainer(ctx context.Context) (*PostgresContainer, *sqlx.DB, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.Connect(ctx)
	})

	return globalContainer, globalDB, containerErr
}

// RequireSuite skips t when the integration suite could not start.
func RequireSuite(t *testing.T, s *IntegrationSuite) {
	t.Helper()
	SkipIfShort(t)
	if s == nil {
		t.Skip("integration suite unavailable (docker not reachable)")
	}
}

// SetupSchema creates an isolated schema for one test and drops it afterwards.
func (s *IntegrationSuite) SetupSchema(t *testing.T, ctx context.Context, name string, ddl []string) *TestSchema {
	t.Helper()

	ts, err := s.Schemas.CreateSchema(ctx, name, ddl...)
	if err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Schemas.DropSchema(context.Background(), ts); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", ts.Name, err)
		}
	})

	return ts
}

// SetupBaseline creates a schema in its isolated target state
func (s *IntegrationSuite) SetupBaseline(t *testing.T, ctx context.Context, name string) *TestSchema {
	return s.SetupSchema(t, ctx, name, BaselineDDL())
}

// SetupLegacy creates a schema as it looked before clinic isolation
func (s *IntegrationSuite) SetupLegacy(t *testing.T, ctx context.Context, name string) *TestSchema {
	return s.SetupSchema(t, ctx, name, LegacyDDL())
}

// Cleanup cleans up all test resources
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	// The container is shared; TerminateContainer stops it.
	return s.Schemas.Cleanup(ctx)
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}

// UnitTestSuite provides a base for unit tests with mocked dependencies
type UnitTestSuite struct {
	MockDB   *MockDB
	Fixtures *FixtureFactory
	t        *testing.T
}

// NewUnitTestSuite creates a new unit test suite
func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	return &UnitTestSuite{
		MockDB:   NewMockDB(t),
		Fixtures: NewFixtureFactory(),
		t:        t,
	}
}

// Cleanup verifies expectations and cleans up
func (s *UnitTestSuite) Cleanup() {
	s.MockDB.ExpectationsWereMet(s.t)
	s.MockDB.Close()
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsCI returns true if running in CI environment
func IsCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			return true
		}
	}
	return false
}
