package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TestSchema is an isolated Postgres schema with its own connection pool.
// The pool's search_path points at the schema, so unqualified table names and
// current_schema() resolve inside it.
type TestSchema struct {
	Name string
	DSN  string
	DB   *database.DB
}

// SchemaManager creates and drops test schemas
type SchemaManager struct {
	db      *sqlx.DB
	baseDSN string
	log     *logger.Logger
	schemas []*TestSchema
	mu      sync.Mutex
}

// NewSchemaManager creates a schema manager on the container database
func NewSchemaManager(db *sqlx.DB, baseDSN string, log *logger.Logger) *SchemaManager {
	return &SchemaManager{db: db, baseDSN: baseDSN, log: log}
}

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSchema creates a fresh schema and applies ddl inside it.
//
// Usage:
//
//	sm := testutil.NewSchemaManager(db, container.DSN, log)
//	s, err := sm.CreateSchema(ctx, "guard-isolation", testutil.BaselineDDL()...)
//
//	// s.DB only sees tables of this schema
//	repo := clinic.NewRepository(s.DB)
func (sm *SchemaManager) CreateSchema(ctx context.Context, name string, ddl ...string) (*TestSchema, error) {
	slug := nonIdent.ReplaceAllString(strings.ToLower(name), "_")
	schemaName := fmt.Sprintf("t_%s_%s", slug, strings.ReplaceAll(uuid.NewString()[:8], "-", ""))
	if len(schemaName) > 63 {
		schemaName = schemaName[len(schemaName)-63:]
	}

	if _, err := sm.db.ExecContext(ctx, "CREATE SCHEMA "+pq.QuoteIdentifier(schemaName)); err != nil {
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	dsn, err := withSearchPath(sm.baseDSN, schemaName)
	if err != nil {
		return nil, err
	}
	db, err := database.NewWithDSN(dsn, sm.log)
	if err != nil {
		return nil, err
	}

	s := &TestSchema{Name: schemaName, DSN: dsn, DB: db}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply ddl to %s: %w", schemaName, err)
		}
	}

	sm.mu.Lock()
	sm.schemas = append(sm.schemas, s)
	sm.mu.Unlock()
	return s, nil
}

// DropSchema closes the schema's pool and removes every object in it
func (sm *SchemaManager) DropSchema(ctx context.Context, s *TestSchema) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s.DB.Close()
	if _, err := sm.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pq.QuoteIdentifier(s.Name)+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop test schema: %w", err)
	}
	for i, tracked := range sm.schemas {
		if tracked == s {
			sm.schemas = append(sm.schemas[:i], sm.schemas[i+1:]...)
			break
		}
	}
	return nil
}

// Cleanup drops every schema still tracked
func (sm *SchemaManager) Cleanup(ctx context.Context) error {
	sm.mu.Lock()
	schemas := append([]*TestSchema(nil), sm.schemas...)
	sm.mu.Unlock()

	var lastErr error
	for _, s := range schemas {
		if err := sm.DropSchema(ctx, s); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func withSearchPath(dsn, schemaName string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse test dsn: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schemaName)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BaselineDDL is the fully isolated schema plus the migration state table.
func BaselineDDL() []string {
	return []string{schema.BaselineSQL, schema.StateSQL}
}

// LegacyDDL is the pre-isolation schema without any clinic_id columns.
func LegacyDDL() []string {
	return []string{schema.LegacySQL}
}
