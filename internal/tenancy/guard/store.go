// Package guard is the only path from request handlers to tenant-owned rows.
//
// A Store builds every statement itself and adds the clinic predicate from the
// caller's tenant.Scope, which is a required parameter of each method. Rows of
// other clinics are indistinguishable from rows that do not exist.
package guard

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/metrics"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ClinicOwned is implemented by entities stored in tenant-owned tables.
type ClinicOwned interface {
	SetClinicID(clinicID string)
}

// Operation labels used in metrics.
const (
	OpGet    = "get"
	OpList   = "list"
	OpCount  = "count"
	OpExists = "exists"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpAdd    = "add"
	OpLock   = "lock"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ListOptions narrows a List call inside the scope. Filter keys must be
// declared columns; a []string value becomes an IN list.
type ListOptions struct {
	Filters map[string]any
	Page    int
	PerPage int
}

func (o ListOptions) limits() (limit, offset int) {
	limit = o.PerPage
	if limit <= 0 {
		limit = defaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	page := o.Page
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

// Store reads and writes one tenant-owned table. T is the row type, scanned by
// its db tags; *T must implement ClinicOwned.
type Store[T any] struct {
	db      *database.DB
	table   Table
	metrics *metrics.Metrics
}

// NewStore validates table and returns a store for it.
func NewStore[T any](db *database.DB, table Table, m *metrics.Metrics) (*Store[T], error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	var zero T
	if _, ok := any(&zero).(ClinicOwned); !ok {
		return nil, fmt.Errorf("guard: *%T must implement ClinicOwned", zero)
	}
	return &Store[T]{db: db, table: table.withDefaults(), metrics: m}, nil
}

// MustStore is NewStore for table definitions fixed at compile time.
func MustStore[T any](db *database.DB, table Table, m *metrics.Metrics) *Store[T] {
	s, err := NewStore[T](db, table, m)
	if err != nil {
		panic(err)
	}
	return s
}

// Table returns the normalized definition.
func (s *Store[T]) Table() Table {
	return s.table
}

// Get returns the row with id when it belongs to a clinic in scope.
func (s *Store[T]) Get(ctx context.Context, scope tenant.Scope, id string) (*T, error) {
	where, args, err := s.scoped(scope, OpGet, s.idPredicate(), id)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", s.table.selectList(), s.table.quotedName(), where)

	var row T
	if err := s.get(ctx, OpGet, &row, query, args); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetForUpdate is Get with a row lock held until the surrounding transaction
// ends. It must run inside database.DB.InTx.
func (s *Store[T]) GetForUpdate(ctx context.Context, scope tenant.Scope, id string) (*T, error) {
	if database.TxFromContext(ctx) == nil {
		return nil, fmt.Errorf("locking %s requires a transaction", s.table.Name)
	}
	where, args, err := s.scoped(scope, OpLock, s.idPredicate(), id)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s FOR UPDATE", s.table.selectList(), s.table.quotedName(), where)

	var row T
	if err := s.get(ctx, OpLock, &row, query, args); err != nil {
		return nil, err
	}
	return &row, nil
}

// Exists reports whether id is visible in scope.
func (s *Store[T]) Exists(ctx context.Context, scope tenant.Scope, id string) (bool, error) {
	where, args, err := s.scoped(scope, OpExists, s.idPredicate(), id)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s)", s.table.quotedName(), where)

	var exists bool
	if err := s.get(ctx, OpExists, &exists, query, args); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns one page of rows in scope plus the total matching count.
func (s *Store[T]) List(ctx context.Context, scope tenant.Scope, opts ListOptions) ([]T, int, error) {
	preds, vals, err := s.filterPredicates(opts.Filters)
	if err != nil {
		s.metrics.GuardRejection(s.table.Name, OpList)
		return nil, 0, err
	}
	where, args, err := s.scoped(scope, OpList, preds, vals...)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.table.quotedName(), where)
	if err := s.get(ctx, OpCount, &total, countQuery, args); err != nil {
		return nil, 0, err
	}

	limit, offset := opts.limits()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s %s LIMIT ? OFFSET ?",
		s.table.selectList(), s.table.quotedName(), where, s.table.orderClause())

	rows := make([]T, 0)
	conn := s.db.Conn(ctx)
	s.metrics.GuardQuery(s.table.Name, OpList)
	if err := sqlx.SelectContext(ctx, conn, &rows, conn.Rebind(query), append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", s.table.Name, err)
	}
	return rows, total, nil
}

// Count returns the number of rows in scope.
func (s *Store[T]) Count(ctx context.Context, scope tenant.Scope) (int, error) {
	where, args, err := s.scoped(scope, OpCount, nil)
	if err != nil {
		return 0, err
	}
	var total int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.table.quotedName(), where)
	if err := s.get(ctx, OpCount, &total, query, args); err != nil {
		return 0, err
	}
	return total, nil
}

// Insert stores row under the scope's write clinic, ignoring any clinic id the
// caller set, and scans the stored row back into it.
func (s *Store[T]) Insert(ctx context.Context, scope tenant.Scope, row *T) error {
	clinicID, err := scope.WriteClinicID()
	if err != nil {
		s.metrics.GuardRejection(s.table.Name, OpInsert)
		return errors.Forbidden("no clinic selected for write: " + err.Error())
	}
	any(row).(ClinicOwned).SetClinicID(clinicID)

	cols := append(append([]string(nil), s.table.Insertable...), s.table.ClinicColumn)
	named := make([]string, len(cols))
	for i, c := range cols {
		named[i] = ":" + c
	}
	query, args, err := sqlx.Named(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		s.table.quotedName(), quoteAll(cols), strings.Join(named, ", "), s.table.selectList()), row)
	if err != nil {
		return fmt.Errorf("failed to bind %s insert: %w", s.table.Name, err)
	}

	conn := s.db.Conn(ctx)
	s.metrics.GuardQuery(s.table.Name, OpInsert)
	if err := conn.QueryRowxContext(ctx, conn.Rebind(query), args...).StructScan(row); err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to insert into %s: %w", s.table.Name, err)
	}
	return nil
}

// Update writes the mutable columns of row to the row with id in scope. The
// clinic column is never written. Rows outside the scope yield NotFound.
func (s *Store[T]) Update(ctx context.Context, scope tenant.Scope, id string, row *T) error {
	if len(s.table.Mutable) == 0 {
		return fmt.Errorf("table %s has no mutable columns", s.table.Name)
	}
	sets := make([]string, 0, len(s.table.Mutable)+1)
	for _, c := range s.table.Mutable {
		sets = append(sets, fmt.Sprintf("%s = :%s", pq.QuoteIdentifier(c), c))
	}
	if s.table.Touch != "" {
		sets = append(sets, pq.QuoteIdentifier(s.table.Touch)+" = NOW()")
	}
	setClause, setArgs, err := sqlx.Named(strings.Join(sets, ", "), row)
	if err != nil {
		return fmt.Errorf("failed to bind %s update: %w", s.table.Name, err)
	}

	where, whereArgs, err := s.scoped(scope, OpUpdate, s.idPredicate(), id)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		s.table.quotedName(), setClause, where, s.table.selectList())

	conn := s.db.Conn(ctx)
	s.metrics.GuardQuery(s.table.Name, OpUpdate)
	err = conn.QueryRowxContext(ctx, conn.Rebind(query), append(setArgs, whereArgs...)...).StructScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.GuardRejection(s.table.Name, OpUpdate)
		return errors.NotFound(s.resource())
	}
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to update %s: %w", s.table.Name, err)
	}
	return nil
}

// Add changes counter column by delta in one statement and returns the stored
// row. A result below zero is a Conflict and leaves the row unchanged; rows
// outside the scope yield NotFound.
func (s *Store[T]) Add(ctx context.Context, scope tenant.Scope, id, column string, delta int) (*T, error) {
	if !contains(s.table.Counters, column) {
		return nil, fmt.Errorf("table %s: %s is not a counter", s.table.Name, column)
	}
	col := pq.QuoteIdentifier(column)
	sets := col + " = " + col + " + ?"
	if s.table.Touch != "" {
		sets += ", " + pq.QuoteIdentifier(s.table.Touch) + " = NOW()"
	}
	preds := append(s.idPredicate(), col+" + ? >= 0")
	where, whereArgs, err := s.scoped(scope, OpAdd, preds, id, delta)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		s.table.quotedName(), sets, where, s.table.selectList())

	var row T
	conn := s.db.Conn(ctx)
	s.metrics.GuardQuery(s.table.Name, OpAdd)
	err = conn.QueryRowxContext(ctx, conn.Rebind(query), append([]any{delta}, whereArgs...)...).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		visible, existsErr := s.Exists(ctx, scope, id)
		if existsErr != nil {
			return nil, existsErr
		}
		if !visible {
			s.metrics.GuardRejection(s.table.Name, OpAdd)
			return nil, errors.NotFound(s.resource())
		}
		return nil, errors.Conflict(fmt.Sprintf("%s would drop below zero", column))
	}
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, fmt.Errorf("failed to update %s: %w", s.table.Name, err)
	}
	return &row, nil
}

// Delete removes, or soft-deletes, the row with id in scope.
func (s *Store[T]) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	where, args, err := s.scoped(scope, OpDelete, s.idPredicate(), id)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", s.table.quotedName(), where)
	if s.table.SoftDelete != "" {
		query = fmt.Sprintf("UPDATE %s SET %s = NOW() WHERE %s",
			s.table.quotedName(), pq.QuoteIdentifier(s.table.SoftDelete), where)
	}

	conn := s.db.Conn(ctx)
	s.metrics.GuardQuery(s.table.Name, OpDelete)
	res, err := conn.ExecContext(ctx, conn.Rebind(query), args...)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to delete from %s: %w", s.table.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", s.table.Name, err)
	}
	if n == 0 {
		s.metrics.GuardRejection(s.table.Name, OpDelete)
		return errors.NotFound(s.resource())
	}
	return nil
}

// scoped joins the clinic predicate, the soft delete filter and preds into one
// WHERE body with ? placeholders, expanding slices through sqlx.In.
func (s *Store[T]) scoped(scope tenant.Scope, op string, preds []string, vals ...any) (string, []any, error) {
	if err := scope.Validate(); err != nil {
		s.metrics.GuardRejection(s.table.Name, op)
		return "", nil, errors.Forbidden("invalid clinic scope: " + err.Error())
	}

	clauses := make([]string, 0, len(preds)+2)
	clauses = append(clauses, preds...)
	clauses = append(clauses, pq.QuoteIdentifier(s.table.ClinicColumn)+" IN (?)")
	if s.table.SoftDelete != "" {
		clauses = append(clauses, pq.QuoteIdentifier(s.table.SoftDelete)+" IS NULL")
	}
	args := append(append([]any(nil), vals...), scope.ClinicIDs)

	where, args, err := sqlx.In(strings.Join(clauses, " AND "), args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build %s predicate: %w", s.table.Name, err)
	}
	return where, args, nil
}

func (s *Store[T]) idPredicate() []string {
	return []string{pq.QuoteIdentifier(s.table.IDColumn) + " = ?"}
}

func (s *Store[T]) filterPredicates(filters map[string]any) ([]string, []any, error) {
	if len(filters) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if !s.table.HasColumn(k) || k == s.table.ClinicColumn {
			return nil, nil, errors.BadRequest("unknown filter: " + k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]string, 0, len(keys))
	vals := make([]any, 0, len(keys))
	for _, k := range keys {
		v := filters[k]
		if list, ok := v.([]string); ok {
			if len(list) == 0 {
				return nil, nil, errors.BadRequest("empty filter: " + k)
			}
			preds = append(preds, pq.QuoteIdentifier(k)+" IN (?)")
		} else {
			preds = append(preds, pq.QuoteIdentifier(k)+" = ?")
		}
		vals = append(vals, v)
	}
	return preds, vals, nil
}

func (s *Store[T]) get(ctx context.Context, op string, dest any, query string, args []any) error {
	conn := s.db.Conn(ctx)
	s.metrics.GuardQuery(s.table.Name, op)
	err := sqlx.GetContext(ctx, conn, dest, conn.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		s.metrics.GuardRejection(s.table.Name, op)
		return errors.NotFound(s.resource())
	}
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", s.table.Name, err)
	}
	return nil
}

// resource names a row of the table in error messages, e.g. "medical record".
func (s *Store[T]) resource() string {
	name := strings.ReplaceAll(s.table.Name, "_", " ")
	return strings.TrimSuffix(name, "s")
}
