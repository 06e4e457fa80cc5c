package migration

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
)

// Error kinds. Match with errors.Is.
var (
	// ErrConnection is fatal: the database could not be reached or dropped the session.
	ErrConnection = errors.New("connection error")
	// ErrSchemaAssumption means the schema is not what the step expects, e.g. a missing table or column.
	ErrSchemaAssumption = errors.New("schema assumption violated")
	// ErrDataIntegrity means rows without a valid clinic were found; constraints must not be applied.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrAlreadyApplied marks an idempotent no-op. It is never returned from Apply.
	ErrAlreadyApplied = errors.New("already applied")
)

// Error carries the kind plus the table it concerns.
type Error struct {
	Kind   error
	Table  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Table != "" {
		b.WriteString(" on ")
		b.WriteString(e.Table)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func schemaErr(table, format string, args ...any) *Error {
	return &Error{Kind: ErrSchemaAssumption, Table: table, Detail: fmt.Sprintf(format, args...)}
}

func integrityErr(table string, c Counts) *Error {
	return &Error{
		Kind:   ErrDataIntegrity,
		Table:  table,
		Detail: fmt.Sprintf("%d of %d rows lack a valid %s (%d null, %d orphaned)", c.Total-c.Valid, c.Total, c.Column, c.Nulls(), c.Orphans()),
	}
}

// KindOf returns the taxonomy kind of err, or nil for unclassified errors.
func KindOf(err error) error {
	for _, k := range []error{ErrConnection, ErrSchemaAssumption, ErrDataIntegrity, ErrAlreadyApplied} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Classify maps driver failures that mean the session is gone to ErrConnection.
func Classify(err error) error {
	return classify("", err)
}

// classify wraps driver failures that mean the session is gone as ErrConnection.
// Errors that already carry a kind pass through untouched.
func classify(table string, err error) error {
	if err == nil || KindOf(err) != nil {
		return err
	}
	if isConnectionFailure(err) {
		return &Error{Kind: ErrConnection, Table: table, Err: err}
	}
	return err
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08 connection exception, 57P0x operator intervention / shutdown
		return pqErr.Code.Class() == "08" || strings.HasPrefix(string(pqErr.Code), "57P0")
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
