package migration

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"bad connection", fmt.Errorf("query: %w", driver.ErrBadConn), ErrConnection},
		{"deadline", context.DeadlineExceeded, ErrConnection},
		{"connection failure class", &pq.Error{Code: "08006"}, ErrConnection},
		{"admin shutdown", &pq.Error{Code: "57P01"}, ErrConnection},
		{"undefined column stays unclassified", &pq.Error{Code: "42703"}, nil},
		{"already classified passes through", schemaErr("users", "missing"), ErrSchemaAssumption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(classify("users", tt.err)))
		})
	}
	assert.Nil(t, classify("users", nil))
}

func TestError_MatchesKindAndCause(t *testing.T) {
	cause := &pq.Error{Code: "08006", Message: "terminated"}
	err := classify("patients", cause)

	assert.True(t, errors.Is(err, ErrConnection))
	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
	assert.Contains(t, err.Error(), "connection error on patients")
}

func TestIntegrityErr_Message(t *testing.T) {
	err := integrityErr("invoices", Counts{Table: "invoices", Column: "clinic_id", Total: 10, NonNull: 8, Valid: 7})

	assert.True(t, errors.Is(err, ErrDataIntegrity))
	assert.Equal(t, "data integrity violation on invoices: 3 of 10 rows lack a valid clinic_id (2 null, 1 orphaned)", err.Error())
}
