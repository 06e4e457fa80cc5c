package database

import (
	stderrors "errors"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514":
		return errors.BadRequest("data validation failed: " + pqErr.Constraint)

	case "23505":
		return errors.Conflict(formatUniqueMessage(pqErr))

	case "23503":
		if strings.Contains(pqErr.Constraint, "clinic") {
			return errors.BadRequest("clinic does not exist")
		}
		return errors.BadRequest("referenced record does not exist")

	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

func formatUniqueMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		return "a record with this email already exists"
	case strings.Contains(pqErr.Constraint, "owner_clinics"):
		return "owner already has access to this clinic"
	case strings.Contains(pqErr.Constraint, "invoice_number"):
		return "an invoice with this number already exists in the clinic"
	default:
		return "a record with these values already exists"
	}
}
