package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/dispensary-backend/pkg/errors"
)

// PostgreSQL error codes handled by the service
const (
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no user-facing meaning.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		return mapForeignKey(pqErr)

	case codeNotNullViolation:
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

// IsRetryable reports whether err is a serialization failure or deadlock.
// A transaction that failed this way left no effect and may be rerun.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// IsForeignKeyViolation reports whether err violates a foreign key. Delete
// guards use it to detect rows that are still referenced.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "current_quantity"):
		return errors.Validation(map[string]string{
			"current_quantity": "must not be negative",
		})

	case strings.Contains(constraint, "min_alert_quantity"):
		return errors.Validation(map[string]string{
			"min_alert_quantity": "must not be negative",
		})

	case strings.Contains(constraint, "prescribed_quantity"):
		return errors.Validation(map[string]string{
			"prescribed_quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "dispensations_quantity"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: pending, partially_dispensed, fully_dispensed, cancelled",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapForeignKey covers inserts and updates. Deletes of referenced rows are
// turned into conflicts by the repositories, which know the statement.
func mapForeignKey(pqErr *pq.Error) *errors.AppError {
	switch {
	case strings.Contains(pqErr.Constraint, "stock_entry_id_fkey"):
		return errors.BadRequest("stock entry does not exist")
	case strings.Contains(pqErr.Constraint, "visit_id_fkey"):
		return errors.BadRequest("visit does not exist")
	default:
		return errors.BadRequest("referenced record does not exist")
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "stock_entries_lot"):
		return "a stock entry for this medication, health post and lot already exists"
	default:
		return "a record with these values already exists"
	}
}
