package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"softdeletes/internal/core/apperror"
)

// PostgreSQL SQLSTATE codes handled explicitly.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeNotNullViolation    = "23502"
)

// MapError converts a driver error for a statement on table into an AppError.
// Errors that are already AppErrors pass through unchanged.
func MapError(err error, table string, op string) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			return apperror.NewConflict("row is referenced by other rows or references a missing row").
				WithDetail("entity", table).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case codeUniqueViolation:
			return apperror.NewConflict("duplicate key").
				WithDetail("entity", table).
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case codeNotNullViolation:
			return apperror.NewValidation("required column is null").
				WithDetail("entity", table).
				WithDetail("column", pgErr.ColumnName).
				WithCause(err)
		}
	}

	return apperror.NewDatabase(fmt.Errorf("%s %s: %w", op, table, err))
}
