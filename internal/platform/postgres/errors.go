package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-practice/internal/store"
)

// SQLSTATE codes the stores react to.
const (
	uniqueViolationCode      = "23505"
	foreignKeyViolationCode  = "23503"
	checkViolationCode       = "23514"
	notNullViolationCode     = "23502"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// constraintDetails describes the schema constraints in terms of the
// practice domain. Names without an explicit CONSTRAINT clause are the ones
// PostgreSQL generates.
var constraintDetails = map[string]string{
	"jobs_pkey":                       "job id already used",
	"jobs_status_check":               "unknown job status",
	"jobs_progress_percent_check":     "job progress must be between 0 and 100",
	"jobs_result_iff_completed":       "only completed jobs carry a result",
	"jobs_error_iff_failed":           "only failed jobs carry an error message",
	"skill_ratings_pkey":              "learner already rated for subject",
	"practice_items_pkey":             "practice item already banked",
	"practice_items_difficulty_check": "practice item difficulty must be between 1 and 10",
	"generation_audits_job_id_fkey":   "audit references an unknown job",
}

func describeConstraint(pgErr *pgconn.PgError) string {
	if detail, ok := constraintDetails[pgErr.ConstraintName]; ok {
		return detail
	}
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	if pgErr.ColumnName != "" {
		return pgErr.TableName + "." + pgErr.ColumnName + " is required"
	}
	return pgErr.TableName
}

// MapError translates a database error into the store sentinel callers
// match on. The original error stays in the chain.
//
// Serialization failures and deadlocks map to store.ErrRatingConflict:
// skill ratings are the only rows written under FOR UPDATE locks.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %s: %w", store.ErrDuplicate, describeConstraint(pgErr), err)
	case foreignKeyViolationCode, checkViolationCode, notNullViolationCode:
		return fmt.Errorf("%w: %s: %w", store.ErrInvalidEntity, describeConstraint(pgErr), err)
	case serializationFailureCode, deadlockDetectedCode:
		return fmt.Errorf("%w: %w", store.ErrRatingConflict, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// requireRowUpdated turns a zero-row UPDATE into store.ErrNotFound.
func requireRowUpdated(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, what)
	}
	return nil
}
