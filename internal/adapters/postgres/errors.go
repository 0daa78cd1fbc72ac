package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// PostgreSQL error codes the engine reacts to
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
)

// mapError translates driver errors into domain errors. Domain errors pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return domain.WrapError(domain.ErrorCodeConcurrentModification, domain.ErrConcurrentModification.Message, err)
		case pgUniqueViolation:
			return domain.WrapError(domain.ErrorCodeDuplicateTransaction, domain.ErrDuplicateTransaction.Message, err).
				WithDetail("constraint", pgErr.ConstraintName)
		}
	}

	return domain.WrapError(domain.ErrorCodeDatabaseError, domain.ErrDatabaseError.Message, err)
}

// notFound maps pgx.ErrNoRows to the given sentinel
func notFound(err error, sentinel *domain.DomainError) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return mapError(err)
}
