package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"reelcraft/pkg/utils"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgCheckViolation       = "23514"
	pgUniqueViolation      = "23505"
)

// translateError maps Postgres error codes onto the ledger's error taxonomy.
// Already-typed errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", utils.ErrPersistenceConflict, pgErr.Message)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", utils.ErrInsufficientCredits, pgErr.ConstraintName)
	case pgUniqueViolation:
		if pgErr.ConstraintName == paymentRefIndex {
			return utils.ErrDuplicatePayment
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
