package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// constraint names the repos match on when mapping pg errors to domain
// errors; they must stay in sync with the schema bootstrap.
const (
	constraintCode       = "reservations_code_uniq"
	constraintActivePair = "reservations_event_user_active_uniq"
)

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func uniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// serialization failures and deadlocks are retriable: the loser of a row
// lock race can simply run the transaction again.
func isRetriableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
