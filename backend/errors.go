package backend

import (
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vippsas/kqlcore/sqlgen"
)

// Error is the backend diagnostic kind's payload (spec §7's "backend"
// kind): the originating SQL and dialect plus the driver's own message,
// generalizing error.go/mssql_error.go's SQLUserError (which wraps
// mssql.Error with Batch position context from a deployed stored
// procedure) to any backend-reported failure for an ad hoc query rather
// than a deployed batch.
type Error struct {
	SQL     string
	Dialect sqlgen.Dialect
	Wrapped error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s", e.Wrapped)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// classify wraps a driver error into an *Error, pulling out the vendor
// error message for the two wired dialects (mssql.Error, pgconn.PgError)
// the same way error.go/mssql_error.go distinguish driver error shapes by
// type, rather than string-matching the error text.
func classify(err error, sqlText string, dialect sqlgen.Dialect) error {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return &Error{SQL: sqlText, Dialect: dialect, Wrapped: fmt.Errorf("%s (code %d)", msErr.Message, msErr.Number)}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{SQL: sqlText, Dialect: dialect, Wrapped: fmt.Errorf("%s (%s)", pgErr.Message, pgErr.Code)}
	}
	return &Error{SQL: sqlText, Dialect: dialect, Wrapped: err}
}
