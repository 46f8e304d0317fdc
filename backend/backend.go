// Package backend implements execcore.Backend against a live
// database/sql connection, grounded on dbintf.go's DB interface shape
// (ExecContext/QueryContext/QueryRowContext/Conn/BeginTx) and
// sqltest/querydump.go's RowIteratorToSlice column/row scanning, adapted
// from "dump results for a human to read" into "return a typed result set
// to the executor facade". Two concrete dialects are wired: postgres via
// github.com/jackc/pgx/v5/stdlib and SQL Server via
// github.com/microsoft/go-mssqldb, selected explicitly by the caller
// rather than sniffed from the driver the way dbops.go's type-switch does,
// since the SQL already targets one dialect by construction (sqlgen.Dialect
// chose it at generation time).
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vippsas/kqlcore/execcore"
	"github.com/vippsas/kqlcore/sqlgen"
)

// DB is the subset of *sql.DB the backend needs, mirroring dbintf.go's
// interface so a test can substitute a *sql.DB opened against sqlmock or
// a throwaway database without the core depending on database/sql directly
// beyond this one adapter package.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ DB = &sql.DB{}

// SQLBackend adapts a DB connection to execcore.Backend for one dialect.
// Queries never exceed the deadline the executor facade derived from the
// scheduler's admitted exec deadline (spec §4.6's "execute(sql, params,
// deadline)" external interface).
type SQLBackend struct {
	db      DB
	dialect sqlgen.Dialect
}

// New wraps db for dialect. db is expected to already be open and pooled;
// New itself never dials a DSN (Open is the package's one entry point that
// does, via sql.Open).
func New(db DB, dialect sqlgen.Dialect) *SQLBackend {
	return &SQLBackend{db: db, dialect: dialect}
}

var _ execcore.Backend = (*SQLBackend)(nil)

// Execute runs sqlText with params, observing deadline, and returns the
// result set's column schema plus row-oriented data (spec §6's Backend
// interface). A zero deadline means "no deadline enforced beyond ctx".
func (b *SQLBackend) Execute(ctx context.Context, sqlText string, params []interface{}, deadline time.Time) ([]execcore.ColumnInfo, [][]interface{}, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	rows, err := b.db.QueryContext(ctx, sqlText, params...)
	if err != nil {
		return nil, nil, classify(err, sqlText, b.dialect)
	}
	defer rows.Close()

	columns, result, err := scanRows(rows)
	if err != nil {
		return nil, nil, classify(err, sqlText, b.dialect)
	}
	return columns, result, nil
}

// scanRows drains rows into column descriptors plus a row-major value
// matrix, generalizing sqltest/querydump.go's RowIteratorToSlice from a
// debug-dump helper (columns only, values left loosely typed for Println)
// into the core's typed (columns, rows) result shape.
func scanRows(rows *sql.Rows) ([]execcore.ColumnInfo, [][]interface{}, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("backend: columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil || len(types) != len(names) {
		return nil, nil, fmt.Errorf("backend: column types: %w", err)
	}

	columns := make([]execcore.ColumnInfo, len(names))
	for i, n := range names {
		columns[i] = execcore.ColumnInfo{Name: n, Type: types[i].DatabaseTypeName()}
	}

	n := len(names)
	var out [][]interface{}
	for rows.Next() {
		values := make([]interface{}, n)
		pointers := make([]interface{}, n)
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, nil, fmt.Errorf("backend: scan: %w", err)
		}
		row := make([]interface{}, n)
		for i, v := range values {
			row[i] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("backend: row iteration: %w", err)
	}
	return columns, out, nil
}

// normalizeValue turns driver-returned []byte (both drivers return text-ish
// columns as []byte rather than string) into string, matching
// sqltest/querydump.go's RowIteratorToSlice switch; everything else passes
// through unchanged.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
