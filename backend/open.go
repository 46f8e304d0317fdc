package backend

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" database/sql driver

	"github.com/vippsas/kqlcore/sqlgen"
)

// Open dials a *sql.DB for dialect and dsn, selecting the registered
// database/sql driver name the way config.DatabaseConfig's dialect field
// names it ("postgres" -> pgx stdlib, "mssql" -> go-mssqldb), and wraps it
// as an execcore.Backend with New.
func Open(dialect sqlgen.Dialect, dsn string) (*SQLBackend, *sql.DB, error) {
	driverName, err := driverNameFor(dialect)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("backend: open %s: %w", driverName, err)
	}
	return New(db, dialect), db, nil
}

// ParseDialect maps the config surface's "postgres"/"mssql" strings onto
// sqlgen.Dialect.
func ParseDialect(name string) (sqlgen.Dialect, error) {
	switch name {
	case "postgres", "pgx", "postgresql":
		return sqlgen.Postgres, nil
	case "mssql", "sqlserver":
		return sqlgen.MSSQL, nil
	default:
		return 0, fmt.Errorf("backend: unknown dialect %q", name)
	}
}

func driverNameFor(dialect sqlgen.Dialect) (string, error) {
	switch dialect {
	case sqlgen.Postgres:
		return "pgx", nil
	case sqlgen.MSSQL:
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("backend: unknown dialect %v", dialect)
	}
}
