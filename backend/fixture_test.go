package backend

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"github.com/vippsas/kqlcore/sqlgen"
)

// fixture opens a throwaway database for integration tests, grounded on
// sqltest/fixture.go's NewFixture/Teardown pattern (admin connection
// creates a uniquely named database, a second connection targets it, torn
// down at the end of the test), adapted to the current go.mod's drivers
// (jackc/pgx/v5/stdlib, microsoft/go-mssqldb) instead of the teacher's
// now-dropped denisenkom/go-mssqldb + lib/pq pair.
type fixture struct {
	db       *sql.DB
	admin    *sql.DB
	dbName   string
	dialect  sqlgen.Dialect
}

// newFixture requires KQLCORE_TEST_DSN and KQLCORE_TEST_DIALECT ("postgres"
// or "mssql") to be set; tests using it skip otherwise rather than failing,
// since no live database is available in an ordinary CI run.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := os.Getenv("KQLCORE_TEST_DSN")
	dialectName := os.Getenv("KQLCORE_TEST_DIALECT")
	if dsn == "" || dialectName == "" {
		t.Skip("KQLCORE_TEST_DSN / KQLCORE_TEST_DIALECT not set, skipping backend integration test")
	}
	dialect, err := ParseDialect(dialectName)
	if err != nil {
		t.Fatalf("newFixture: %s", err)
	}

	driverName, err := driverNameFor(dialect)
	if err != nil {
		t.Fatalf("newFixture: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	admin, err := sql.Open(driverName, dsn)
	if err != nil {
		t.Fatalf("newFixture: open admin connection: %s", err)
	}

	dbName := "kqlcore_test_" + strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	if _, err := admin.ExecContext(ctx, fmt.Sprintf("create database %s", dialect.QuoteIdent(dbName))); err != nil {
		admin.Close()
		t.Fatalf("newFixture: create database: %s", err)
	}

	f := &fixture{admin: admin, dbName: dbName, dialect: dialect}

	scopedDSN := scopeDSN(dsn, dialect, dbName)
	f.db, err = sql.Open(driverName, scopedDSN)
	if err != nil {
		f.Teardown()
		t.Fatalf("newFixture: open scoped connection: %s", err)
	}
	return f
}

// scopeDSN retargets dsn at the freshly created throwaway database; the
// two wired drivers accept this via a trailing "database=" parameter
// (mssql) or by replacing the path segment (postgres URL DSNs).
func scopeDSN(dsn string, dialect sqlgen.Dialect, dbName string) string {
	switch dialect {
	case sqlgen.MSSQL:
		return dsn + ";database=" + dbName
	default:
		if idx := strings.LastIndex(dsn, "/"); idx >= 0 {
			return dsn[:idx+1] + dbName
		}
		return dsn
	}
}

func (f *fixture) Teardown() {
	if f.db != nil {
		f.db.Close()
	}
	if f.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		_, _ = f.admin.ExecContext(ctx, fmt.Sprintf("drop database %s", f.dialect.QuoteIdent(f.dbName)))
		f.admin.Close()
	}
}
