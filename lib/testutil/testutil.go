package testutil

import (
	"context"
	"database/sql"
	"testing"

	"campussync/internal/db"

	_ "modernc.org/sqlite"
)

type DBParams struct {
	// if unspecified, it will use `:memory:`
	DbPath string
}

// OpenDB opens a migrated sqlite database that is closed when the test ends.
func OpenDB(t testing.TB, params DBParams) *sql.DB {
	t.Helper()

	dbpath := params.DbPath
	if dbpath == "" {
		dbpath = ":memory:"
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a different database
	sqlite.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlite.Close()
	})

	err = db.Migrate(context.Background(), sqlite)
	if err != nil {
		t.Fatal(err)
	}
	return sqlite
}
