// Package testdb opens isolated in-memory databases for tests.
package testdb

import (
	"bytes"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/kuitang/notewise/internal/db"
)

// Key is the fixed SQLCipher key used by every in-memory test database.
var Key = bytes.Repeat([]byte{0x42}, db.KeySize)

// Cleaner is satisfied by *testing.T and *testing.B. *rapid.T has no Cleanup,
// so rapid tests call New and defer Close themselves.
type Cleaner interface {
	Helper()
	Fatalf(format string, args ...any)
	Cleanup(func())
}

// New creates a fresh encrypted in-memory database with the schema applied.
// Each call gets its own database name, so tests never share state.
func New() (*db.DB, error) {
	name := "notewise-test-" + uuid.NewString()

	database, err := db.OpenInMemory(name, Key)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	if err := applyFastSQLitePragmas(database.DB()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply fast SQLite pragmas: %w", err)
	}
	return database, nil
}

// MustNew is New for tests, closing the database on cleanup.
func MustNew(t Cleaner) *db.DB {
	t.Helper()
	database, err := New()
	if err != nil {
		t.Fatalf("testdb: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func applyFastSQLitePragmas(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=MEMORY",
		"PRAGMA synchronous=OFF",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA secure_delete=OFF",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return err
		}
	}
	return nil
}
