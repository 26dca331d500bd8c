package db

import (
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/kuitang/notewise/internal/notes"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver with custom SQL functions.
	SQLiteDriverName = "sqlite3_notewise"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("contains_fold", sqliteContainsFold, true); err != nil {
				return fmt.Errorf("register contains_fold SQL function: %w", err)
			}
			return nil
		},
	})
}

// sqliteContainsFold reports whether needle occurs in haystack under
// notes.Fold. SQLite's lower() only folds ASCII. Arguments are taken as bytes:
// the driver reads string arguments only up to the first NUL.
func sqliteContainsFold(haystack, needle []byte) bool {
	return strings.Contains(notes.Fold(string(haystack)), notes.Fold(string(needle)))
}
