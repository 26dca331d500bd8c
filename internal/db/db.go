package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDatabasePath is the default location of the encrypted database file
	DefaultDatabasePath = "./data/notewise.db"

	// MaxOpenConns is the maximum number of open connections.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns = 2

	// KeySize is the SQLCipher key size in bytes
	KeySize = 32
)

// DB wraps the encrypted sql.DB and provides the note and user stores.
type DB struct {
	db *sql.DB
}

// NewFromSQL wraps an existing sql.DB. The schema must already be applied.
func NewFromSQL(sqlDB *sql.DB) *DB {
	return &DB{db: sqlDB}
}

// DB returns the underlying sql.DB for direct access when needed
func (d *DB) DB() *sql.DB {
	return d.db
}

// Notes returns the note store backed by this database.
func (d *DB) Notes() *NoteStore {
	return &NoteStore{db: d.db}
}

// Users returns the user store backed by this database.
func (d *DB) Users() *UserStore {
	return &UserStore{db: d.db}
}

// Open opens (creating if needed) the encrypted database at path.
//
// Parameters:
//   - path: database file path; the parent directory is created
//   - key: the 32-byte SQLCipher key
//
// Returns:
//   - *DB: Database wrapper with the schema applied
//   - error: Any error encountered during initialization
func Open(path string, key []byte) (*DB, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("database key must be exactly %d bytes, got %d", KeySize, len(key))
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hex.EncodeToString(key))
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	return initialize(sqlDB)
}

// OpenInMemory opens an encrypted in-memory database named name. Connections
// share one database for as long as at least one of them stays open.
func OpenInMemory(name string, key []byte) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_foreign_keys=on", name, hex.EncodeToString(key))

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Shared-cache memory databases report SQLITE_LOCKED instead of waiting
	// on busy_timeout, so serialize all access through one connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return initialize(sqlDB)
}

func initialize(sqlDB *sql.DB) (*DB, error) {
	// If the encryption key is wrong, this is the first statement to fail
	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return NewFromSQL(sqlDB), nil
}

// Ping verifies the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction, committing if fn returns nil.
func withTx(ctx context.Context, sqlDB *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqliteCommonParams() string {
	// Production-safe defaults: WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
