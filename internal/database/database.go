// Package database holds the relational side of voltbill: the credential
// mirror (SQLite or PostgreSQL) and the local SQLite state database that
// backs CLI login sessions.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned by Open for drivers other than sqlite3 and postgres
var ErrUnsupportedDriver = errors.New("database: unsupported driver")

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	driver string
}

// Open opens a database connection for driver ("sqlite3" or "postgres")
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		db, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		return &DB{DB: db, driver: driver}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func openSQLite(path string) (*DB, error) {
	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA foreign_keys = ON", "enable foreign keys"},
		{"PRAGMA journal_mode = WAL", "enable WAL mode"},
		// Avoid "database is locked" when two CLI invocations overlap
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to %s: %w", p.what, err)
		}
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &DB{DB: db, driver: DriverSQLite}, nil
}

// New wraps an existing connection. driver selects the SQL dialect.
func New(db *sql.DB, driver string) *DB {
	return &DB{DB: db, driver: driver}
}

// Driver returns the SQL dialect of the connection
func (db *DB) Driver() string {
	return db.driver
}

// Migrate creates the database schema
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL
	);
	`
	if db.driver == DriverSQLite {
		schema += `
	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(expiry);
	`
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

const upsertCredentialSQL = `INSERT INTO users (username, password) VALUES (?, ?)
	ON CONFLICT (username) DO UPDATE SET password = excluded.password`

// UpsertCredential stores value as the password of username, replacing any
// existing row
func (db *DB) UpsertCredential(username, value string) error {
	if _, err := db.Exec(db.rebind(upsertCredentialSQL), username, value); err != nil {
		return fmt.Errorf("failed to upsert credential for %s: %w", username, err)
	}
	return nil
}

// GetCredential returns the stored value for username, or "" if there is none
func (db *DB) GetCredential(username string) (string, error) {
	var value string
	err := db.QueryRow(db.rebind(`SELECT password FROM users WHERE username = ?`), username).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// rebind converts ? placeholders to $n for postgres
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
