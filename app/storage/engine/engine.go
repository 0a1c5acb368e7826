// Package engine provides a unified database access layer over sqlite and postgres.
// Each store gets a shared *SQL with a group id (gid) allowing multiple guarded
// deployments to share one database.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver loaded here
	_ "modernc.org/sqlite" // sqlite driver loaded here
)

// Type is a type of database engine
type Type string

// enum of supported database engines
const (
	Unknown  Type = ""
	Sqlite   Type = "sqlite"
	Postgres Type = "postgres"
)

// SQL is a wrapper for sqlx.DB with type.
// Type allows distinguishing between different database engines.
type SQL struct {
	sqlx.DB
	gid    string // group id, to allow per-group storage in the same database
	dbType Type   // type of the database engine
}

// NewSqlite creates a new sqlite database
func NewSqlite(file, gid string) (*SQL, error) {
	// _time_format=sqlite makes the driver store time.Time in a format
	// sqlite's date functions (strftime etc.) can parse
	dsn := file
	if !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return &SQL{}, err
	}
	return &SQL{DB: *db, gid: gid, dbType: Sqlite}, nil
}

// NewPostgres creates a new postgres connection for the given url
func NewPostgres(url, gid string) (*SQL, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return &SQL{}, err
	}
	return &SQL{DB: *db, gid: gid, dbType: Postgres}, nil
}

// GID returns the group id
func (e *SQL) GID() string {
	return e.gid
}

// Type returns the database engine type
func (e *SQL) Type() Type {
	return e.dbType
}

// MakeLock creates a new lock for the database engine
func (e *SQL) MakeLock() RWLocker {
	if e.dbType == Sqlite {
		return new(sync.RWMutex) // sqlite needs locking
	}
	return &NoopLocker{} // other engines don't need locking
}

// InitTable creates the table with the given schema if it doesn't exist yet,
// in a single transaction.
func InitTable(ctx context.Context, db *SQL, tableName, schema string) error {
	if db == nil {
		return fmt.Errorf("db connection is nil")
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	existsQuery := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if db.dbType == Postgres {
		existsQuery = "SELECT COUNT(*) FROM information_schema.tables WHERE table_name=$1"
	}

	var exists int
	if err = tx.GetContext(ctx, &exists, existsQuery, tableName); err != nil {
		return fmt.Errorf("failed to check for %s table existence: %w", tableName, err)
	}

	if exists == 0 {
		if _, err = tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema for %s: %w", tableName, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
