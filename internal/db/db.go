// Package db opens source database connections and streams table rows
// as records.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported drivers. The ODBC driver is registered by the binary; sqlite3
// reads a local replica of the source tables.
const (
	DriverODBC   = "odbc"
	DriverSQLite = "sqlite3"
)

// DB wraps sql.DB with additional context
type DB struct {
	*sql.DB
	driver string
}

// Config holds source database connection settings
type Config struct {
	Driver         string        `toml:"driver"`
	DSN            string        `toml:"dsn"`
	Username       string        `toml:"username"`
	Password       string        `toml:"password"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

// ConnectionString returns the driver-specific data source string. ODBC
// data sources take the DSN name plus credentials.
func (c Config) ConnectionString() string {
	if c.Driver != DriverODBC {
		return c.DSN
	}

	parts := []string{"DSN=" + c.DSN}
	if c.Username != "" {
		parts = append(parts, "UID="+c.Username)
	}
	if c.Password != "" {
		parts = append(parts, "PWD="+c.Password)
	}
	return strings.Join(parts, ";")
}

// ConnectionError reports a failure to open or authenticate a connection
type ConnectionError struct {
	DSN string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to DSN %s: %v", e.DSN, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnection checks if err is a connection failure
func IsConnection(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// Open creates a new database connection and verifies it with a ping
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{
		DB:     db,
		driver: driver,
	}, nil
}

// OpenWithConfig opens a single-connection handle for one sync task.
// Failures are returned as *ConnectionError.
func OpenWithConfig(ctx context.Context, config Config) (*DB, error) {
	if config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.ConnectTimeout)
		defer cancel()
	}

	db, err := Open(ctx, config.Driver, config.ConnectionString())
	if err != nil {
		return nil, &ConnectionError{DSN: config.DSN, Err: err}
	}

	// One task reads one cursor; a second pooled connection is never needed
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// Driver returns the database driver name
func (db *DB) Driver() string {
	return db.driver
}
