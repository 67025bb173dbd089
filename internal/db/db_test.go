package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Test Fixtures and Helpers

// newSourceDB creates a file-backed SQLite database standing in for the
// point-of-sale source. Each task opens its own connection, so an
// in-memory database would appear empty.
func newSourceDB(t *testing.T) (Config, *sql.DB) {
	t.Helper()

	config := Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "pos.db"),
	}

	seed, err := sql.Open(DriverSQLite, config.DSN)
	if err != nil {
		t.Fatalf("failed to create source database: %v", err)
	}
	t.Cleanup(func() {
		seed.Close()
	})

	if _, err := seed.Exec(sourceSchema); err != nil {
		t.Fatalf("failed to initialize source schema: %v", err)
	}

	return config, seed
}

const sourceSchema = `
CREATE TABLE acc_users (id TEXT, pass TEXT);
CREATE TABLE tb_item_master (itemcode TEXT, itemname TEXT, category TEXT, rate REAL);
CREATE TABLE dine_bill (
	billno REAL,
	"date" DATE,
	"time" DATETIME,
	"user" TEXT,
	amount REAL,
	creditcard TEXT,
	colnstatus TEXT
);
CREATE TABLE dine_kot_sales_detail (slno REAL, billno REAL, item TEXT, qty REAL, rate REAL);
`

// Connection Tests

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		dsn     string
		wantErr bool
	}{
		{
			name:   "sqlite in-memory",
			driver: DriverSQLite,
			dsn:    ":memory:",
		},
		{
			name:    "invalid driver",
			driver:  "invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := Open(context.Background(), tt.driver, tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer db.Close()

			if db.Driver() != tt.driver {
				t.Errorf("driver = %q, want %q", db.Driver(), tt.driver)
			}
		})
	}
}

func TestOpenWithConfig(t *testing.T) {
	db, err := OpenWithConfig(context.Background(), Config{
		Driver:         DriverSQLite,
		DSN:            ":memory:",
		ConnectTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if stats := db.Stats(); stats.MaxOpenConnections != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", stats.MaxOpenConnections)
	}
}

func TestOpenWithConfig_ConnectionError(t *testing.T) {
	_, err := OpenWithConfig(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "missing", "pos.db") + "?mode=ro",
	})
	if err == nil {
		t.Fatal("expected connection error, got nil")
	}
	if !IsConnection(err) {
		t.Errorf("expected IsConnection(err) = true, got false: %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if err := db.Ping(); err == nil {
		t.Error("expected Ping to fail after Close")
	}
}

func TestConnectionString(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "odbc with credentials",
			config: Config{Driver: DriverODBC, DSN: "POSDATA", Username: "sync", Password: "secret"},
			want:   "DSN=POSDATA;UID=sync;PWD=secret",
		},
		{
			name:   "odbc without credentials",
			config: Config{Driver: DriverODBC, DSN: "POSDATA"},
			want:   "DSN=POSDATA",
		},
		{
			name:   "sqlite path",
			config: Config{Driver: DriverSQLite, DSN: "/var/pos.db", Username: "ignored"},
			want:   "/var/pos.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.ConnectionString(); got != tt.want {
				t.Errorf("ConnectionString() = %q, want %q", got, tt.want)
			}
		})
	}
}
