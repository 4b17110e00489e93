package shared

import (
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// NewDatabase opens and pings a database using the given driver.
//
// For SQLite the path can be ":memory:" for an in-memory database; foreign keys are enabled on every connection.
// In-memory databases are pinned to a single connection since each connection would otherwise see its own database.
func NewDatabase(driver, path string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := path
	if driver == DriverSQLite {
		dsn = sqliteDSN(path)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite && strings.HasPrefix(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
//
// Zero values leave the driver defaults in place.
func ConfigureDatabase(db *sqlx.DB, maxOpenConns, maxIdleConns int) {
	if db.DriverName() == DriverSQLite && db.Stats().MaxOpenConnections == 1 {
		return
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_foreign_keys") || strings.Contains(path, "_fk=") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=on"
	}
	return path + "?_foreign_keys=on"
}
