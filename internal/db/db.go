// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver names registered by the imports above.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the database and verifies the connection with a ping.
func Open(driver, dsn string) (*sql.DB, error) {
	log.Println("DB_DRIVER:", driver)
	log.Println("DB_HOST:", hostOf(dsn))

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer at a time; sqlite returns SQLITE_BUSY otherwise
		conn.SetMaxOpenConns(1)
	}

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	log.Println("✅ Connected to database")
	return conn, nil
}

// hostOf keeps credentials out of the log.
func hostOf(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		if strings.Contains(dsn, "://") {
			return "(unknown)"
		}
		return dsn
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
