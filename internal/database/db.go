package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // Sites hosted on MySQL/MariaDB
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Default PostgreSQL store
	"github.com/rs/zerolog/log"
)

// Driver names understood by New
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DriverFor picks the SQL driver from the connection URL scheme
func DriverFor(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgres") {
		return DriverPostgres
	}
	return DriverMySQL
}

// New creates a new database connection (supports both MySQL and PostgreSQL)
func New(databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	driver := DriverFor(databaseURL)

	db, err := sqlx.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func beginReadOnly(ctx context.Context, db *sqlx.DB) (*sqlx.Tx, error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	return tx, nil
}

// rollback ends a read-only transaction; it is never committed
func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		log.Warn().Err(err).Msg("Error rolling back read-only transaction")
	}
}

// ExecuteReadOnlyQuery executes a query within a read-only transaction and scans all rows into dest
func ExecuteReadOnlyQuery(ctx context.Context, db *sqlx.DB, dest interface{}, query string, args ...interface{}) error {
	tx, err := beginReadOnly(ctx, db)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if err := tx.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("failed to execute read-only query: %w", err)
	}

	return nil
}

// ExecuteReadOnlyQuerySingle executes a single-row query within a read-only transaction
func ExecuteReadOnlyQuerySingle(ctx context.Context, db *sqlx.DB, dest interface{}, query string, args ...interface{}) error {
	tx, err := beginReadOnly(ctx, db)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if err := tx.GetContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("failed to execute read-only query: %w", err)
	}

	return nil
}

// ExecuteReadOnlyPing executes a ping within a read-only transaction
func ExecuteReadOnlyPing(ctx context.Context, db *sqlx.DB) error {
	tx, err := beginReadOnly(ctx, db)
	if err != nil {
		return err
	}
	defer rollback(tx)

	var result int
	if err := tx.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("failed to execute read-only ping query: %w", err)
	}

	return nil
}
