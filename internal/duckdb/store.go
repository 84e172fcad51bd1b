// Package duckdb persists the poll cycle history in DuckDB.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tinytelemetry/byod/internal/duckdb/migrate"
)

// Store manages the DuckDB database connection and provides query methods.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database.
// If dbPath is empty, an in-memory database is used.
// An optional queryTimeout can be passed; it defaults to 10s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb %q: %w", dbPath, err)
	}

	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return nil, err
	}

	qt := 10 * time.Second
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}
