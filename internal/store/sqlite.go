package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps documents in a single SQLite table.
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path, table string) (*SQLiteStore, error) {
	if !isValidIdentifier(table) {
		return nil, fmt.Errorf("sqlite store: invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: failed to connect: %w", err)
	}

	s := &SQLiteStore{
		sqlStore: sqlStore{
			name:        "sqlite",
			db:          db,
			table:       table,
			placeholder: func(int) string { return "?" },
			now:         time.Now,
		},
		path: path,
	}
	if err := s.createTable(ctx, "TEXT"); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}
