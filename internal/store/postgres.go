package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore keeps documents in a PostgreSQL table. The body column is
// JSONB so documents can be queried in place.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects with dsn and creates the table if needed.
func NewPostgresStore(dsn, table string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: database connection required (set storage.dsn or DATABASE_URL env)")
	}
	if !isValidIdentifier(table) {
		return nil, fmt.Errorf("postgres store: invalid table name %q", table)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres store: failed to connect: %w", err)
	}

	s := &PostgresStore{sqlStore: sqlStore{
		name:        "postgres",
		db:          db,
		table:       table,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		now:         time.Now,
	}}
	if err := s.createTable(ctx, "JSONB"); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
