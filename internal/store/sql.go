package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/livetemplate/listingkit"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores.
// Both dialects accept INSERT ... ON CONFLICT DO UPDATE.
type sqlStore struct {
	name  string
	db    *sql.DB
	table string
	// placeholder returns the bind marker for the nth (1-based) argument.
	placeholder func(n int) string
	now         func() time.Time
}

func (s *sqlStore) Name() string {
	return s.name
}

func (s *sqlStore) createTable(ctx context.Context, bodyType string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		template TEXT NOT NULL DEFAULT '',
		body %s NOT NULL,
		updated_at BIGINT NOT NULL
	)`, s.table, bodyType)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return &Error{Store: s.name, Operation: "create table", Err: err}
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]Summary, error) {
	query := fmt.Sprintf("SELECT id, name, template, updated_at FROM %s ORDER BY updated_at DESC, id", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &Error{Store: s.name, Operation: "list", Err: err}
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var updated int64
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Template, &updated); err != nil {
			return nil, &Error{Store: s.name, Operation: "list", Err: err}
		}
		sum.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Store: s.name, Operation: "list", Err: err}
	}
	return out, nil
}

func (s *sqlStore) Get(ctx context.Context, id string) (*listingkit.Document, error) {
	if err := checkID(s.name, "get", id); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT body FROM %s WHERE id = %s", s.table, s.placeholder(1))
	var body string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &Error{Store: s.name, Operation: "get", ID: id, Err: err}
	}
	doc, err := decode([]byte(body))
	if err != nil {
		return nil, &Error{Store: s.name, Operation: "get", ID: id, Err: err}
	}
	return doc, nil
}

func (s *sqlStore) Put(ctx context.Context, id string, doc *listingkit.Document) error {
	if err := checkID(s.name, "put", id); err != nil {
		return err
	}
	body, err := doc.Marshal()
	if err != nil {
		return &Error{Store: s.name, Operation: "put", ID: id, Err: err}
	}
	p := s.placeholder
	query := fmt.Sprintf(`INSERT INTO %s (id, name, template, body, updated_at) VALUES (%s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, template = excluded.template,
		body = excluded.body, updated_at = excluded.updated_at`,
		s.table, p(1), p(2), p(3), p(4), p(5))
	_, err = s.db.ExecContext(ctx, query, id, doc.Name(), doc.Template(), string(body), s.now().UnixNano())
	if err != nil {
		return &Error{Store: s.name, Operation: "put", ID: id, Err: err}
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	if err := checkID(s.name, "delete", id); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = %s", s.table, s.placeholder(1))
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return &Error{Store: s.name, Operation: "delete", ID: id, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// isValidIdentifier guards table names that are interpolated into SQL.
func isValidIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, c := range name {
		if i == 0 {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_') {
				return false
			}
		} else {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
				return false
			}
		}
	}
	return true
}
