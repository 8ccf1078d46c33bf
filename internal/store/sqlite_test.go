package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"), "documents")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, newSQLiteTestStore(t))
}

func TestSQLiteStoreListOrder(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, s.Put(ctx, "a", testDoc("A", "")))
	require.NoError(t, s.Put(ctx, "b", testDoc("B", "")))
	require.NoError(t, s.Put(ctx, "a", testDoc("A2", "")))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "A2", list[0].Name)
	assert.Equal(t, base.Add(3*time.Minute), list[0].UpdatedAt)
	assert.Equal(t, "b", list[1].ID)
}

func TestSQLiteStoreRejectsBadTable(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"), "docs; DROP TABLE x")
	assert.Error(t, err)
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"documents", true},
		{"_docs2", true},
		{"", false},
		{"2docs", false},
		{"docs-table", false},
		{"docs;", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidIdentifier(tt.name))
		})
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	table := "listingkit_test_" + time.Now().Format("150405")
	s, err := NewPostgresStore(dsn, table)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.db.Exec("DROP TABLE IF EXISTS " + table)
		s.Close()
	})
	exerciseStore(t, s)
}

func TestPostgresStoreRequiresDSN(t *testing.T) {
	_, err := NewPostgresStore("", "documents")
	assert.ErrorContains(t, err, "DATABASE_URL")
}
