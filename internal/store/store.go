// Package store persists listing documents in a directory of JSON files,
// SQLite or PostgreSQL, with an optional in-memory read cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/cache"
	"github.com/livetemplate/listingkit/internal/config"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("document not found")

// Summary describes a stored document without its tree.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Template  string    `json:"template"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a document repository.
type Store interface {
	// Name identifies the backend in logs and errors.
	Name() string
	// List returns summaries, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id string) (*listingkit.Document, error)
	// Put creates or replaces the document stored under id.
	Put(ctx context.Context, id string, doc *listingkit.Document) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Error wraps a backend failure with the operation and document id.
type Error struct {
	Store     string
	Operation string
	ID        string
	Err       error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("store %q: %s %q failed: %v", e.Store, e.Operation, e.ID, e.Err)
	}
	return fmt.Sprintf("store %q: %s failed: %v", e.Store, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewID returns a fresh document id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is safe to use as a file name or key:
// 1-64 characters of letters, digits, '-' and '_', not starting with '-'.
func ValidID(id string) bool {
	if id == "" || len(id) > 64 || id[0] == '-' {
		return false
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return false
		}
	}
	return true
}

func checkID(store, op, id string) error {
	if !ValidID(id) {
		return &Error{Store: store, Operation: op, ID: id, Err: errors.New("invalid document id")}
	}
	return nil
}

// decode parses a stored document. Validation problems are tolerated so
// that a document saved mid-edit can still be opened.
func decode(data []byte) (*listingkit.Document, error) {
	doc, err := listingkit.ParseDocument(data)
	if doc != nil {
		return doc, nil
	}
	return nil, err
}

func summarize(id string, doc *listingkit.Document, updated time.Time) Summary {
	return Summary{ID: id, Name: doc.Name(), Template: doc.Template(), UpdatedAt: updated}
}

// New opens the backend selected by cfg. A positive cache_ttl wraps it in
// a CachedStore.
func New(cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	var (
		s   Store
		err error
	)
	switch cfg.GetType() {
	case "file":
		s, err = NewFileStore(cfg.GetPath(), logger)
	case "sqlite":
		s, err = NewSQLiteStore(cfg.GetPath(), cfg.GetTable())
	case "postgres":
		s, err = NewPostgresStore(cfg.GetDSN(), cfg.GetTable())
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if ttl := cfg.GetCacheTTL(); ttl > 0 {
		return NewCachedStore(s, cache.NewMemoryCache(), ttl, logger), nil
	}
	return s, nil
}
