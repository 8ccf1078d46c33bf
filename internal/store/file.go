package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
)

// FileStore keeps each document in {dir}/{id}.json.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("file store: failed to create %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Name returns the store identifier
func (s *FileStore) Name() string {
	return "file"
}

// Dir returns the documents directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file a document id is stored in.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// IDFromPath returns the document id for a file in the store directory.
func IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(base, ".json")
	return id, ValidID(id)
}

// List reads every *.json file. Files that cannot be parsed are skipped
// and logged.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &Error{Store: s.Name(), Operation: "list", Err: err}
	}

	var out []Summary
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		id, ok := IDFromPath(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		doc, err := s.read(id)
		if err != nil {
			s.logger.Warn("skipping unreadable document", zap.String("id", id), zap.Error(err))
			continue
		}
		out = append(out, summarize(id, doc, info.ModTime()))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get reads one document
func (s *FileStore) Get(ctx context.Context, id string) (*listingkit.Document, error) {
	if err := checkID(s.Name(), "get", id); err != nil {
		return nil, err
	}
	doc, err := s.read(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &Error{Store: s.Name(), Operation: "get", ID: id, Err: err}
	}
	return doc, nil
}

func (s *FileStore) read(id string) (*listingkit.Document, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// Put writes the document through a temp file and rename so readers never
// see a partial file.
func (s *FileStore) Put(ctx context.Context, id string, doc *listingkit.Document) error {
	if err := checkID(s.Name(), "put", id); err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return &Error{Store: s.Name(), Operation: "put", ID: id, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, "."+id+"-*.tmp")
	if err != nil {
		return &Error{Store: s.Name(), Operation: "put", ID: id, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &Error{Store: s.Name(), Operation: "put", ID: id, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &Error{Store: s.Name(), Operation: "put", ID: id, Err: err}
	}
	if err := os.Rename(tmpName, s.Path(id)); err != nil {
		os.Remove(tmpName)
		return &Error{Store: s.Name(), Operation: "put", ID: id, Err: err}
	}
	return nil
}

// Delete removes the document file
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkID(s.Name(), "delete", id); err != nil {
		return err
	}
	if err := os.Remove(s.Path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return &Error{Store: s.Name(), Operation: "delete", ID: id, Err: err}
	}
	return nil
}

// Close is a no-op for file stores
func (s *FileStore) Close() error {
	return nil
}
