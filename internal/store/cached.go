package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/cache"
)

// CachedStore serves Get from a cache using stale-while-revalidate:
// entries are fresh for half the TTL, then served stale while a background
// read refreshes them. Writes go straight through and invalidate.
type CachedStore struct {
	inner  Store
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger

	mu           sync.Mutex
	revalidating map[string]bool
	wg           sync.WaitGroup

	cancelCtx  context.Context
	cancelFunc context.CancelFunc
}

// NewCachedStore wraps inner. The cache is stopped on Close if it has a
// Stop method.
func NewCachedStore(inner Store, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CachedStore{
		inner:        inner,
		cache:        c,
		ttl:          ttl,
		logger:       logger,
		revalidating: make(map[string]bool),
		cancelCtx:    ctx,
		cancelFunc:   cancel,
	}
}

func (s *CachedStore) Name() string {
	return s.inner.Name()
}

// Inner returns the wrapped store.
func (s *CachedStore) Inner() Store {
	return s.inner
}

func (s *CachedStore) List(ctx context.Context) ([]Summary, error) {
	return s.inner.List(ctx)
}

func (s *CachedStore) Get(ctx context.Context, id string) (*listingkit.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, found, stale := s.cache.Get(id)
	if found {
		if stale {
			s.revalidate(id)
		}
		return doc, nil
	}
	return s.fetchAndCache(ctx, id)
}

func (s *CachedStore) fetchAndCache(ctx context.Context, id string) (*listingkit.Document, error) {
	doc, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.SetWithStale(id, doc, s.ttl/2, s.ttl)
	return doc, nil
}

// revalidate starts at most one background refresh per id.
func (s *CachedStore) revalidate(id string) {
	s.mu.Lock()
	if s.revalidating[id] || s.cancelCtx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.revalidating[id] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.revalidating, id)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(s.cancelCtx, 30*time.Second)
		defer cancel()

		if _, err := s.fetchAndCache(ctx, id); err != nil {
			if err == ErrNotFound {
				s.cache.Invalidate(id)
				return
			}
			if s.cancelCtx.Err() == nil {
				s.logger.Warn("background revalidation failed", zap.String("id", id), zap.Error(err))
			}
		}
	}()
}

func (s *CachedStore) Put(ctx context.Context, id string, doc *listingkit.Document) error {
	if err := s.inner.Put(ctx, id, doc); err != nil {
		return err
	}
	s.cache.Invalidate(id)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	err := s.inner.Delete(ctx, id)
	s.cache.Invalidate(id)
	return err
}

// Invalidate drops one cached document, or all of them when id is empty.
func (s *CachedStore) Invalidate(id string) {
	if id == "" {
		s.cache.InvalidateAll()
		return
	}
	s.cache.Invalidate(id)
}

// Close cancels background refreshes, waits for them, then closes the
// cache and the inner store.
func (s *CachedStore) Close() error {
	s.mu.Lock()
	s.cancelFunc()
	s.mu.Unlock()
	s.wg.Wait()
	if stopper, ok := s.cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	return s.inner.Close()
}
