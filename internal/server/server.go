// Package server serves listing previews, the live editor, placeholder
// images and the document REST API.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/assets"
	"github.com/livetemplate/listingkit/internal/config"
	"github.com/livetemplate/listingkit/internal/generate"
	"github.com/livetemplate/listingkit/internal/placeholder"
	"github.com/livetemplate/listingkit/internal/session"
	"github.com/livetemplate/listingkit/internal/store"
)

// ownWriteWindow is how long watcher events for a document the server just
// saved are ignored.
const ownWriteWindow = 2 * time.Second

// Server is the listingkit HTTP server.
type Server struct {
	config    *config.Config
	store     store.Store
	sessions  *session.Manager
	generator *generate.Service
	logger    *zap.Logger

	handler http.Handler
	api     *APIHandler

	connMu sync.RWMutex
	conns  map[string]*wsConn // session id -> connection

	writeMu   sync.Mutex
	ownWrites map[string]time.Time

	watcher     *Watcher
	stopLimiter context.CancelFunc
	limiterDone <-chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithGenerator enables POST /api/generate.
func WithGenerator(g *generate.Service) Option {
	return func(s *Server) { s.generator = g }
}

// WithLogger sets the server logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server over st. Call Close to release the rate limiter and
// the watcher; the store is owned by the caller.
func New(cfg *config.Config, st store.Store, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		config:    cfg,
		store:     st,
		logger:    zap.NewNop(),
		conns:     make(map[string]*wsConn),
		ownWrites: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.sessions = session.NewManager(s.logger.Named("session"))
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveIndex)
	mux.HandleFunc("GET /d/{id}", s.servePreview)
	mux.HandleFunc("GET /d/{id}/edit", s.serveEditor)
	mux.HandleFunc("GET /ws", s.serveWebSocket)
	mux.HandleFunc("GET /assets/{name}", s.serveAsset)
	mux.HandleFunc("GET /placeholder/{size}", s.servePlaceholder)

	if s.config.IsAPIEnabled() {
		apiCfg := s.config.API
		s.api = NewAPIHandler(s.store, s.generator, s, s.logger.Named("api"))

		ctx, cancel := context.WithCancel(context.Background())
		limit, done := RateLimitMiddleware(ctx, apiCfg.GetRateLimitRPS(), apiCfg.GetRateLimitBurst(), 0, s.logger)
		s.stopLimiter, s.limiterDone = cancel, done

		var authHeader string
		if apiCfg.Auth != nil {
			authHeader = apiCfg.Auth.GetHeaderName()
		}
		mux.Handle("/api/", Chain(s.api,
			CORSMiddleware(apiCfg.GetCORSOrigins(), authHeader),
			limit,
			AuthMiddleware(apiCfg.Auth),
		))
	}

	return Chain(mux, SecurityHeadersMiddleware(), CompressionMiddleware)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions returns the open session registry.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Close stops background work and closes open sessions.
func (s *Server) Close() error {
	err := s.StopWatch()

	s.connMu.Lock()
	for _, c := range s.conns {
		c.conn.Close()
	}
	s.connMu.Unlock()
	s.sessions.CloseAll()

	if s.stopLimiter != nil {
		s.stopLimiter()
		<-s.limiterDone
	}
	return err
}

type indexEntry struct {
	store.Summary
	Editable bool
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		http.Error(w, "could not list documents", http.StatusInternalServerError)
		return
	}
	entries := make([]indexEntry, len(summaries))
	for i, sum := range summaries {
		entries[i] = indexEntry{Summary: sum, Editable: s.config.Features.Editing}
	}
	s.writePage(w, indexTemplate, map[string]interface{}{
		"Title":     s.title(),
		"Documents": entries,
		"Store":     s.store.Name(),
	})
}

func (s *Server) servePreview(w http.ResponseWriter, r *http.Request) {
	s.serveDocument(w, r, false)
}

func (s *Server) serveEditor(w http.ResponseWriter, r *http.Request) {
	if !s.config.Features.Editing {
		http.NotFound(w, r)
		return
	}
	s.serveDocument(w, r, true)
}

func (s *Server) serveDocument(w http.ResponseWriter, r *http.Request, editing bool) {
	id := r.PathValue("id")
	doc, ok := s.loadDocument(w, r, id)
	if !ok {
		return
	}

	// The first paint is rendered here so the page works before the
	// websocket connects.
	sess := session.New("", id, doc, editing, s.logger)
	defer sess.Close()

	var (
		body     template.HTML
		problems []listingkit.Problem
	)
	up, err := sess.Render()
	switch {
	case err == nil:
		body = template.HTML(up.HTML)
		problems = up.Problems
	case errors.Is(err, listingkit.ErrCannotRender):
		problems = []listingkit.Problem{{Path: "component", Message: err.Error(), Severity: listingkit.SeverityError}}
	default:
		s.logger.Error("render failed", zap.String("doc", id), zap.Error(err))
		http.Error(w, "could not render document", http.StatusInternalServerError)
		return
	}

	name := doc.Name()
	if name == "" {
		name = id
	}
	s.writePage(w, documentTemplate, map[string]interface{}{
		"Title":          name,
		"DocID":          id,
		"Template":       doc.Template(),
		"Editing":        editing,
		"EditingEnabled": s.config.Features.Editing,
		"Body":           body,
		"Problems":       problems,
	})
}

// loadDocument writes the error response itself when it returns false.
func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request, id string) (*listingkit.Document, bool) {
	if !store.ValidID(id) {
		http.Error(w, "invalid document id", http.StatusBadRequest)
		return nil, false
	}
	doc, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		s.logger.Error("load document failed", zap.String("doc", id), zap.Error(err))
		http.Error(w, "could not load document", http.StatusInternalServerError)
		return nil, false
	}
	return doc, true
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	a, ok := assets.Lookup(r.PathValue("name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(a.Data)
}

func (s *Server) servePlaceholder(w http.ResponseWriter, r *http.Request) {
	width, height, err := placeholder.ParseSize(r.PathValue("size"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	svg := placeholder.SVG(width, height, q.Get("label"), q.Get("bg"), q.Get("fg"))

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write([]byte(svg))
}

func (s *Server) writePage(w http.ResponseWriter, t *template.Template, data map[string]interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		s.logger.Error("page template failed", zap.String("template", t.Name()), zap.Error(err))
	}
}

func (s *Server) title() string {
	if s.config.Title != "" {
		return s.config.Title
	}
	return "listingkit"
}

// saveDocument persists doc and remembers the write so the watcher does not
// echo it back to the sessions that produced it.
func (s *Server) saveDocument(ctx context.Context, id string, doc *listingkit.Document) error {
	s.writeMu.Lock()
	s.ownWrites[id] = time.Now()
	s.writeMu.Unlock()
	return s.store.Put(ctx, id, doc)
}

func (s *Server) recentlyWritten(id string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	at, ok := s.ownWrites[id]
	if !ok {
		return false
	}
	if time.Since(at) > ownWriteWindow {
		delete(s.ownWrites, id)
		return false
	}
	return true
}

// BroadcastDocument swaps doc into every open session on id except skip
// and sends each a fresh render.
func (s *Server) BroadcastDocument(id string, doc *listingkit.Document, skip string) {
	s.connMu.RLock()
	var targets []*wsConn
	for sid, c := range s.conns {
		if c.session.DocID == id && sid != skip {
			targets = append(targets, c)
		}
	}
	s.connMu.RUnlock()

	if len(targets) == 0 {
		return
	}
	s.logger.Debug("broadcasting document", zap.String("doc", id), zap.Int("sessions", len(targets)))
	for _, c := range targets {
		c.session.Replace(doc)
		c.sendRender(c.session.Render())
	}
}

// BroadcastDeleted tells every open session on id that it is gone.
func (s *Server) BroadcastDeleted(id string) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	for _, c := range s.conns {
		if c.session.DocID == id {
			c.send(serverMessage{Type: "deleted"})
		}
	}
}

// reloadDocument re-reads id from the store and broadcasts it.
func (s *Server) reloadDocument(ctx context.Context, id string) error {
	if cached, ok := s.store.(*store.CachedStore); ok {
		cached.Invalidate(id)
	}
	doc, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.BroadcastDeleted(id)
		return nil
	}
	if err != nil {
		return err
	}
	s.BroadcastDocument(id, doc, "")
	return nil
}

// EnableWatch watches the file store directory and pushes external edits
// to open sessions. It is an error for other storage backends.
func (s *Server) EnableWatch() error {
	st := s.store
	if cached, ok := st.(*store.CachedStore); ok {
		st = cached.Inner()
	}
	fs, ok := st.(*store.FileStore)
	if !ok {
		return fmt.Errorf("hot reload needs the file store, not %s", s.store.Name())
	}

	watcher, err := NewWatcher(fs.Dir(), func(id string) error {
		if s.recentlyWritten(id) {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.reloadDocument(ctx, id)
	}, s.logger.Named("watcher"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()
	s.logger.Info("watching documents", zap.String("dir", fs.Dir()))
	return nil
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher == nil {
		return nil
	}
	w := s.watcher
	s.watcher = nil
	return w.Stop()
}
