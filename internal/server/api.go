package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/generate"
	"github.com/livetemplate/listingkit/internal/render"
	"github.com/livetemplate/listingkit/internal/runtime"
	"github.com/livetemplate/listingkit/internal/security"
	"github.com/livetemplate/listingkit/internal/store"
)

// maxRequestBodySize limits the size of incoming request bodies (1MB)
const maxRequestBodySize = 1 << 20

// defaultPageLimit is the default pagination limit when none is specified
const defaultPageLimit = 100

// maxVariants bounds the variants one generate request may ask for.
const maxVariants = 8

// APIHandler serves the /api/ endpoints.
type APIHandler struct {
	store     store.Store
	generator *generate.Service
	server    *Server
	logger    *zap.Logger
	mux       *http.ServeMux
}

// NewAPIHandler creates the REST API. generator may be nil, in which case
// POST /api/generate answers 503.
func NewAPIHandler(st store.Store, generator *generate.Service, srv *Server, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &APIHandler{
		store:     st,
		generator: generator,
		server:    srv,
		logger:    logger,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /api/documents", h.handleList)
	h.mux.HandleFunc("POST /api/documents", h.handleCreate)
	h.mux.HandleFunc("GET /api/documents/{id}", h.handleGet)
	h.mux.HandleFunc("PUT /api/documents/{id}", h.handlePut)
	h.mux.HandleFunc("DELETE /api/documents/{id}", h.handleDelete)
	h.mux.HandleFunc("POST /api/documents/{id}/images", h.handleImages)
	h.mux.HandleFunc("POST /api/validate", h.handleValidate)
	h.mux.HandleFunc("POST /api/fix", h.handleFix)
	h.mux.HandleFunc("POST /api/render", h.handleRender)
	h.mux.HandleFunc("POST /api/generate", h.handleGenerate)
	return h
}

// ServeHTTP implements http.Handler.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *APIHandler) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}

	limit := parseIntParam(r, "limit", defaultPageLimit)
	offset := parseIntParam(r, "offset", 0)
	total := len(summaries)
	summaries = paginate(summaries, offset, limit)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   summaries,
		"count":  len(summaries),
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func (h *APIHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		id = store.NewID()
	}
	h.save(w, r, id, http.StatusCreated)
}

func (h *APIHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, r.PathValue("id"), http.StatusOK)
}

// save stores the request body under id. Documents with validation
// problems are accepted; the problems are returned alongside.
func (h *APIHandler) save(w http.ResponseWriter, r *http.Request, id string, status int) {
	if !store.ValidID(id) {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	doc, problems, err := parseLenient(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.server.saveDocument(r.Context(), id, doc); err != nil {
		h.storeError(w, err)
		return
	}
	h.server.BroadcastDocument(id, doc, "")

	h.writeJSON(w, status, map[string]interface{}{
		"id":       id,
		"problems": problems,
	})
}

func (h *APIHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *APIHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, err)
		return
	}
	h.server.BroadcastDeleted(id)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type imagesRequest struct {
	// Uploads are the temporary URLs the editor showed while uploading.
	Uploads []string `json:"uploads"`
	// URLs are the persisted locations, paired with Uploads by position.
	URLs []string `json:"urls"`
}

func (h *APIHandler) handleImages(w http.ResponseWriter, r *http.Request) {
	var req imagesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	for _, u := range req.URLs {
		if err := security.ValidateHTTPURL(u); err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("persisted URL %q: %v", u, err))
			return
		}
	}
	mapping, err := listingkit.MapUploads(req.Uploads, req.URLs)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	updated, replaced := listingkit.ReplaceImageURLs(doc, mapping)
	if replaced > 0 {
		if err := h.server.saveDocument(r.Context(), id, updated); err != nil {
			h.storeError(w, err)
			return
		}
		h.server.BroadcastDocument(id, updated, "")
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"replaced": replaced,
		"document": updated,
	})
}

func (h *APIHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var raw interface{}
	if !h.decodeBody(w, r, &raw) {
		return
	}
	problems := listingkit.Validate(raw)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    !listingkit.HasErrors(problems),
		"problems": problems,
	})
}

func (h *APIHandler) handleFix(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if !h.decodeBody(w, r, &raw) {
		return
	}
	fixed, fixes := listingkit.Fix(raw)
	problems := listingkit.Validate(fixed)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"document": fixed,
		"fixes":    fixes,
		"valid":    !listingkit.HasErrors(problems),
		"problems": problems,
	})
}

type renderRequest struct {
	Document json.RawMessage   `json:"document"`
	State    map[string]bool   `json:"state,omitempty"`
	FormData map[string]string `json:"formData,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	Editing  bool              `json:"editing,omitempty"`
}

func (h *APIHandler) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	doc, problems, err := parseLenient(req.Document)
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if doc.Component == nil {
		h.writeError(w, http.StatusUnprocessableEntity, listingkit.ErrCannotRender.Error())
		return
	}

	ctx := runtime.NewRenderContext()
	if doc.Content != nil {
		ctx.Content = doc.Content
	}
	ctx.Images = doc.Images
	for k, v := range req.State {
		ctx.State[k] = v
	}
	for k, v := range req.FormData {
		ctx.FormData[k] = v
	}
	for k, v := range req.Errors {
		ctx.Errors[k] = v
	}

	res := render.RenderDocument(doc, ctx, render.Options{Editing: req.Editing, Logger: h.logger})
	html, err := render.RenderHTML(res.Root)
	if err != nil {
		h.logger.Error("render failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"html":     html,
		"problems": append(problems, res.Problems...),
	})
}

type generateRequest struct {
	generate.Request
	Variants int  `json:"variants,omitempty"`
	Save     bool `json:"save,omitempty"`
}

type generatedDocument struct {
	*generate.Result
	ID string `json:"id,omitempty"`
}

func (h *APIHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		h.writeError(w, http.StatusServiceUnavailable, "generation is not configured")
		return
	}
	var req generateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Variants > maxVariants {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d variants per request", maxVariants))
		return
	}

	results, err := h.generator.GenerateVariants(r.Context(), req.Request, req.Variants)
	if err != nil {
		if errors.Is(err, generate.ErrInvalidRequest) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Warn("generation failed", zap.String("kind", req.Kind), zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, generate.ErrCircuitOpen) {
			status = http.StatusServiceUnavailable
		}
		h.writeError(w, status, generate.UserFriendlyMessage(err))
		return
	}

	out := make([]generatedDocument, len(results))
	for i, res := range results {
		out[i] = generatedDocument{Result: res}
		if !req.Save {
			continue
		}
		id := store.NewID()
		if err := h.server.saveDocument(r.Context(), id, res.Document); err != nil {
			h.storeError(w, err)
			return
		}
		out[i].ID = id
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"documents": out})
}

// load reads the document named by the {id} path value, writing the error
// response itself when it returns false.
func (h *APIHandler) load(w http.ResponseWriter, r *http.Request) (*listingkit.Document, bool) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return nil, false
	}
	doc, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return nil, false
	}
	return doc, true
}

// parseLenient accepts documents with validation problems and returns the
// problems. Input that cannot be rendered at all is an error.
func parseLenient(data []byte) (*listingkit.Document, []listingkit.Problem, error) {
	doc, err := listingkit.ParseDocument(data)
	var verr *listingkit.DocumentValidationError
	switch {
	case err == nil:
		return doc, nil, nil
	case doc != nil && errors.As(err, &verr):
		return doc, verr.Errors(), nil
	default:
		return nil, nil, err
	}
}

func (h *APIHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			h.writeError(w, http.StatusBadRequest, "could not read request body")
		}
		return nil, false
	}
	return body, true
}

func (h *APIHandler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (h *APIHandler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	h.logger.Error("store operation failed", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "storage error")
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("encode response failed", zap.Error(err))
	}
}

func (h *APIHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

// paginate applies offset and limit. A non-positive limit means no limit.
func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
