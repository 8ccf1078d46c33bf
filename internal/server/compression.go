package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

var gzipPool = sync.Pool{
	New: func() interface{} { return gzip.NewWriter(io.Discard) },
}

// acceptsGzip reports whether Accept-Encoding lists gzip without q=0.
func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			continue
		}
		q := strings.ReplaceAll(params, " ", "")
		return q != "q=0" && q != "q=0.0"
	}
	return false
}

// compressWriter takes a gzip.Writer from the pool on the first write.
// 204 and 304 responses are sent as is.
type compressWriter struct {
	http.ResponseWriter
	gz      *gzip.Writer
	started bool
	plain   bool
}

func (cw *compressWriter) WriteHeader(status int) {
	if cw.started {
		return
	}
	cw.started = true
	cw.plain = status == http.StatusNoContent || status == http.StatusNotModified
	if !cw.plain {
		h := cw.ResponseWriter.Header()
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
	}
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *compressWriter) Write(p []byte) (int, error) {
	if !cw.started {
		cw.WriteHeader(http.StatusOK)
	}
	if cw.plain {
		return cw.ResponseWriter.Write(p)
	}
	return cw.encoder().Write(p)
}

func (cw *compressWriter) encoder() *gzip.Writer {
	if cw.gz == nil {
		cw.gz = gzipPool.Get().(*gzip.Writer)
		cw.gz.Reset(cw.ResponseWriter)
	}
	return cw.gz
}

func (cw *compressWriter) Flush() {
	if cw.gz != nil {
		_ = cw.gz.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// finish terminates the gzip stream. A gzip response with no body still
// gets an empty stream so clients can decode it.
func (cw *compressWriter) finish() {
	if !cw.started || cw.plain {
		return
	}
	_ = cw.encoder().Close()
	cw.gz.Reset(io.Discard)
	gzipPool.Put(cw.gz)
	cw.gz = nil
}

// CompressionMiddleware gzips responses for clients that accept it.
// Websocket upgrades and HEAD requests pass through untouched.
func CompressionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || !acceptsGzip(r) ||
			strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}
		cw := &compressWriter{ResponseWriter: w}
		defer cw.finish()
		next.ServeHTTP(cw, r)
	})
}
