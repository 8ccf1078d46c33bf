package server

import (
	"container/list"
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaxClients   = 10000
	clientIdleTimeout   = 10 * time.Minute
	clientSweepInterval = 5 * time.Minute
	evictionLogInterval = 30 * time.Second
)

type clientEntry struct {
	ip       string
	bucket   *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address, bounded by an
// LRU list. The front of order is the most recently seen client.
type clientLimiter struct {
	rps    rate.Limit
	burst  int
	max    int
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*list.Element
	order   *list.List

	evicted      int
	lastEvictLog time.Time
}

func newClientLimiter(rps float64, burst, max int, logger *zap.Logger) *clientLimiter {
	if max <= 0 {
		max = defaultMaxClients
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clientLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		max:     max,
		logger:  logger,
		clients: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// allow takes a token from ip's bucket, creating the bucket on first use.
func (l *clientLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.clients[ip]; ok {
		l.order.MoveToFront(elem)
		entry := elem.Value.(*clientEntry)
		entry.lastSeen = now
		return entry.bucket.AllowN(now, 1)
	}

	if l.order.Len() >= l.max {
		l.evictOldest(now)
	}
	entry := &clientEntry{ip: ip, bucket: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.clients[ip] = l.order.PushFront(entry)
	return entry.bucket.AllowN(now, 1)
}

// evictOldest drops the least recently seen client. Evictions are logged in
// batches so a flood of new addresses does not flood the log.
func (l *clientLimiter) evictOldest(now time.Time) {
	back := l.order.Back()
	if back == nil {
		return
	}
	l.order.Remove(back)
	delete(l.clients, back.Value.(*clientEntry).ip)

	l.evicted++
	if now.Sub(l.lastEvictLog) >= evictionLogInterval {
		l.logger.Warn("rate limiter evicted clients",
			zap.Int("evicted", l.evicted), zap.Int("capacity", l.max))
		l.lastEvictLog = now
		l.evicted = 0
	}
}

// sweep forgets clients idle for longer than clientIdleTimeout.
func (l *clientLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for e := l.order.Back(); e != nil; {
		prev := e.Prev()
		entry := e.Value.(*clientEntry)
		if now.Sub(entry.lastSeen) > clientIdleTimeout {
			l.order.Remove(e)
			delete(l.clients, entry.ip)
		}
		e = prev
	}
}

func (l *clientLimiter) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.order.Len()
}

func (l *clientLimiter) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			l.sweep(now)
		case <-ctx.Done():
			return
		}
	}
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(getClientIP(r), time.Now()) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware limits each client address to rps requests per second
// with the given burst, tracking at most maxClients addresses (0 means
// 10000). Idle clients are swept until ctx is cancelled; the returned
// channel closes once the sweeper has exited.
func RateLimitMiddleware(ctx context.Context, rps float64, burst, maxClients int, logger *zap.Logger) (func(http.Handler) http.Handler, <-chan struct{}) {
	l := newClientLimiter(rps, burst, maxClients, logger)
	done := make(chan struct{})
	go l.run(ctx, done)
	return l.middleware, done
}

// getClientIP trusts X-Forwarded-For and X-Real-IP only from loopback or
// private peers.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	if peer == nil {
		return host
	}
	if !peer.IsLoopback() && !peer.IsPrivate() {
		return peer.String()
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return peer.String()
}
