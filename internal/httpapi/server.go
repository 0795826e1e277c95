// Package httpapi implements the daemon's loopback HTTP/JSON surface:
// routing, CORS, request limits, and response envelopes over the
// Indexer, Watcher, Metrics and Probe components (spec.md §4.F, §6).
package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/superinstance/prism/internal/index"
	"github.com/superinstance/prism/internal/metrics"
	"github.com/superinstance/prism/internal/probe"
	"github.com/superinstance/prism/internal/watcher"
)

type contextKey int

const requestIDKey contextKey = 0

// requestIDFrom returns the correlation id stashed by ServeHTTP, or ""
// if called outside a request (e.g. from a test that builds its own
// context).
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

const (
	maxBodyBytes   = 1 << 20 // 1 MiB
	maxQueryChars  = 10000
	requestTimeout = 30 * time.Second
	maxConnections = 100
)

// Server wires the Indexer, Watcher, Metrics and Probe into a
// http.Handler implementing spec.md §6's endpoint table.
type Server struct {
	ix        index.Indexer
	wt        *watcher.Watcher
	mx        *metrics.Metrics
	probeInfo probe.Result
	root      string

	mux  *http.ServeMux
	sema chan struct{} // bounds concurrent connections
}

// New builds a Server. probeInfo is computed once at startup (the probe
// is advisory-only and not re-run per request).
func New(ix index.Indexer, wt *watcher.Watcher, mx *metrics.Metrics, probeInfo probe.Result, root string) *Server {
	s := &Server{
		ix:        ix,
		wt:        wt,
		mx:        mx,
		probeInfo: probeInfo,
		root:      root,
		mux:       http.NewServeMux(),
		sema:      make(chan struct{}, maxConnections),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.HandleFunc("/metrics", s.handleMetrics)
	s.mux.HandleFunc("/project", s.handleProject)
	s.mux.HandleFunc("/search", s.handleSearch)
	s.mux.HandleFunc("/index", s.handleIndex)
	s.mux.HandleFunc("/tools/list", s.handleToolsList)
	s.mux.HandleFunc("/tools/call", s.handleToolsCall)
	s.mux.HandleFunc("/watcher/status", s.handleWatcherStatus)
	s.mux.HandleFunc("/watcher/enable", s.handleWatcherEnable)
	s.mux.HandleFunc("/watcher/disable", s.handleWatcherDisable)
	s.mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "not_found"})
}

// ServeHTTP applies CORS, the connection cap, the per-request timeout
// and the counting middleware before dispatching to the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	applyCORS(w, r)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	select {
	case s.sema <- struct{}{}:
		defer func() { <-s.sema }()
	default:
		http.Error(w, `{"error":"too_many_connections"}`, http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reqID := uuid.New().String()
	w.Header().Set("X-Request-Id", reqID)
	ctx = context.WithValue(ctx, requestIDKey, reqID)

	s.mx.IncTotal()
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

// applyCORS answers preflight/simple requests for localhost/127.0.0.1
// origins, the only origins a local daemon ever needs to trust.
func applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if isAllowedOrigin(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

func isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
