package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/superinstance/prism/internal/index"
	"github.com/superinstance/prism/internal/metrics"
	"github.com/superinstance/prism/internal/prismerr"
	"github.com/superinstance/prism/internal/tools"
)

var startedAt = time.Now()

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a prismerr.Error (or generic error) onto the HTTP
// status codes from spec.md §7. 5xx responses are logged with the
// request's correlation id so an operator can line up a client report
// against the daemon's own log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := prismerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case prismerr.PathUnsafe, prismerr.ParseInvalid:
		status = http.StatusBadRequest
	case prismerr.NotFound:
		status = http.StatusNotFound
	case prismerr.TooLarge:
		status = http.StatusRequestEntityTooLarge
	case prismerr.ConfigInvalid:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("httpapi: request %s failed: %v", requestIDFrom(r.Context()), err)
	}
	writeJSON(w, status, map[string]any{"error": string(kind), "details": err.Error(), "request_id": requestIDFrom(r.Context())})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startedAt).Seconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	loaded := s.ix.Loaded()
	watcherOK := true
	var watcherStatus readyWatcherStatus
	if s.wt != nil {
		st := s.wt.Status()
		watcherStatus = readyWatcherStatus{Watching: st.Watching}
		watcherOK = st.Watching
	}

	ready := loaded && watcherOK
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":        readyLabel(ready),
		"index_loaded":  loaded,
		"project":       s.probeInfo,
		"watcher":       watcherStatus,
		"file_count":    s.ix.FileCount(),
		"timestamp":     time.Now().UTC(),
	})
}

type readyWatcherStatus struct {
	Watching bool `json:"watching"`
}

func readyLabel(ready bool) string {
	if ready {
		return "ready"
	}
	return "not_ready"
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	idx := metrics.IndexStatus{
		FileCount: s.ix.FileCount(),
		Loaded:    s.ix.Loaded(),
	}
	if ts := s.ix.IndexedAt(); ts != "" {
		idx.LastIndexTime = ts
	}

	var wtStatus metrics.WatcherStatus
	if s.wt != nil {
		st := s.wt.Status()
		wtStatus = metrics.WatcherStatus{
			Watching:     st.Watching,
			FilesChanged: st.Counters.Changed,
			FilesCreated: st.Counters.Created,
			FilesDeleted: st.Counters.Deleted,
			Errors:       st.Counters.Errors,
		}
	}

	writeJSON(w, http.StatusOK, s.mx.Snapshot(idx, wtStatus))
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.probeInfo)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mx.IncSearch()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, r, prismerr.New(prismerr.TooLarge, "request body too large"))
		return
	}

	var req searchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, r, prismerr.New(prismerr.ParseInvalid, "invalid JSON body"))
		return
	}
	if len(req.Query) > maxQueryChars {
		writeError(w, r, prismerr.New(prismerr.ParseInvalid, "query exceeds maximum length"))
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = index.DefaultSearchLimit
	}

	hits := s.ix.Search(req.Query, limit)
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mx.IncIndex()

	if !s.ix.BeginRebuild() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "already_running"})
		return
	}

	go func() {
		if _, err := s.ix.RunReservedBuild(); err != nil {
			s.mx.IncError()
			return
		}
		if err := s.ix.Save(); err != nil {
			s.mx.IncError()
			return
		}
		s.mx.SetLastIndexTime(s.ix.IndexedAt())
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "indexing"})
}

func (s *Server) handleToolsList(w http.ResponseWriter, r *http.Request) {
	s.mx.IncTools()
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools.Descriptors()})
}

type toolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request) {
	s.mx.IncTools()

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, r, prismerr.New(prismerr.TooLarge, "request body too large"))
		return
	}

	var req toolCallRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, r, prismerr.New(prismerr.ParseInvalid, "invalid JSON body"))
		return
	}

	result, err := tools.Dispatch(s.ix, req.Name, req.Arguments)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleWatcherStatus(w http.ResponseWriter, r *http.Request) {
	if s.wt == nil {
		writeJSON(w, http.StatusOK, map[string]any{"watching": false, "counters": metrics.WatcherStatus{}})
		return
	}
	st := s.wt.Status()
	writeJSON(w, http.StatusOK, map[string]any{"watching": st.Watching, "counters": st.Counters})
}

func (s *Server) handleWatcherEnable(w http.ResponseWriter, r *http.Request) {
	if s.wt != nil {
		s.wt.Enable()
	}
	writeJSON(w, http.StatusOK, map[string]any{"watching": true})
}

func (s *Server) handleWatcherDisable(w http.ResponseWriter, r *http.Request) {
	if s.wt != nil {
		s.wt.Disable()
	}
	writeJSON(w, http.StatusOK, map[string]any{"watching": false})
}
