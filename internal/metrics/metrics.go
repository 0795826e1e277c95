// Package metrics tracks process-wide request and error counters and
// renders them, together with live index/watcher state, into the
// document served at GET /metrics (spec.md §3, §4.G, §6).
package metrics

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics accumulates request/error counters for the lifetime of the
// process. All methods are safe for concurrent use.
type Metrics struct {
	startedAt time.Time

	totalRequests  atomic.Int64
	searchRequests atomic.Int64
	indexRequests  atomic.Int64
	toolsRequests  atomic.Int64
	errors         atomic.Int64

	mu            sync.RWMutex
	lastIndexTime string
}

// New creates a Metrics instance with its uptime clock started now.
func New() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// IncTotal counts every request regardless of route; IncSearch/IncIndex/
// IncTools count a request a second time, by kind, on top of IncTotal.
func (m *Metrics) IncTotal()  { m.totalRequests.Add(1) }
func (m *Metrics) IncSearch() { m.searchRequests.Add(1) }
func (m *Metrics) IncIndex()  { m.indexRequests.Add(1) }
func (m *Metrics) IncTools()  { m.toolsRequests.Add(1) }
func (m *Metrics) IncError()  { m.errors.Add(1) }

// SetLastIndexTime records the timestamp of the most recent full build
// or incremental save.
func (m *Metrics) SetLastIndexTime(ts string) {
	m.mu.Lock()
	m.lastIndexTime = ts
	m.mu.Unlock()
}

// IndexStatus is the live index state folded into a snapshot.
type IndexStatus struct {
	FileCount     int    `json:"file_count"`
	Loaded        bool   `json:"loaded"`
	LastIndexTime string `json:"last_index_time"`
}

// WatcherStatus is the live watcher state folded into a snapshot.
type WatcherStatus struct {
	Watching     bool  `json:"isWatching"`
	FilesChanged int64 `json:"filesChanged"`
	FilesCreated int64 `json:"filesCreated"`
	FilesDeleted int64 `json:"filesDeleted"`
	Errors       int64 `json:"errors"`
}

// MemoryStats reports the process's current memory usage.
type MemoryStats struct {
	RSSMB       float64 `json:"rss_mb"`
	HeapUsedMB  float64 `json:"heap_used_mb"`
	HeapTotalMB float64 `json:"heap_total_mb"`
}

// RequestCounts is the requests sub-document of a Snapshot.
type RequestCounts struct {
	Total          int64   `json:"total"`
	Search         int64   `json:"search"`
	Index          int64   `json:"index"`
	Tools          int64   `json:"tools"`
	RequestsPerSec float64 `json:"requests_per_second"`
}

// Snapshot is an immutable point-in-time view of all metrics, shaped to
// match the GET /metrics response body from spec.md §6.
type Snapshot struct {
	UptimeSeconds float64       `json:"uptime_seconds"`
	Requests      RequestCounts `json:"requests"`
	Errors        int64         `json:"errors"`
	Index         IndexStatus   `json:"index"`
	Watcher       WatcherStatus `json:"watcher"`
	Memory        MemoryStats   `json:"memory"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Snapshot renders the current counters plus caller-supplied live index
// and watcher state into an immutable Snapshot.
func (m *Metrics) Snapshot(idx IndexStatus, wt WatcherStatus) Snapshot {
	m.mu.RLock()
	if idx.LastIndexTime == "" {
		idx.LastIndexTime = m.lastIndexTime
	}
	m.mu.RUnlock()

	uptime := time.Since(m.startedAt).Seconds()
	total := m.totalRequests.Load()

	var rps float64
	if uptime > 0 {
		rps = float64(total) / uptime
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Snapshot{
		UptimeSeconds: uptime,
		Requests: RequestCounts{
			Total:          total,
			Search:         m.searchRequests.Load(),
			Index:          m.indexRequests.Load(),
			Tools:          m.toolsRequests.Load(),
			RequestsPerSec: rps,
		},
		Errors:  m.errors.Load(),
		Index:   idx,
		Watcher: wt,
		Memory: MemoryStats{
			RSSMB:       float64(ms.Sys) / (1 << 20),
			HeapUsedMB:  float64(ms.HeapAlloc) / (1 << 20),
			HeapTotalMB: float64(ms.HeapSys) / (1 << 20),
		},
		Timestamp: time.Now().UTC(),
	}
}
