// Package watcher observes a project tree for filesystem changes and
// applies debounced, coalesced mutations to an index.Indexer (spec.md §4.E).
package watcher

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/superinstance/prism/internal/index"
	"github.com/superinstance/prism/internal/walker"
)

const (
	quiescence  = 500 * time.Millisecond
	batchCap    = 2 * time.Second
	restartWait = 1 * time.Second
)

// pendingKind is the collapsed effect of a run of fsnotify events for one
// path within a single debounce batch: last-event-wins for create/modify,
// but delete always overrides, and a create is never downgraded to a
// modify by a later write within the same batch.
type pendingKind int

const (
	pendingCreate pendingKind = iota
	pendingModify
	pendingRemove
)

// Counters are the WatcherState counters from spec.md §3.
type Counters struct {
	Changed int64
	Created int64
	Deleted int64
	Errors  int64
}

// Status is the result of Status(): whether the watcher is currently
// active plus its running counters.
type Status struct {
	Watching bool
	Counters Counters
}

// Watcher watches root for changes and mutates ix accordingly. It is
// self-healing: any failure of the underlying OS watch primitive is
// logged and retried on a fixed backoff, never abandoned.
type Watcher struct {
	root string
	ix   index.Indexer

	mu       sync.Mutex
	enabled  bool
	watching bool
	counters Counters
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New constructs a Watcher for root and ix. It does not start watching;
// call Enable to begin.
func New(root string, ix index.Indexer) *Watcher {
	return &Watcher{root: root, ix: ix}
}

// Enable idempotently starts the watch loop.
func (w *Watcher) Enable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enabled {
		return
	}
	w.enabled = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(w.stopCh, w.doneCh)
}

// Disable idempotently stops the watch loop and waits for it to exit.
func (w *Watcher) Disable() {
	w.mu.Lock()
	if !w.enabled {
		w.mu.Unlock()
		return
	}
	w.enabled = false
	stopCh := w.stopCh
	doneCh := w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Status reports whether the watcher is active and its running counters.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{Watching: w.watching, Counters: w.counters}
}

func (w *Watcher) setWatching(v bool) {
	w.mu.Lock()
	w.watching = v
	w.mu.Unlock()
}

func (w *Watcher) bump(f func(*Counters)) {
	w.mu.Lock()
	f(&w.counters)
	w.mu.Unlock()
}

// run is the self-healing supervisor: it (re)establishes the underlying
// fsnotify watch and restarts it on a fixed backoff if it ever fails.
func (w *Watcher) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer w.setWatching(false)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.bump(func(c *Counters) { c.Errors++ })
			log.Printf("watcher: failed to start: %v", err)
			if !w.waitBackoff(stopCh) {
				return
			}
			continue
		}

		if err := addDirsRecursively(fsw, w.root); err != nil {
			w.bump(func(c *Counters) { c.Errors++ })
			log.Printf("watcher: failed to watch %s: %v", w.root, err)
			fsw.Close()
			if !w.waitBackoff(stopCh) {
				return
			}
			continue
		}

		w.setWatching(true)
		restart := w.watchLoop(fsw, stopCh)
		fsw.Close()
		w.setWatching(false)

		if !restart {
			return
		}
		if !w.waitBackoff(stopCh) {
			return
		}
	}
}

// waitBackoff sleeps the fixed restart backoff, returning false if stopCh
// fires first.
func (w *Watcher) waitBackoff(stopCh chan struct{}) bool {
	t := time.NewTimer(restartWait)
	defer t.Stop()
	select {
	case <-stopCh:
		return false
	case <-t.C:
		return true
	}
}

// watchLoop runs the debounce/coalesce/apply cycle until stopCh fires or
// the underlying watcher fails, in which case it returns true to signal
// the supervisor should restart it.
func (w *Watcher) watchLoop(fsw *fsnotify.Watcher, stopCh chan struct{}) bool {
	pending := make(map[string]pendingKind)
	var quietTimer, capTimer *time.Timer
	var quietC, capC <-chan time.Time

	armBatch := func() {
		if quietTimer == nil {
			quietTimer = time.NewTimer(quiescence)
			quietC = quietTimer.C
			capTimer = time.NewTimer(batchCap)
			capC = capTimer.C
			return
		}
		if !quietTimer.Stop() {
			select {
			case <-quietTimer.C:
			default:
			}
		}
		quietTimer.Reset(quiescence)
	}

	disarmBatch := func() {
		if quietTimer != nil {
			quietTimer.Stop()
		}
		if capTimer != nil {
			capTimer.Stop()
		}
		quietTimer, capTimer = nil, nil
		quietC, capC = nil, nil
	}

	flush := func() {
		if len(pending) == 0 {
			return
		}
		w.applyBatch(pending)
		pending = make(map[string]pendingKind)
		disarmBatch()
	}

	for {
		select {
		case <-stopCh:
			return false

		case event, ok := <-fsw.Events:
			if !ok {
				return true
			}
			w.recordEvent(fsw, pending, event)
			armBatch()

		case err, ok := <-fsw.Errors:
			if !ok {
				return true
			}
			w.bump(func(c *Counters) { c.Errors++ })
			log.Printf("watcher: error: %v", err)
			return true

		case <-quietC:
			flush()

		case <-capC:
			flush()
		}
	}
}

// recordEvent applies this event's effect to the pending batch, honoring
// last-event-wins with delete overriding create/modify, and handles newly
// created directories by adding them to the live fsnotify watch.
func (w *Watcher) recordEvent(fsw *fsnotify.Watcher, pending map[string]pendingKind, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if walker.ShouldExcludeDir(filepath.Dir(relPath)) {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		pending[relPath] = pendingRemove
		return
	}

	isCreate := event.Op&fsnotify.Create != 0
	if isCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addDirsRecursively(fsw, event.Name); err != nil {
				log.Printf("watcher: failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	if !walker.HasIncludedExtension(relPath) {
		return
	}

	// delete overrides create/modify within the batch; don't downgrade it.
	existing, ok := pending[relPath]
	if ok && existing == pendingRemove {
		return
	}

	// A create is never downgraded to a modify by a later write in the
	// same batch; a plain write never upgrades to a create.
	if isCreate {
		pending[relPath] = pendingCreate
		return
	}
	if ok && existing == pendingCreate {
		return
	}
	pending[relPath] = pendingModify
}

// applyBatch applies every surviving event to the Indexer and saves a
// fresh snapshot once the batch is complete.
func (w *Watcher) applyBatch(pending map[string]pendingKind) {
	for relPath, kind := range pending {
		switch kind {
		case pendingCreate:
			if err := w.ix.Upsert(relPath); err != nil {
				w.bump(func(c *Counters) { c.Errors++ })
				log.Printf("watcher: upsert %s: %v", relPath, err)
				continue
			}
			w.bump(func(c *Counters) { c.Changed++; c.Created++ })
		case pendingModify:
			if err := w.ix.Upsert(relPath); err != nil {
				w.bump(func(c *Counters) { c.Errors++ })
				log.Printf("watcher: upsert %s: %v", relPath, err)
				continue
			}
			w.bump(func(c *Counters) { c.Changed++ })
		case pendingRemove:
			if err := w.ix.Remove(relPath); err != nil {
				w.bump(func(c *Counters) { c.Errors++ })
				log.Printf("watcher: remove %s: %v", relPath, err)
				continue
			}
			w.bump(func(c *Counters) { c.Changed++; c.Deleted++ })
		}
	}

	if err := w.ix.Save(); err != nil {
		w.bump(func(c *Counters) { c.Errors++ })
		log.Printf("watcher: save after batch: %v", err)
	}
}

// addDirsRecursively adds root and every included subdirectory to fsw.
func addDirsRecursively(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Printf("watcher: error accessing %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && walker.ShouldExcludeDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			log.Printf("watcher: failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}
