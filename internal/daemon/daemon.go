// Package daemon orchestrates prismd's startup sequence, binds its HTTP
// listener, and drives graceful shutdown (spec.md §4.G).
package daemon

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/superinstance/prism/internal/config"
	"github.com/superinstance/prism/internal/httpapi"
	"github.com/superinstance/prism/internal/index"
	"github.com/superinstance/prism/internal/metrics"
	"github.com/superinstance/prism/internal/probe"
	"github.com/superinstance/prism/internal/watcher"
)

// Daemon owns the full set of long-lived components and their lifetime.
type Daemon struct {
	cfg *config.Config

	singleton *singleton
	indexer   index.Indexer
	watcher   *watcher.Watcher
	metrics   *metrics.Metrics
	server    *http.Server
}

// New constructs a Daemon from cfg. It does not bind any socket or start
// any goroutine; call Run to do so.
func New(cfg *config.Config) *Daemon {
	probeInfo := probe.Probe(cfg.ProjectRoot)
	ix := index.New(cfg.ProjectRoot, cfg.IndexDir)
	wt := watcher.New(cfg.ProjectRoot, ix)
	mx := metrics.New()
	api := httpapi.New(ix, wt, mx, probeInfo, cfg.ProjectRoot)

	return &Daemon{
		cfg:       cfg,
		singleton: newSingleton(cfg.IndexDir),
		indexer:   ix,
		watcher:   wt,
		metrics:   mx,
		server:    &http.Server{Handler: api},
	}
}

// Run executes the full startup sequence from spec.md §4.G (singleton,
// load-or-build, watcher enable, bind, signal handlers already installed
// by the caller via ctx), then serves until ctx is cancelled or a fatal
// error occurs. It returns nil on a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.singleton.acquire(); err != nil {
		return err
	}
	defer d.singleton.release()

	if err := d.indexer.Load(); err != nil {
		log.Printf("daemon: no usable snapshot on disk (%v), building fresh index", err)
		n, buildErr := d.indexer.BuildFull()
		if buildErr != nil {
			return fmt.Errorf("initial build_full failed: %w", buildErr)
		}
		log.Printf("daemon: indexed %d files", n)
		if err := d.indexer.Save(); err != nil {
			return fmt.Errorf("initial save failed: %w", err)
		}
	}
	d.metrics.SetLastIndexTime(d.indexer.IndexedAt())

	if d.cfg.EnableWatcher {
		d.watcher.Enable()
	}

	addr := fmt.Sprintf("127.0.0.1:%d", d.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		log.Println("daemon: shutdown signal received, draining in-flight requests")

		d.watcher.Disable()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("daemon: forced shutdown: %v", err)
		}
	}()

	log.Printf("prismd serving %s on %s (pid %d)", d.cfg.ProjectRoot, addr, os.Getpid())

	if err := d.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
