package index

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/superinstance/prism/internal/prismerr"
)

const snapshotFileName = "index.json"
const snapshotTempFileName = "index.json.tmp"
const writerLockFileName = ".writer.lock"

// atomicWriter persists a Snapshot using the temp-write-then-rename
// discipline (spec.md §4.D Persistence), backed by an OS-level advisory
// lock so invariant 5 (at most one writer) holds even across processes.
type atomicWriter struct {
	indexDir string
	lock     *flock.Flock
}

func newAtomicWriter(indexDir string) *atomicWriter {
	return &atomicWriter{
		indexDir: indexDir,
		lock:     flock.New(filepath.Join(indexDir, writerLockFileName)),
	}
}

func (w *atomicWriter) snapshotPath() string {
	return filepath.Join(w.indexDir, snapshotFileName)
}

func (w *atomicWriter) tempPath() string {
	return filepath.Join(w.indexDir, snapshotTempFileName)
}

// write marshals snap as indented JSON and atomically installs it as the
// canonical snapshot. It never leaves a truncated index.json: the temp
// file is written and fsynced first, then renamed into place.
func (w *atomicWriter) write(snap *Snapshot) error {
	if err := w.lock.Lock(); err != nil {
		return prismerr.Newf(prismerr.IOFailure, "acquire writer lock: %v", err)
	}
	defer w.lock.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return prismerr.Newf(prismerr.IOFailure, "marshal snapshot: %v", err)
	}

	tempPath := w.tempPath()
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return prismerr.Newf(prismerr.IOFailure, "open temp snapshot: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return prismerr.Newf(prismerr.IOFailure, "write temp snapshot: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return prismerr.Newf(prismerr.IOFailure, "sync temp snapshot: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return prismerr.Newf(prismerr.IOFailure, "close temp snapshot: %v", err)
	}

	if err := os.Rename(tempPath, w.snapshotPath()); err != nil {
		os.Remove(tempPath)
		return prismerr.Newf(prismerr.IOFailure, "rename snapshot into place: %v", err)
	}
	return nil
}

// read loads the canonical snapshot from disk.
func (w *atomicWriter) read() (*Snapshot, error) {
	data, err := os.ReadFile(w.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, prismerr.New(prismerr.NotFound, "no snapshot on disk")
		}
		return nil, prismerr.Newf(prismerr.IOFailure, "read snapshot: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, prismerr.Newf(prismerr.ParseInvalid, "corrupt snapshot: %v", err)
	}
	return &snap, nil
}
