package daemon

import (
	"github.com/gofrs/flock"

	"github.com/superinstance/prism/internal/prismerr"
)

// singletonLockName is the advisory lock file used to enforce that at
// most one prismd process runs per project root, independent of the
// indexer's own writer lock (spec.md invariant 5 covers the index
// writer; this covers the daemon process itself).
const singletonLockName = ".daemon.lock"

// singleton enforces that only one prismd process serves a given
// project root at a time, mirroring the socket-bind-plus-file-lock
// pattern daemons in this codebase use, adapted to a file lock alone
// since prismd binds a loopback TCP port rather than a Unix socket.
type singleton struct {
	lock *flock.Flock
}

func newSingleton(indexDir string) *singleton {
	return &singleton{lock: flock.New(indexDir + "/" + singletonLockName)}
}

// acquire attempts to become the singleton daemon for this project root.
// It returns an AlreadyRunning error if another instance holds the lock.
func (s *singleton) acquire() error {
	locked, err := s.lock.TryLock()
	if err != nil {
		return prismerr.Newf(prismerr.IOFailure, "acquire daemon lock: %v", err)
	}
	if !locked {
		return prismerr.New(prismerr.AlreadyRunning, "prismd is already running for this project root")
	}
	return nil
}

func (s *singleton) release() {
	_ = s.lock.Unlock()
}
