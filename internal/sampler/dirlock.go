package sampler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the log directory while a recorder runs.
const LockFileName = ".ulogme.lock"

// ErrLocked means another recorder holds the log directory.
var ErrLocked = errors.New("log directory is in use by another recorder")

// DirLock guards a log directory against concurrent recorders.
type DirLock struct {
	fl *flock.Flock
}

// AcquireDirLock takes the recorder lock on dir without blocking.
func AcquireDirLock(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	fl := flock.New(filepath.Join(dir, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return &DirLock{fl: fl}, nil
}

// Release drops the lock.
func (l *DirLock) Release() error {
	return l.fl.Unlock()
}
