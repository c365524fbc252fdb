// Package rawlog reads and writes the per-day raw activity streams.
package rawlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/runnerr0/ulogme/internal/logday"
)

// Writer appends records to stream files under a log directory. Writers to
// the same file within one process are serialized; separate processes
// writing the same stream are not coordinated.
type Writer struct {
	fs   afero.Fs
	dir  string
	days logday.Normalizer

	mu    sync.Mutex
	files map[string]*sync.Mutex
}

// NewWriter creates a Writer rooted at dir on fs.
func NewWriter(fs afero.Fs, dir string, days logday.Normalizer) *Writer {
	return &Writer{
		fs:    fs,
		dir:   dir,
		days:  days,
		files: make(map[string]*sync.Mutex),
	}
}

// Dir returns the log directory.
func (w *Writer) Dir() string { return w.dir }

// Day returns the log day owning instant.
func (w *Writer) Day(instant time.Time) logday.Day { return w.days.Of(instant) }

// Path returns the stream file path for kind on the log day owning instant.
func (w *Writer) Path(kind Kind, instant time.Time) string {
	return filepath.Join(w.dir, FileName(kind, w.days.Of(instant)))
}

func (w *Writer) fileLock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.files[path]
	if !ok {
		m = &sync.Mutex{}
		w.files[path] = m
	}
	return m
}

// Append writes one "<unix_ts> <payload>" line to the kind's file for the
// log day owning instant, creating the file if needed. The write is synced
// before Append returns.
func (w *Writer) Append(kind Kind, instant time.Time, payload string) error {
	if kind == Blog {
		return fmt.Errorf("append to %s: blog is not an append stream", kind)
	}
	path := w.Path(kind, instant)
	line := fmt.Sprintf("%d %s\n", instant.Unix(), sanitize(payload))

	m := w.fileLock(path)
	m.Lock()
	defer m.Unlock()

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := w.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

// SetBlog replaces the blog post of the log day owning instant.
func (w *Writer) SetBlog(instant time.Time, body string) error {
	path := w.Path(Blog, instant)

	m := w.fileLock(path)
	m.Lock()
	defer m.Unlock()

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return WriteAtomic(w.fs, path, []byte(body))
}

// WriteAtomic writes data to a temporary file next to path and renames it
// into place, so readers see either the old content or all of the new.
func WriteAtomic(fs afero.Fs, path string, data []byte) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(fs, dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = fs.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// sanitize keeps one record on one line.
func sanitize(payload string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(payload)
}
