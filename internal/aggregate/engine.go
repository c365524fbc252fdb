// Package aggregate compiles the raw per-day activity streams into the JSON
// day exports and manifest read by the front end. A day's export is only
// regenerated when one of its source files is newer than the export.
package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/spf13/afero"

	"github.com/runnerr0/ulogme/internal/logday"
	"github.com/runnerr0/ulogme/internal/rawlog"
)

// Options configures an Engine.
type Options struct {
	// Fs defaults to the OS filesystem. Modification times used for the
	// staleness check come from Fs.Stat.
	Fs     afero.Fs
	LogDir string
	OutDir string
	Logger slog.Logger
}

// Engine rebuilds day exports. Rebuild calls are serialized.
type Engine struct {
	fs     afero.Fs
	logDir string
	outDir string
	logger slog.Logger

	mu sync.Mutex
}

// New creates an Engine.
func New(opts Options) *Engine {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Engine{
		fs:     fsys,
		logDir: opts.LogDir,
		outDir: opts.OutDir,
		logger: opts.Logger,
	}
}

// OutDir returns the export directory.
func (e *Engine) OutDir() string { return e.outDir }

// Rebuild scans the log directory, rewrites the export of every day whose
// sources changed since it was last written, and rewrites the manifest. A
// failure to write one day does not stop the others; the errors are joined.
func (e *Engine) Rebuild(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	days, err := e.candidateDays()
	if err != nil {
		return nil, err
	}

	if err := e.fs.MkdirAll(e.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{
		Days:     days,
		BadLines: make(map[logday.Day]int),
	}
	manifest := make([]ManifestEntry, 0, len(days))
	var errs []error

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		manifest = append(manifest, ManifestEntry{T0: day.T0(), T1: day.T1(), FName: ExportName(day)})

		stale, err := e.stale(day)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !stale {
			res.Skipped = append(res.Skipped, day)
			continue
		}

		// The export carries the newest source mtime seen before reading, so
		// an append racing with this pass leaves the day stale.
		snap := e.newestSource(day)
		export, bad := e.load(day)
		path := filepath.Join(e.outDir, ExportName(day))
		if err := e.writeJSON(path, export); err != nil {
			errs = append(errs, fmt.Errorf("write export %d: %w", day.T0(), err))
			continue
		}
		if !snap.IsZero() {
			if err := e.fs.Chtimes(path, snap, snap); err != nil {
				errs = append(errs, fmt.Errorf("stamp export %d: %w", day.T0(), err))
				continue
			}
		}
		res.Rewritten = append(res.Rewritten, day)
		if bad > 0 {
			res.BadLines[day] = bad
		}
		e.logger.Debug(ctx, "rewrote day export",
			slog.F("t0", day.T0()),
			slog.F("window", len(export.WindowEvents)),
			slog.F("keyfreq", len(export.KeyfreqEvents)),
			slog.F("notes", len(export.NotesEvents)),
			slog.F("bad_lines", bad),
		)
	}

	if err := e.writeJSON(filepath.Join(e.outDir, ManifestFile), manifest); err != nil {
		errs = append(errs, fmt.Errorf("write manifest: %w", err))
	}

	e.logger.Info(ctx, "rebuild finished",
		slog.F("days", len(res.Days)),
		slog.F("rewritten", len(res.Rewritten)),
		slog.F("skipped", len(res.Skipped)),
		slog.F("took", time.Since(start)),
	)
	return res, errors.Join(errs...)
}

// candidateDays returns the sorted, deduplicated days that have at least one
// append-stream file. Blog files never add a day.
func (e *Engine) candidateDays() ([]logday.Day, error) {
	entries, err := afero.ReadDir(e.fs, e.logDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []logday.Day{}, nil
		}
		return nil, fmt.Errorf("list log dir: %w", err)
	}

	seen := make(map[logday.Day]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, day, ok := rawlog.ParseFileName(entry.Name())
		if !ok || kind == rawlog.Blog {
			continue
		}
		seen[day] = struct{}{}
	}

	days := make([]logday.Day, 0, len(seen))
	for day := range seen {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// stale reports whether the day's export is missing or older than any of its
// four sources.
func (e *Engine) stale(day logday.Day) (bool, error) {
	out, err := e.fs.Stat(filepath.Join(e.outDir, ExportName(day)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("stat export %d: %w", day.T0(), err)
	}
	exported := out.ModTime()

	for _, kind := range rawlog.AllKinds {
		if e.mtime(e.sourcePath(kind, day)).After(exported) {
			return true, nil
		}
	}
	return false, nil
}

// newestSource returns the latest modification time across the day's four
// sources.
func (e *Engine) newestSource(day logday.Day) time.Time {
	var newest time.Time
	for _, kind := range rawlog.AllKinds {
		if m := e.mtime(e.sourcePath(kind, day)); m.After(newest) {
			newest = m
		}
	}
	return newest
}

// mtime returns the modification time of path, or the zero time if it
// cannot be stat'd.
func (e *Engine) mtime(path string) time.Time {
	info, err := e.fs.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (e *Engine) sourcePath(kind rawlog.Kind, day logday.Day) string {
	return filepath.Join(e.logDir, rawlog.FileName(kind, day))
}

// load reads the four sources of a day. Missing sources contribute nothing.
// The second result counts dropped lines.
func (e *Engine) load(day logday.Day) (*DayExport, int) {
	export := &DayExport{
		WindowEvents:  []TextEvent{},
		KeyfreqEvents: []CountEvent{},
		NotesEvents:   []TextEvent{},
	}
	bad := 0

	for _, rec := range e.readStream(rawlog.Window, day, &bad) {
		export.WindowEvents = append(export.WindowEvents, TextEvent{T: rec.Timestamp, S: rec.Payload})
	}
	for _, rec := range e.readStream(rawlog.Notes, day, &bad) {
		export.NotesEvents = append(export.NotesEvents, TextEvent{T: rec.Timestamp, S: rec.Payload})
	}
	for _, rec := range e.readStream(rawlog.Keyfreq, day, &bad) {
		n, err := strconv.ParseInt(strings.TrimSpace(rec.Payload), 10, 64)
		if err != nil {
			bad++
			continue
		}
		export.KeyfreqEvents = append(export.KeyfreqEvents, CountEvent{T: rec.Timestamp, S: n})
	}

	blog, err := afero.ReadFile(e.fs, e.sourcePath(rawlog.Blog, day))
	switch {
	case err == nil:
		export.Blog = string(blog)
	case !errors.Is(err, os.ErrNotExist):
		e.logger.Warn(context.Background(), "read blog", slog.F("t0", day.T0()), slog.Error(err))
	}

	return export, bad
}

func (e *Engine) readStream(kind rawlog.Kind, day logday.Day, bad *int) []rawlog.Record {
	path := e.sourcePath(kind, day)
	f, err := e.fs.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			e.logger.Warn(context.Background(), "open stream", slog.F("path", path), slog.Error(err))
		}
		return nil
	}
	defer f.Close()

	recs, skipped, err := rawlog.ReadRecords(f)
	if err != nil {
		e.logger.Warn(context.Background(), "read stream", slog.F("path", path), slog.Error(err))
	}
	*bad += skipped
	return recs
}

func (e *Engine) writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return rawlog.WriteAtomic(e.fs, path, buf.Bytes())
}

// Manifest reads the manifest written by the last Rebuild.
func (e *Engine) Manifest() ([]ManifestEntry, error) {
	data, err := afero.ReadFile(e.fs, filepath.Join(e.outDir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []ManifestEntry{}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return entries, nil
}

// ReadExport reads the export written for day.
func (e *Engine) ReadExport(day logday.Day) (*DayExport, error) {
	data, err := afero.ReadFile(e.fs, filepath.Join(e.outDir, ExportName(day)))
	if err != nil {
		return nil, fmt.Errorf("read export %d: %w", day.T0(), err)
	}
	var export DayExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse export %d: %w", day.T0(), err)
	}
	return &export, nil
}
