package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/logday"
	"github.com/runnerr0/ulogme/internal/rawlog"
	"github.com/runnerr0/ulogme/internal/sampler"
	"github.com/runnerr0/ulogme/internal/storage"
)

const noteTime = 1700000000

func readLog(t *testing.T, e *env, kind rawlog.Kind, at time.Time) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.logDir, rawlog.FileName(kind, logday.Of(at))))
	require.NoError(t, err)
	return string(data)
}

func TestNoteCommand(t *testing.T) {
	e := newTestEnv(t)
	cmd := &NoteCommand{Text: "standup", Time: noteTime, globals: &GlobalFlags{}, env: e}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "Note recorded.")
	assert.Equal(t, "1700000000 standup\n", readLog(t, e, rawlog.Notes, time.Unix(noteTime, 0)))
	assert.FileExists(t, filepath.Join(e.renderDir, aggregate.ManifestFile))
}

func TestNoteCommandJoinsArgs(t *testing.T) {
	e := newTestEnv(t)
	cmd := &NoteCommand{Time: noteTime, globals: &GlobalFlags{}, env: e}

	captureOutput(t, func() {
		require.NoError(t, cmd.Execute([]string{"deep", "work"}))
	})
	assert.Equal(t, "1700000000 deep work\n", readLog(t, e, rawlog.Notes, time.Unix(noteTime, 0)))
}

func TestBlogCommandFromFile(t *testing.T) {
	e := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "post.md")
	require.NoError(t, os.WriteFile(path, []byte("Shipped the exporter.\n"), 0o644))

	cmd := &BlogCommand{File: path, Time: noteTime, globals: &GlobalFlags{}, env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "Blog updated.")
	assert.Equal(t, "Shipped the exporter.\n", readLog(t, e, rawlog.Blog, time.Unix(noteTime, 0)))
}

func TestRefreshCommand(t *testing.T) {
	e := newTestEnv(t)
	at := time.Unix(noteTime, 0)
	require.NoError(t, e.writer.Append(rawlog.Window, at, "Terminal"))
	require.NoError(t, e.writer.Append(rawlog.Keyfreq, at, "12"))
	require.NoError(t, e.writer.Append(rawlog.Keyfreq, at, "not-a-number"))

	cmd := &RefreshCommand{globals: &GlobalFlags{}, env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "Rebuilt 1 of 1 days (0 up to date")
	assert.Contains(t, output, "1 malformed lines skipped")

	// Second pass has nothing to do.
	output = captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "Rebuilt 0 of 1 days (1 up to date)")

	runs, err := e.store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, storage.TriggerCLI, runs[0].Trigger)
}

func TestRefreshCommandJSON(t *testing.T) {
	e := newTestEnv(t)
	at := time.Unix(noteTime, 0)
	require.NoError(t, e.writer.Append(rawlog.Window, at, "Terminal"))

	cmd := &RefreshCommand{globals: &GlobalFlags{JSON: true}, env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var out refreshJSON
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, 1, out.Days)
	assert.Equal(t, []int64{logday.Of(at).T0()}, out.Rewritten)
}

func TestStatusCommandHuman(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.svc.RecordNote(context.Background(), time.Unix(noteTime, 0), "hello"))

	cmd := &StatusCommand{Runs: 5, globals: &GlobalFlags{}, version: "dev", env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "ulogme Status")
	assert.Contains(t, output, "Version:       dev")
	assert.Contains(t, output, "Days:          1")
	assert.Contains(t, output, "Rebuilds:      1 (0 failed)")
	assert.Contains(t, output, "Edits:         1")
	assert.Contains(t, output, "Recent rebuilds:")
	assert.Contains(t, output, "1/1 rewritten")
}

func TestStatusCommandJSON(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.svc.RecordNote(context.Background(), time.Unix(noteTime, 0), "hello"))

	cmd := &StatusCommand{Runs: 5, globals: &GlobalFlags{JSON: true}, version: "dev", env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, "dev", out["version"])
	assert.Equal(t, e.logDir, out["log_dir"])
	assert.EqualValues(t, 1, out["total_runs"])
	days, ok := out["days"].([]any)
	require.True(t, ok)
	assert.Len(t, days, 1)
}

func TestPruneCommand(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, e.store.RecordRun(ctx, &storage.Run{StartedAt: now.Add(-60 * 24 * time.Hour), Trigger: storage.TriggerCLI}))
	require.NoError(t, e.store.RecordRun(ctx, &storage.Run{StartedAt: now.Add(-time.Hour), Trigger: storage.TriggerCLI}))

	cmd := &PruneCommand{OlderThan: "30d", globals: &GlobalFlags{}, env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "Pruned 1 history rows older than 30 days.")

	runs, err := e.store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestPruneCommandDefaultRetention(t *testing.T) {
	e := newTestEnv(t)
	cmd := &PruneCommand{globals: &GlobalFlags{}, env: e}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "older than 90 days")
}

func TestPruneCommandBadDuration(t *testing.T) {
	e := newTestEnv(t)
	cmd := &PruneCommand{OlderThan: "soon", globals: &GlobalFlags{}, env: e}
	require.Error(t, cmd.Execute(nil))
}

type staticTitles string

func (s staticTitles) Title(context.Context) (string, error) { return string(s), nil }

// countingTitles records how often the window sampler polled it.
type countingTitles struct{ calls atomic.Int32 }

func (c *countingTitles) Title(context.Context) (string, error) {
	c.calls.Add(1)
	return "Terminal", nil
}

type missingKeyboard struct{}

func (missingKeyboard) Detect(context.Context) (string, error) { return "", sampler.ErrNoKeyboard }

func (missingKeyboard) Listen(context.Context, string) (int, error) { return 0, nil }

func TestRecordWindowSampler(t *testing.T) {
	e := newTestEnv(t)
	e.titles = staticTitles("Terminal")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	cmd := &RecordCommand{NoKeys: true, globals: &GlobalFlags{}, env: e}
	go func() { done <- cmd.run(ctx, e) }()

	path := filepath.Join(e.logDir, rawlog.FileName(rawlog.Window, logday.Of(time.Now())))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), " Terminal\n")
	}, 10*time.Second, 20*time.Millisecond)

	// A second recorder on the same log directory is refused.
	err := (&RecordCommand{NoKeys: true, globals: &GlobalFlags{}}).run(context.Background(), e)
	require.ErrorIs(t, err, sampler.ErrLocked)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("recorder did not stop")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], " Terminal"))
	assert.True(t, strings.HasSuffix(lines[1], " "), "stop appends an empty record")
}

func TestRecordFailsWithoutKeyboard(t *testing.T) {
	e := newTestEnv(t)
	e.keyboard = missingKeyboard{}

	cmd := &RecordCommand{NoWindow: true, globals: &GlobalFlags{}, env: e}
	err := cmd.run(context.Background(), e)
	require.ErrorIs(t, err, sampler.ErrNoKeyboard)
}

func TestRecordNothingEnabled(t *testing.T) {
	e := newTestEnv(t)
	cmd := &RecordCommand{NoWindow: true, NoKeys: true, globals: &GlobalFlags{}, env: e}
	err := cmd.run(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to record")
}

func TestRecordServeSetupFailureStartsNoSamplers(t *testing.T) {
	e := newTestEnv(t)
	e.cfg.Refresh.Schedule = "every fifteen minutes"
	titles := &countingTitles{}
	e.titles = titles

	cmd := &RecordCommand{NoKeys: true, Serve: true, globals: &GlobalFlags{}, env: e}
	err := cmd.run(context.Background(), e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")

	assert.Zero(t, titles.calls.Load())
	_, statErr := os.Stat(filepath.Join(e.logDir, rawlog.FileName(rawlog.Window, logday.Of(time.Now()))))
	assert.True(t, os.IsNotExist(statErr))

	// The directory lock was released.
	lock, err := sampler.AcquireDirLock(e.logDir)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}
