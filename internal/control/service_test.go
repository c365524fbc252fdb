package control

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/logday"
	"github.com/runnerr0/ulogme/internal/rawlog"
	"github.com/runnerr0/ulogme/internal/storage"
)

const (
	logDir = "/logs"
	outDir = "/render"
)

type testEnv struct {
	svc   *Service
	fs    afero.Fs
	store *storage.SQLiteStore
	clock *quartz.Mock
}

func openTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.NewMigrationRunner(db).Run())
	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestEnv(t *testing.T, fs afero.Fs, withHistory bool) *testEnv {
	t.Helper()
	logger := slogtest.Make(t, nil)
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 3, 2, 12, 0, 0, 0, time.Local))

	env := &testEnv{fs: fs, clock: clock}
	opts := Options{
		Writer: rawlog.NewWriter(fs, logDir, logday.Normalizer{BoundaryHour: logday.DefaultBoundaryHour}),
		Engine: aggregate.New(aggregate.Options{Fs: fs, LogDir: logDir, OutDir: outDir, Logger: logger}),
		Clock:  clock,
		Logger: logger,
	}
	if withHistory {
		env.store = openTestStore(t)
		opts.History = env.store
	}
	env.svc = New(opts)
	return env
}

func TestRecordNoteAppendsAndRebuilds(t *testing.T) {
	env := newTestEnv(t, afero.NewMemMapFs(), true)
	ctx := context.Background()

	at := time.Date(2024, 3, 2, 9, 30, 0, 0, time.Local)
	require.NoError(t, env.svc.RecordNote(ctx, at, "standup"))

	day := logday.Of(at)
	raw, err := afero.ReadFile(env.fs, filepath.Join(logDir, rawlog.FileName(rawlog.Notes, day)))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d standup\n", at.Unix()), string(raw))

	export, err := env.svc.Engine().ReadExport(day)
	require.NoError(t, err)
	assert.Equal(t, []aggregate.TextEvent{{T: at.Unix(), S: "standup"}}, export.NotesEvents)

	manifest, err := env.svc.Engine().Manifest()
	require.NoError(t, err)
	require.Len(t, manifest, 1)
	assert.Equal(t, day.T0(), manifest[0].T0)

	actions, err := env.store.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, storage.ActionNote, actions[0].Kind)
	assert.Equal(t, day.T0(), actions[0].Day)
	assert.Equal(t, "standup", actions[0].Detail)

	runs, err := env.store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.TriggerNote, runs[0].Trigger)
	assert.Equal(t, 1, runs[0].Rewritten)
	assert.Empty(t, runs[0].Error)
}

func TestRecordNoteZeroInstantUsesClock(t *testing.T) {
	env := newTestEnv(t, afero.NewMemMapFs(), false)
	require.NoError(t, env.svc.RecordNote(context.Background(), time.Time{}, "now"))

	now := env.clock.Now()
	export, err := env.svc.Engine().ReadExport(logday.Of(now))
	require.NoError(t, err)
	assert.Equal(t, []aggregate.TextEvent{{T: now.Unix(), S: "now"}}, export.NotesEvents)
}

func TestSetBlogOverwritesAndRebuilds(t *testing.T) {
	env := newTestEnv(t, afero.NewMemMapFs(), true)
	ctx := context.Background()

	// The blog only shows up for days that have append-stream data.
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.Local)
	require.NoError(t, env.svc.RecordNote(ctx, at, "morning"))

	require.NoError(t, env.svc.SetBlog(ctx, at, "first draft"))
	env.clock.Advance(time.Second)
	require.NoError(t, env.svc.SetBlog(ctx, at, "final"))

	day := logday.Of(at)
	raw, err := afero.ReadFile(env.fs, filepath.Join(logDir, rawlog.FileName(rawlog.Blog, day)))
	require.NoError(t, err)
	assert.Equal(t, "final", string(raw))

	export, err := env.svc.Engine().ReadExport(day)
	require.NoError(t, err)
	assert.Equal(t, "final", export.Blog)

	actions, err := env.store.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, storage.ActionBlog, actions[0].Kind)
	assert.Equal(t, "5 bytes", actions[0].Detail)
}

func TestRebuildAllRecordsTrigger(t *testing.T) {
	env := newTestEnv(t, afero.NewMemMapFs(), true)
	ctx := context.Background()

	res, err := env.svc.RebuildAll(ctx, storage.TriggerRefresh)
	require.NoError(t, err)
	assert.Empty(t, res.Days)

	stats, err := env.store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalRuns)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, storage.TriggerRefresh, stats.LastRun.Trigger)
}

func TestRecordNoteFailsOnReadOnlyLogDir(t *testing.T) {
	env := newTestEnv(t, afero.NewReadOnlyFs(afero.NewMemMapFs()), true)
	ctx := context.Background()

	err := env.svc.RecordNote(ctx, time.Time{}, "lost")
	require.Error(t, err)

	stats, err := env.store.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalActions)
	assert.Zero(t, stats.TotalRuns)
}

// failingStore rejects every write; the operations must still succeed.
type failingStore struct{ storage.Store }

func (failingStore) RecordRun(context.Context, *storage.Run) error { return assert.AnError }

func (failingStore) RecordAction(context.Context, *storage.Action) error { return assert.AnError }

func TestHistoryFailuresAreNotFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
	svc := New(Options{
		Writer:  rawlog.NewWriter(fs, logDir, logday.Normalizer{BoundaryHour: logday.DefaultBoundaryHour}),
		Engine:  aggregate.New(aggregate.Options{Fs: fs, LogDir: logDir, OutDir: outDir, Logger: logger}),
		History: failingStore{},
		Logger:  logger,
	})

	require.NoError(t, svc.RecordNote(context.Background(), time.Time{}, "still works"))
	_, err := fs.Stat(filepath.Join(outDir, aggregate.ManifestFile))
	assert.NoError(t, err)
}
