package cli

import (
	"bytes"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	goflags "github.com/jessevdk/go-flags"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/ulogme/internal/config"
	"github.com/runnerr0/ulogme/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// newTestEnv wires every component over a temp directory with an in-memory
// history store.
func newTestEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Sampling.LockDetection = false
	cfg.Refresh.Schedule = ""

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.NewMigrationRunner(db).Run())
	store, err := storage.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e := &env{
		cfg:       cfg,
		logger:    slogtest.Make(t, nil),
		clock:     quartz.NewReal(),
		logDir:    filepath.Join(root, "logs"),
		renderDir: filepath.Join(root, "render"),
		dbPath:    filepath.Join(root, "history.db"),
		store:     store,
	}
	e.wire(afero.NewOsFs())
	return e
}

// buildTestParser returns a parser whose commands are parsed but never
// executed.
func buildTestParser(t *testing.T) (*goflags.Parser, *GlobalFlags, *commands) {
	t.Helper()
	p, g, c := buildParser("test")
	p.CommandHandler = func(goflags.Commander, []string) error { return nil }
	return p, g, c
}

// isolateHome points the default config and data paths at a temp dir.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}
