package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/spf13/afero"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/config"
	"github.com/runnerr0/ulogme/internal/control"
	"github.com/runnerr0/ulogme/internal/logday"
	"github.com/runnerr0/ulogme/internal/logging"
	"github.com/runnerr0/ulogme/internal/rawlog"
	"github.com/runnerr0/ulogme/internal/sampler"
	"github.com/runnerr0/ulogme/internal/storage"
)

// keyboard is both halves of the keystroke source.
type keyboard interface {
	sampler.KeyboardDetector
	sampler.KeyListener
}

// env wires the components a command needs from the loaded config.
type env struct {
	cfg       *config.Config
	logger    slog.Logger
	clock     quartz.Clock
	logDir    string
	renderDir string
	dbPath    string

	writer *rawlog.Writer
	svc    *control.Service
	store  *storage.SQLiteStore // nil when the history database is unavailable

	titles   sampler.TitleSource
	keyboard keyboard
	locks    sampler.LockSource

	closers []func()
}

// resolveEnv returns the injected env, or builds one from the config named
// by the global flags. The returned func releases it.
func resolveEnv(injected *env, globals *GlobalFlags) (*env, func(), error) {
	if injected != nil {
		return injected, func() {}, nil
	}
	e, err := newEnv(globals)
	if err != nil {
		return nil, func() {}, err
	}
	return e, e.Close, nil
}

func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

func newEnv(globals *GlobalFlags) (*env, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	verbose := globals != nil && globals.Verbose
	logger, closeLog, err := logging.New(os.Stderr, cfg.Logging, verbose)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	logDir, err := cfg.LogDir()
	if err != nil {
		closeLog()
		return nil, err
	}
	renderDir, err := cfg.RenderDir()
	if err != nil {
		closeLog()
		return nil, err
	}
	dbPath, err := cfg.HistoryDBPath()
	if err != nil {
		closeLog()
		return nil, err
	}

	e := &env{
		cfg:       cfg,
		logger:    logger,
		clock:     quartz.NewReal(),
		logDir:    logDir,
		renderDir: renderDir,
		dbPath:    dbPath,
		titles:    sampler.XdotoolTitleSource{Timeout: cfg.Sampling.CommandTimeout},
		keyboard:  sampler.XinputKeyboard{Timeout: cfg.Sampling.CommandTimeout},
		locks:     sampler.DBusLockWatcher{Logger: logger.Named("lock")},
		closers:   []func(){closeLog},
	}

	store, db, err := storage.Open(dbPath)
	if err != nil {
		logger.Warn(context.Background(), "history store unavailable, continuing without it",
			slog.F("path", dbPath), slog.Error(err))
	} else {
		e.store = store
		e.closers = append(e.closers, func() { _ = db.Close() }, func() { _ = store.Close() })
	}

	e.wire(afero.NewOsFs())
	return e, nil
}

// wire builds the writer, engine and control service over fsys.
func (e *env) wire(fsys afero.Fs) {
	e.writer = rawlog.NewWriter(fsys, e.logDir, logday.Normalizer{BoundaryHour: e.cfg.Sampling.DayBoundaryHour})
	engine := aggregate.New(aggregate.Options{
		Fs:     fsys,
		LogDir: e.logDir,
		OutDir: e.renderDir,
		Logger: e.logger.Named("aggregate"),
	})
	opts := control.Options{
		Writer: e.writer,
		Engine: engine,
		Clock:  e.clock,
		Logger: e.logger.Named("control"),
	}
	if e.store != nil {
		opts.History = e.store
	}
	e.svc = control.New(opts)
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// instantFromUnix converts a --time flag; zero means now.
func instantFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
