// Package server is the local HTTP surface used by the front end: it serves
// the render directory and accepts refresh, note and blog posts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"cdr.dev/slog/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/control"
	"github.com/runnerr0/ulogme/internal/storage"
)

// Response bodies understood by the front end.
const (
	ResultOK            = "OK"
	ResultNotUnderstood = "NOT_UNDERSTOOD"
	ResultFailed        = "FAILED"
)

// Controller is the subset of control.Service the server drives.
type Controller interface {
	RebuildAll(ctx context.Context, trigger storage.Trigger) (*aggregate.Result, error)
	RecordNote(ctx context.Context, instant time.Time, text string) error
	SetBlog(ctx context.Context, instant time.Time, text string) error
	Status(ctx context.Context, recent int) (*control.Status, error)
}

// Options configures a Server.
type Options struct {
	Addr       string
	RenderDir  string
	Controller Controller
	Logger     slog.Logger
}

// Server serves the ulogme UI and control endpoints.
type Server struct {
	addr      string
	renderDir string
	ctrl      Controller
	logger    slog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	return &Server{
		addr:      opts.Addr,
		renderDir: opts.RenderDir,
		ctrl:      opts.Controller,
		logger:    opts.Logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/refresh", s.postRefresh)
	r.Post("/addnote", s.postNote)
	r.Post("/blog", s.postBlog)
	r.Post("/*", func(rw http.ResponseWriter, _ *http.Request) {
		writeResult(rw, http.StatusOK, ResultNotUnderstood)
	})
	r.Get("/status", s.getStatus)
	r.Get("/*", http.FileServer(http.Dir(s.renderDir)).ServeHTTP)
	return r
}

// Run listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info(ctx, "serving ulogme", slog.F("url", "http://"+ln.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// detach keeps request values but drops cancellation. Mutations run to
// completion even if the client hangs up.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) postRefresh(rw http.ResponseWriter, r *http.Request) {
	if _, err := s.ctrl.RebuildAll(detach(r), storage.TriggerRefresh); err != nil {
		s.fail(rw, r, "refresh", err)
		return
	}
	writeResult(rw, http.StatusOK, ResultOK)
}

func (s *Server) postNote(rw http.ResponseWriter, r *http.Request) {
	instant, ok := s.formTime(rw, r)
	if !ok {
		return
	}
	if err := s.ctrl.RecordNote(detach(r), instant, r.PostFormValue("note")); err != nil {
		s.fail(rw, r, "add note", err)
		return
	}
	writeResult(rw, http.StatusOK, ResultOK)
}

func (s *Server) postBlog(rw http.ResponseWriter, r *http.Request) {
	instant, ok := s.formTime(rw, r)
	if !ok {
		return
	}
	if err := s.ctrl.SetBlog(detach(r), instant, r.PostFormValue("post")); err != nil {
		s.fail(rw, r, "set blog", err)
		return
	}
	writeResult(rw, http.StatusOK, ResultOK)
}

func (s *Server) getStatus(rw http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Status(r.Context(), 10)
	if err != nil {
		s.logger.Error(r.Context(), "read status", slog.Error(err))
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(st)
}

// formTime parses the unix-seconds "time" form field. An absent field means
// now; a malformed one is answered with 400.
func (s *Server) formTime(rw http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.PostFormValue("time")
	if raw == "" {
		return time.Time{}, true
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn(r.Context(), "bad time field", slog.F("path", r.URL.Path), slog.F("time", raw))
		writeResult(rw, http.StatusBadRequest, ResultNotUnderstood)
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}

func (s *Server) fail(rw http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(r.Context(), op+" failed", slog.Error(err))
	writeResult(rw, http.StatusInternalServerError, ResultFailed)
}

func writeResult(rw http.ResponseWriter, status int, body string) {
	rw.Header().Set("Content-Type", "text/html")
	rw.WriteHeader(status)
	_, _ = rw.Write([]byte(body))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(rw, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "http request",
			slog.F("method", r.Method),
			slog.F("path", r.URL.Path),
			slog.F("status", ww.Status()),
			slog.F("elapsed", time.Since(start)),
		)
	})
}
