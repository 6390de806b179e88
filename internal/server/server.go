// Package server exposes a draft store over HTTP so that editors on other
// machines can use it as their draft backend.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/logging"
	"github.com/Iron-Ham/quickcheck/internal/store"
)

const maxBodyBytes = 10 << 20

// Store is the persistence the server exposes. *store.Store implements it.
type Store interface {
	draft.Backend
	Get(ctx context.Context, id string) (*draft.Record, error)
	List(ctx context.Context, f store.Filter) ([]draft.Record, error)
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	Logger          *logging.Logger
}

// Server serves the draft API.
type Server struct {
	store   Store
	opts    Options
	logger  *logging.Logger
	handler http.Handler
}

// New builds a server over st.
func New(st Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		store:  st,
		opts:   opts,
		logger: opts.Logger.WithComponent("server"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	// Match on the escaped path so a draft ID may contain "/".
	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc("/drafts", s.createDraft).Methods(http.MethodPost)
	api.HandleFunc("/drafts", s.listDrafts).Methods(http.MethodGet)
	api.HandleFunc("/drafts/{id}", s.getDraft).Methods(http.MethodGet)
	api.HandleFunc("/drafts/{id}", s.updateDraft).Methods(http.MethodPut)
	api.HandleFunc("/drafts/{id}", s.deleteDraft).Methods(http.MethodDelete)
	api.HandleFunc("/drafts/{id}/archive", s.archiveDraft).Methods(http.MethodPost)
	api.HandleFunc("/drafts/{id}/submit", s.submitDraft).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: CodeNotFound})
	})

	var h http.Handler = r
	h = handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	if len(s.opts.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.opts.AllowedOrigins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(h)
	}
	return h
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("draft API listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down, draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.logger.Debug("request",
		"method", p.Request.Method,
		"path", p.URL.Path,
		"status", p.StatusCode,
		"bytes", p.Size,
		"duration_ms", time.Since(p.TimeStamp).Milliseconds(),
	)
}

type recoveryLogger struct {
	logger *logging.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("handler panic", "panic", fmt.Sprint(v...))
}
