// Package api exposes conversations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/narumiruna/lazyopenai"
)

const (
	DefaultIdleTTL        = 30 * time.Minute
	defaultRequestTimeout = 5 * time.Minute
	shutdownTimeout       = 30 * time.Second
)

type Server struct {
	client  lazyopenai.Completer
	opts    []lazyopenai.Option
	logger  zerolog.Logger
	store   *ConversationStore
	idleTTL time.Duration
}

// NewServer serves conversations over client. opts (model, tools, instruction...)
// apply to every conversation the server creates.
func NewServer(client lazyopenai.Completer, logger zerolog.Logger, opts ...lazyopenai.Option) *Server {
	return &Server{
		client:  client,
		opts:    opts,
		logger:  logger,
		store:   NewConversationStore(),
		idleTTL: DefaultIdleTTL,
	}
}

// SetIdleTTL changes how long an unused conversation is kept. Zero keeps them forever.
func (s *Server) SetIdleTTL(d time.Duration) { s.idleTTL = d }

// Store returns the live conversations.
func (s *Server) Store() *ConversationStore { return s.store }

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/send", s.handleSend)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleCreateConversation)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteConversation)
				r.Get("/messages", s.handleGetMessages)
				r.Post("/messages", s.handlePostMessage)
			})
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	if s.idleTTL > 0 {
		go s.sweep(done)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweep(done <-chan struct{}) {
	ticker := time.NewTicker(s.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if n := s.store.Cleanup(s.idleTTL); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("expired idle conversations")
			}
		}
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}
