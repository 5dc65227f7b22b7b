// Package api exposes stored readings and collection over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/plugmon/internal/app"
	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	// Collection waits on the upstream API for every device.
	writeTimeout    = 5 * time.Minute
	idleTimeout     = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	app    *app.App
	logger logger.Logger
}

func New(a *app.App) *Server {
	return &Server{
		app:    a,
		logger: logger.With("api"),
	}
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errFactory := errors.New()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(errors.ErrInitFailed, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}
