package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/devices", s.handleListDevices)

	r.Route("/power", func(r chi.Router) {
		r.Get("/current/{id}", s.handleCurrent)
		r.Get("/history/{id}", s.handleHistory)
		r.Get("/latest/{id}", s.handleLatest)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)

		r.Post("/collect/all", s.handleCollectAll)
		r.Post("/collect/{id}", s.handleCollectOne)

		r.Delete("/device/{id}", s.handleDeleteDevice)
		r.Delete("/older-than", s.handleDeleteOlderThan)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
