package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/retention"
	"codeberg.org/mutker/plugmon/internal/storage"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryHours = 24
	defaultHistoryLimit = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	database := "ok"
	if err := s.app.Store.HealthCheck(r.Context()); err != nil {
		s.logger.ErrorWithCode(err).Msg("Health check failed")
		status = http.StatusServiceUnavailable
		database = "error"
	}

	writeJSON(w, status, map[string]any{
		"status":             http.StatusText(status),
		"database":           database,
		"collection_enabled": s.app.Client != nil,
		"timestamp":          time.Now().Unix(),
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.app.Client == nil {
		writeError(w, errors.New().WithMessage(errors.ErrConfiguration, "switchbot credentials not configured"))
		return
	}

	devices, err := s.app.Client.ListDevices(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(devices),
		"devices": devices,
	})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	reading, err := s.app.Collector.Current(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	hours, err := intParam(r, "hours", defaultHistoryHours)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	var readings []storage.Reading
	if hours > 0 {
		readings, err = s.app.Store.RangeSince(r.Context(), deviceID, hours)
	} else {
		readings, err = s.app.Store.Recent(r.Context(), deviceID, limit)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"count":     len(readings),
		"readings":  readings,
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	reading, err := s.app.Store.Latest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = storage.AllDevices
	}

	hours, err := intParam(r, "hours", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	rows, err := s.app.Store.ExportCSV(r.Context(), &buf, deviceID, hours)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("power_%s_%s.csv", deviceID, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Row-Count", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // the client may have gone away
	buf.WriteTo(w)
}

func (s *Server) handleCollectAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.app.Collector.CollectAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCollectOne(w http.ResponseWriter, r *http.Request) {
	reading, err := s.app.Collector.CollectOne(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	confirm, err := boolParam(r, "confirm")
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.app.Retention.DeleteByDevice(r.Context(), deviceID, confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":       deviceID,
		"deleted_records": deleted,
	})
}

func (s *Server) handleDeleteOlderThan(w http.ResponseWriter, r *http.Request) {
	var cutoff retention.Cutoff
	var err error

	for name, dst := range map[string]*int{
		"days":    &cutoff.Days,
		"hours":   &cutoff.Hours,
		"minutes": &cutoff.Minutes,
	} {
		if *dst, err = intParam(r, name, 0); err != nil {
			writeError(w, err)
			return
		}
	}

	confirm, err := boolParam(r, "confirm")
	if err != nil {
		writeError(w, err)
		return
	}

	deleted, err := s.app.Retention.DeleteOlderThan(r.Context(), cutoff, confirm)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cutoff_minutes":  cutoff.TotalMinutes(),
		"deleted_records": deleted,
	})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New().WithMessage(errors.ErrValidation, fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// boolParam reads an optional boolean query parameter; absent means false.
func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.New().WithMessage(errors.ErrValidation, fmt.Sprintf("%s must be true or false", name))
	}
	return v, nil
}
