package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"portwatch/internal/domain"
)

// Settings handlers are the write boundary: an invalid value never reaches
// the store and the previous valid setting stays in effect.

func (s *Server) handleGetInterval(w http.ResponseWriter, r *http.Request) {
	v, err := s.Settings.GetSetting(r.Context(), domain.SettingProbeInterval)
	if err != nil {
		writeErr(w, http.StatusNotFound, "probe interval not set")
		return
	}
	n, _ := strconv.Atoi(v)
	writeJSON(w, http.StatusOK, map[string]int{"probe_interval_seconds": n})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := domain.ValidateProbeInterval(req.Value); err != nil {
		writeErr(w, http.StatusBadRequest, "probe interval must be between 10 and 86400 seconds")
		return
	}
	if err := s.Settings.SetSetting(r.Context(), domain.SettingProbeInterval, strconv.Itoa(req.Value)); err != nil {
		s.Logger.Warn("set_interval_error", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "save failed")
		return
	}
	s.Logger.Info("interval_set", zap.Int("seconds", req.Value))
	writeJSON(w, http.StatusOK, map[string]int{"probe_interval_seconds": req.Value})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	v, err := s.Settings.GetSetting(r.Context(), domain.SettingTaskStatus)
	if err != nil {
		v = domain.TaskStopped
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_status": v})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := domain.ValidateTaskStatus(req.Status); err != nil {
		writeErr(w, http.StatusBadRequest, "status must be running or stopped")
		return
	}
	if err := s.Settings.SetSetting(r.Context(), domain.SettingTaskStatus, req.Status); err != nil {
		s.Logger.Warn("set_status_error", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "save failed")
		return
	}
	s.Logger.Info("task_status_set", zap.String("status", req.Status))
	writeJSON(w, http.StatusOK, map[string]string{"task_status": req.Status})
}
