package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"portwatch/internal/stats"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "7d"
	}
	region := r.URL.Query().Get("region")

	rows, err := s.Stats.Aggregate(r.Context(), timeRange, region)
	if err != nil {
		// Only an unrecognized window token fails before the store is hit.
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"targets":       rows,
		"time_range":    timeRange,
		"region_filter": region,
		"total_targets": len(rows),
	})
}

func (s *Server) handleExportStats(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "7d"
	}
	region := r.URL.Query().Get("region")

	rows, err := s.Stats.Aggregate(r.Context(), timeRange, region)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		writeErr(w, http.StatusNotFound, "no data in window")
		return
	}

	suffix := "_all"
	if region != "" && region != "all" {
		suffix = "_" + region
	}
	filename := fmt.Sprintf("monitor_stats_%s%s_%s.csv",
		timeRange, suffix, time.Now().UTC().Format("20060102_150405"))

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename=`+filename)
	if err := stats.WriteCSV(w, rows); err != nil {
		s.Logger.Warn("export_error", zap.Error(err))
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Stats.Summary(r.Context())
	if err != nil {
		s.Logger.Warn("summary_error", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "summary failed")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
