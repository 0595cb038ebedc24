package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"portwatch/internal/domain"
	"portwatch/internal/repo"
)

type targetPayload struct {
	Region         string `json:"region"`
	PublicIP       string `json:"public_ip"`
	Port           int    `json:"port"`
	BusinessSystem string `json:"business_system"`
	InternalIP     string `json:"internal_ip"`
	InternalPort   int    `json:"internal_port"`
	IsActive       *bool  `json:"is_active"`
}

func (p *targetPayload) apply(t *domain.Target) {
	t.Region = p.Region
	t.PublicIP = p.PublicIP
	t.Port = p.Port
	t.BusinessSystem = p.BusinessSystem
	t.InternalIP = p.InternalIP
	t.InternalPort = p.InternalPort
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		s.Logger.Warn("list_targets_error", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad id")
		return
	}
	t, err := s.Targets.Get(r.Context(), domain.TargetID(id))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "target not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "get failed")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p targetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeErr(w, http.StatusBadRequest, "bad payload")
		return
	}
	t := domain.Target{IsActive: true}
	p.apply(&t)
	if err := domain.ValidateTarget(&t); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Targets.Add(r.Context(), &t); err != nil {
		if errors.Is(err, repo.ErrDuplicateTarget) {
			writeErr(w, http.StatusConflict, "target already exists")
			return
		}
		s.Logger.Warn("add_target_error", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "add failed")
		return
	}
	s.Logger.Info("target_added",
		zap.Int64("id", int64(t.ID)),
		zap.String("addr", t.PublicIP),
		zap.Int("port", t.Port),
	)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad id")
		return
	}
	cur, err := s.Targets.Get(r.Context(), domain.TargetID(id))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "target not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "get failed")
		return
	}
	var p targetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeErr(w, http.StatusBadRequest, "bad payload")
		return
	}
	p.apply(cur)
	if err := domain.ValidateTarget(cur); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Targets.Update(r.Context(), cur); err != nil {
		if errors.Is(err, repo.ErrDuplicateTarget) {
			writeErr(w, http.StatusConflict, "target already exists")
			return
		}
		writeErr(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.Targets.Delete(r.Context(), domain.TargetID(id)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "target not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImportTargets ingests CSV rows: region, public_ip, port
// [, business_system]. A header row is skipped; duplicates count as skipped.
func (s *Server) handleImportTargets(w http.ResponseWriter, r *http.Request) {
	cr := csv.NewReader(r.Body)
	cr.FieldsPerRecord = -1

	var imported, skipped int
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeErr(w, http.StatusBadRequest, "malformed csv: "+err.Error())
			return
		}
		if first {
			first = false
			if len(rec) > 0 && rec[0] == "region" {
				continue
			}
		}
		if len(rec) < 3 {
			skipped++
			continue
		}
		port, err := strconv.Atoi(rec[2])
		if err != nil {
			skipped++
			continue
		}
		t := domain.Target{
			Region:   rec[0],
			PublicIP: rec[1],
			Port:     port,
			IsActive: true,
		}
		if len(rec) > 3 {
			t.BusinessSystem = rec[3]
		}
		if domain.ValidateTarget(&t) != nil {
			skipped++
			continue
		}
		if err := s.Targets.Add(r.Context(), &t); err != nil {
			skipped++
			continue
		}
		imported++
	}
	s.Logger.Info("targets_imported", zap.Int("imported", imported), zap.Int("skipped", skipped))
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported, "skipped": skipped})
}
