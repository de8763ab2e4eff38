package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ndtworks/tubescan/internal/inspect"
)

type loadGeometryRequest struct {
	Holes []inspect.HoleInput `json:"holes"`
}

func (s *Server) loadGeometry(w http.ResponseWriter, r *http.Request) {
	var req loadGeometryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.engine.LoadGeometry(req.Holes); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	snap := s.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"holes":    len(snap.Holes),
		"bounds":   snap.Bounds,
		"centroid": snap.Centroid,
	})
}

func (s *Server) startSimulation(w http.ResponseWriter, _ *http.Request) {
	if s.newTicker == nil {
		writeError(w, http.StatusServiceUnavailable, "simulation driver unavailable")
		return
	}
	// The run outlives this request, so it is driven by the server's base
	// context rather than the request context.
	if err := s.engine.Start(s.baseCtx, s.newTicker()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(s.engine.State())})
}

func (s *Server) pauseSimulation(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Pause(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.engine.State())})
}

func (s *Server) resumeSimulation(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Resume(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.engine.State())})
}

func (s *Server) stopSimulation(w http.ResponseWriter, _ *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(s.engine.State())})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	sectors := make(map[string]inspect.SectorStats)
	for _, sec := range s.engine.Sectors() {
		sectors[sec.String()] = s.engine.SectorStats(sec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   string(s.engine.State()),
		"global":  s.engine.GlobalStats(),
		"sectors": sectors,
	})
}

func (s *Server) getSector(w http.ResponseWriter, r *http.Request) {
	sec, err := parseSector(chi.URLParam(r, "sector"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	found := false
	for _, known := range s.engine.Sectors() {
		if known == sec {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "sector not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sector": sec.String(),
		"stats":  s.engine.SectorStats(sec),
	})
}

func (s *Server) getPath(w http.ResponseWriter, _ *http.Request) {
	units := s.engine.Path()
	writeJSON(w, http.StatusOK, map[string]any{
		"units": units,
		"count": len(units),
	})
}

func (s *Server) getHole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "hole_id")
	hole, ok := s.engine.Hole(id)
	if !ok {
		writeError(w, http.StatusNotFound, "hole not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hole": hole})
}

func parseSector(raw string) (inspect.Sector, error) {
	trimmed := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(raw)), "Q")
	if trimmed == "" {
		return inspect.SectorNone, errors.New("sector is required")
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 {
		return inspect.SectorNone, errors.New("invalid sector")
	}
	return inspect.Sector(n), nil
}
