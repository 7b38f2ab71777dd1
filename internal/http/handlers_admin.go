package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"lofawell/internal/core"
	"lofawell/internal/engine"
)

func (s *Server) handleAdminSummary(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !actor.Admin {
		writeError(w, r, core.ErrForbidden)
		return
	}

	summary, err := s.deps.Usage.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminSummaryJSON(summary))
}

type decisionRequest struct {
	Status core.Status `json:"status"`
	Reason string      `json:"reason"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed request body", core.ErrValidation))
		return
	}

	app, err := s.deps.Review.Decide(r.Context(), actor, engine.Decision{
		AppID:  r.PathValue("id"),
		Status: req.Status,
		Reason: req.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationJSON(app))
}

type announcementRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSetAnnouncement(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !actor.Admin {
		writeError(w, r, core.ErrForbidden)
		return
	}

	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: malformed request body", core.ErrValidation))
		return
	}

	if err := s.deps.Settings.SetAnnouncement(r.Context(), req.Text); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": req.Text})
}

// handleExport rewrites the full export spreadsheet from the store.
// Synchronous: the admin waits for the export to finish.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !actor.Admin {
		writeError(w, r, core.ErrForbidden)
		return
	}

	if s.deps.Exporter == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "export is not configured"})
		return
	}

	apps, err := s.deps.Repo.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Exporter.ExportAll(r.Context(), apps); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Admin export completed", "count", len(apps), "admin", actor.ID)
	writeJSON(w, http.StatusOK, map[string]int{"exported": len(apps)})
}
