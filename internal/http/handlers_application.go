package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"lofawell/internal/core"
	"lofawell/internal/engine"
)

// 10 MiB, matching the attachment size the upload form allows.
const maxUploadBytes = 10 << 20

type submitRequest struct {
	Category   core.Category `json:"category"`
	Amount     int64         `json:"amount"`
	TargetName string        `json:"target_name"`
	Account    string        `json:"account"`
	Detail     string        `json:"detail"`
	Department string        `json:"department"`
	Rank       string        `json:"rank"`
}

func (in submitRequest) toInput(attachmentRef string) engine.SubmitInput {
	return engine.SubmitInput{
		Category:      in.Category,
		Amount:        in.Amount,
		AttachmentRef: attachmentRef,
		TargetName:    in.TargetName,
		Account:       in.Account,
		Detail:        in.Detail,
		Department:    in.Department,
		Rank:          in.Rank,
	}
}

// parseSubmit accepts JSON or multipart form bodies. Multipart carries
// an optional attachment file that lands in blob storage.
func (s *Server) parseSubmit(r *http.Request) (engine.SubmitInput, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return engine.SubmitInput{}, fmt.Errorf("%w: malformed multipart body", core.ErrValidation)
		}

		amount, err := parseAmount(r.FormValue("amount"))
		if err != nil {
			return engine.SubmitInput{}, err
		}
		req := submitRequest{
			Category:   core.Category(r.FormValue("category")),
			Amount:     amount,
			TargetName: r.FormValue("target_name"),
			Account:    r.FormValue("account"),
			Detail:     r.FormValue("detail"),
			Department: r.FormValue("department"),
			Rank:       r.FormValue("rank"),
		}

		ref, err := s.saveAttachment(r)
		if err != nil {
			return engine.SubmitInput{}, err
		}
		return req.toInput(ref), nil
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return engine.SubmitInput{}, fmt.Errorf("%w: malformed request body", core.ErrValidation)
	}
	return req.toInput(""), nil
}

func (s *Server) saveAttachment(r *http.Request) (string, error) {
	file, header, err := r.FormFile("attachment")
	if err == http.ErrMissingFile {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: malformed attachment", core.ErrValidation)
	}
	defer file.Close()

	if s.deps.Blobs == nil {
		return "", fmt.Errorf("%w: attachments are not enabled", core.ErrValidation)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	ref, err := s.deps.Blobs.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	return ref, nil
}

// parseAmount tolerates thousands separators ("50,000") the way the
// legacy submission form sent them.
func parseAmount(raw string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, nil
	}
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", core.ErrValidation, raw)
	}
	return amount, nil
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in, err := s.parseSubmit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	app, err := s.deps.Applications.Submit(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApplicationJSON(app))
}

func (s *Server) handleListMine(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	apps, err := s.deps.Applications.ListMine(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationList(apps))
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in, err := s.parseSubmit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	app, err := s.deps.Applications.Resubmit(r.Context(), actor, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationJSON(app))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	app, err := s.deps.Applications.Cancel(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApplicationJSON(app))
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.deps.Applications.Remove(r.Context(), actor, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsageOverview(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ov, err := s.deps.Usage.Overview(r.Context(), actor.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUsageOverviewJSON(ov))
}

// handleUsageCheck answers the advisory pre-submission question: would
// this amount push the category over a cap. Informational only; a true
// answer does not block the subsequent submit.
func (s *Server) handleUsageCheck(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	category := core.Category(r.URL.Query().Get("category"))
	if !category.Valid() {
		writeError(w, r, core.ErrUnknownCategory)
		return
	}
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	exceeds, err := s.deps.Usage.WouldExceed(r.Context(), actor.ID, category, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"would_exceed": exceeds})
}

func (s *Server) handleGetAnnouncement(w http.ResponseWriter, r *http.Request) {
	if _, err := s.actor(r); err != nil {
		writeError(w, r, err)
		return
	}

	text, err := s.deps.Settings.Announcement(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}
