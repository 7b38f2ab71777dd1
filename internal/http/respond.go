package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lofawell/internal/core"
	"lofawell/internal/engine"
	applog "lofawell/internal/log"
)

var errMissingIdentity = errors.New("missing employee identity")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps engine errors onto status codes. Validation details
// are safe to echo; internal errors are not.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errMissingIdentity):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, core.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, core.ErrDuplicateSubmission):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "duplicate submission"})
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		applog.FromContext(r.Context()).Error("Internal error", "error", err, "url", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

type applicationJSON struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Category      core.Category `json:"category"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	Amount        int64         `json:"amount"`
	Status        core.Status   `json:"status"`
	RejectReason  string        `json:"reject_reason,omitempty"`
	AttachmentRef string        `json:"attachment_ref,omitempty"`
	TargetName    string        `json:"target_name,omitempty"`
	Account       string        `json:"account,omitempty"`
	Detail        string        `json:"detail,omitempty"`
	Department    string        `json:"department,omitempty"`
	Rank          string        `json:"rank,omitempty"`
}

func toApplicationJSON(app core.Application) applicationJSON {
	return applicationJSON{
		ID:            app.ID,
		UserID:        app.UserID,
		Category:      app.Category,
		SubmittedAt:   app.SubmittedAt,
		Amount:        app.Amount,
		Status:        app.Status,
		RejectReason:  app.RejectReason,
		AttachmentRef: app.AttachmentRef,
		TargetName:    app.TargetName,
		Account:       app.Account,
		Detail:        app.Detail,
		Department:    app.Department,
		Rank:          app.Rank,
	}
}

func toApplicationList(apps []core.Application) []applicationJSON {
	out := make([]applicationJSON, len(apps))
	for i, app := range apps {
		out[i] = toApplicationJSON(app)
	}
	return out
}

type adminSummaryJSON struct {
	Total    int                                            `json:"total"`
	Pending  int                                            `json:"pending"`
	Approved int                                            `json:"approved"`
	Rejected int                                            `json:"rejected"`
	ByUser   map[string]map[core.Category][]applicationJSON `json:"by_user"`
}

func toAdminSummaryJSON(sum engine.AdminSummary) adminSummaryJSON {
	out := adminSummaryJSON{
		Total:    sum.Total,
		Pending:  sum.Pending,
		Approved: sum.Approved,
		Rejected: sum.Rejected,
		ByUser:   make(map[string]map[core.Category][]applicationJSON, len(sum.ByUser)),
	}
	for userID, byCat := range sum.ByUser {
		cats := make(map[core.Category][]applicationJSON, len(byCat))
		for cat, apps := range byCat {
			cats[cat] = toApplicationList(apps)
		}
		out.ByUser[userID] = cats
	}
	return out
}

type ruleStatusJSON struct {
	Category  core.Category   `json:"category,omitempty"`
	Pool      string          `json:"pool,omitempty"`
	Window    core.WindowKind `json:"window"`
	Cap       int64           `json:"cap"`
	Usage     int64           `json:"usage"`
	Remaining int64           `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
}

type usageOverviewJSON struct {
	Reference time.Time        `json:"reference"`
	Statuses  []ruleStatusJSON `json:"statuses"`
}

func toUsageOverviewJSON(ov engine.UsageOverview) usageOverviewJSON {
	out := usageOverviewJSON{
		Reference: ov.Report.Reference,
		Statuses:  make([]ruleStatusJSON, len(ov.Statuses)),
	}
	for i, s := range ov.Statuses {
		out.Statuses[i] = ruleStatusJSON{
			Category:  s.Category,
			Pool:      s.Pool,
			Window:    s.Window,
			Cap:       s.Cap,
			Usage:     s.Usage,
			Remaining: s.Remaining(),
			Exceeded:  s.Exceeded(),
		}
	}
	return out
}
