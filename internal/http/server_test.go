package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lofawell/internal/core"
	"lofawell/internal/engine"
	"lofawell/internal/policy"
	"lofawell/internal/store/memory"
)

type testEnv struct {
	server *Server
	repo   *memory.Store
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	repo := memory.New()
	table, err := policy.Default()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	clock := engine.FixedClock{T: now}
	deps := Deps{
		Applications: engine.NewApplicationService(repo, clock, nil),
		Review:       engine.NewReviewService(repo, repo, nil),
		Usage:        engine.NewUsageService(repo, table, clock),
		Users:        repo,
		Settings:     repo,
		Repo:         repo,
	}
	s := NewServer(":0", deps)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return &testEnv{server: s, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, employee string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if employee != "" {
		req.Header.Set("X-Employee-ID", employee)
	}
	rec := httptest.NewRecorder()
	e.server.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeApp(t *testing.T, rec *httptest.ResponseRecorder) applicationJSON {
	t.Helper()
	var app applicationJSON
	if err := json.NewDecoder(rec.Body).Decode(&app); err != nil {
		t.Fatalf("decode application: %v", err)
	}
	return app
}

func seedAdmin(t *testing.T, env *testEnv) {
	t.Helper()
	err := env.repo.PutUser(context.Background(), core.User{ID: "admin1", Name: "Park", Admin: true})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func TestSubmitAndListFlow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)

	rec := env.do(t, http.MethodPost, "/api/applications", "E100", submitRequest{
		Category: core.HousingSupport,
		Amount:   50000,
		Detail:   "rent deposit",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	app := decodeApp(t, rec)
	if app.Status != core.StatusPending || app.UserID != "E100" {
		t.Fatalf("unexpected application: %+v", app)
	}

	rec = env.do(t, http.MethodGet, "/api/applications", "E100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var apps []applicationJSON
	if err := json.NewDecoder(rec.Body).Decode(&apps); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(apps) != 1 || apps[0].ID != app.ID {
		t.Fatalf("list = %+v", apps)
	}
}

func TestSubmitRequiresIdentity(t *testing.T) {
	env := newTestEnv(t, time.Now())

	rec := env.do(t, http.MethodPost, "/api/applications", "", submitRequest{
		Category: core.HousingSupport, Amount: 1,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSubmitErrors(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)

	// Unknown category: 422.
	rec := env.do(t, http.MethodPost, "/api/applications", "E100", submitRequest{
		Category: "snacks", Amount: 100,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid category status = %d", rec.Code)
	}

	// Exact duplicate within the guard window: 409.
	body := submitRequest{Category: core.MedicalSupport, Amount: 30000}
	if rec := env.do(t, http.MethodPost, "/api/applications", "E100", body); rec.Code != http.StatusCreated {
		t.Fatalf("first submit status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/applications", "E100", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
}

func TestCancelAndRemove(t *testing.T) {
	env := newTestEnv(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	rec := env.do(t, http.MethodPost, "/api/applications", "E100", submitRequest{
		Category: core.HousingSupport, Amount: 50000,
	})
	app := decodeApp(t, rec)

	rec = env.do(t, http.MethodPost, "/api/applications/"+app.ID+"/cancel", "E100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", rec.Code)
	}
	if got := decodeApp(t, rec); got.Status != core.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}

	// Non-owner delete is forbidden.
	rec = env.do(t, http.MethodDelete, "/api/applications/"+app.ID, "E200", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("intruder delete status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/applications/"+app.ID, "E100", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, "/api/applications/"+app.ID, "E100", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}

func TestDecisionEndpoint(t *testing.T) {
	env := newTestEnv(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	seedAdmin(t, env)

	app := decodeApp(t, env.do(t, http.MethodPost, "/api/applications", "E100", submitRequest{
		Category: core.HousingSupport, Amount: 50000,
	}))

	// Non-admin cannot decide.
	rec := env.do(t, http.MethodPost, "/api/admin/applications/"+app.ID+"/decision", "E100", decisionRequest{
		Status: core.StatusApproved,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin decision status = %d", rec.Code)
	}

	// Reject without reason: 422.
	rec = env.do(t, http.MethodPost, "/api/admin/applications/"+app.ID+"/decision", "admin1", decisionRequest{
		Status: core.StatusRejected,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reject without reason status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/applications/"+app.ID+"/decision", "admin1", decisionRequest{
		Status: core.StatusApproved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decodeApp(t, rec); got.Status != core.StatusApproved {
		t.Fatalf("status = %s, want approved", got.Status)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/applications/nope/decision", "admin1", decisionRequest{
		Status: core.StatusApproved,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown app status = %d", rec.Code)
	}
}

func TestUsageEndpoints(t *testing.T) {
	env := newTestEnv(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	seedAdmin(t, env)

	app := decodeApp(t, env.do(t, http.MethodPost, "/api/applications", "E100", submitRequest{
		Category: core.CulturalActivity, Amount: 250000,
	}))
	rec := env.do(t, http.MethodPost, "/api/admin/applications/"+app.ID+"/decision", "admin1", decisionRequest{
		Status: core.StatusApproved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/usage", "E100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("usage status = %d", rec.Code)
	}
	var ov usageOverviewJSON
	if err := json.NewDecoder(rec.Body).Decode(&ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	found := false
	for _, s := range ov.Statuses {
		if s.Category == core.CulturalActivity {
			found = true
			if s.Usage != 250000 || s.Remaining != 50000 {
				t.Fatalf("cultural-activity status: %+v", s)
			}
		}
	}
	if !found {
		t.Fatal("no cultural-activity rule in overview")
	}

	// 250000 used of a 300000 half cap: 60000 more would exceed.
	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/api/usage/check?category=%s&amount=60000", core.CulturalActivity), "E100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d", rec.Code)
	}
	var check map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&check); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if !check["would_exceed"] {
		t.Fatal("expected would_exceed = true")
	}

	// Exactly at the cap passes.
	rec = env.do(t, http.MethodGet,
		fmt.Sprintf("/api/usage/check?category=%s&amount=50000", core.CulturalActivity), "E100", nil)
	if err := json.NewDecoder(rec.Body).Decode(&check); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if check["would_exceed"] {
		t.Fatal("amount reaching the cap exactly must not exceed")
	}
}

func TestAdminSummaryAccess(t *testing.T) {
	env := newTestEnv(t, time.Now())
	seedAdmin(t, env)

	if rec := env.do(t, http.MethodGet, "/api/admin/summary", "E100", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin summary status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/applications", "E100", submitRequest{
		Category: core.HousingSupport,
		Amount:   50000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/admin/summary", "admin1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin summary status = %d", rec.Code)
	}

	// Grouped applications use the same snake_case shape as every
	// other endpoint.
	var summary struct {
		Total   int                                           `json:"total"`
		Pending int                                           `json:"pending"`
		ByUser  map[string]map[core.Category][]map[string]any `json:"by_user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total != 1 || summary.Pending != 1 {
		t.Fatalf("counts = %+v", summary)
	}
	grouped := summary.ByUser["E100"][core.HousingSupport]
	if len(grouped) != 1 {
		t.Fatalf("grouped applications = %+v", summary.ByUser)
	}
	if grouped[0]["user_id"] != "E100" {
		t.Fatalf("expected snake_case user_id field, got %v", grouped[0])
	}
	if _, ok := grouped[0]["submitted_at"]; !ok {
		t.Fatalf("expected snake_case submitted_at field, got %v", grouped[0])
	}
}

func TestAnnouncementRoundTrip(t *testing.T) {
	env := newTestEnv(t, time.Now())
	seedAdmin(t, env)

	rec := env.do(t, http.MethodPut, "/api/admin/announcement", "admin1", announcementRequest{
		Text: "submissions close on the 25th",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set announcement status = %d", rec.Code)
	}

	// Non-admin cannot set it.
	if rec := env.do(t, http.MethodPut, "/api/admin/announcement", "E100", announcementRequest{Text: "x"}); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin set status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/announcement", "E100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get announcement status = %d", rec.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["text"] != "submissions close on the 25th" {
		t.Fatalf("text = %q", got["text"])
	}
}

func TestExportWithoutExporter(t *testing.T) {
	env := newTestEnv(t, time.Now())
	seedAdmin(t, env)

	if rec := env.do(t, http.MethodPost, "/api/admin/export", "admin1", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("export status = %d, want 503", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, time.Now())

	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := env.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}
