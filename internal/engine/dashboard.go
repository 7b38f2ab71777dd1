package engine

import (
	"context"
	"fmt"

	"lofawell/internal/core"
	"lofawell/internal/policy"
	"lofawell/internal/store"
)

// UsageOverview is what the employee dashboard renders: the aggregated
// report plus every rule's standing. Headroom values keep their sign;
// callers clamp for display via RuleStatus.Remaining.
type UsageOverview struct {
	Report   UsageReport  `json:"report"`
	Statuses []RuleStatus `json:"statuses"`
}

// AdminSummary mirrors the original admin dashboard: global status
// counts and every user's applications grouped per category.
type AdminSummary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`

	ByUser map[string]map[core.Category][]core.Application `json:"by_user"`
}

// UsageService computes dashboard views. Usage totals are recomputed
// from the store on every call; nothing is cached across requests.
type UsageService struct {
	repo  store.ApplicationRepository
	table *policy.Table
	eval  *Evaluator
	clock Clock
}

func NewUsageService(repo store.ApplicationRepository, table *policy.Table, clock Clock) *UsageService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &UsageService{repo: repo, table: table, eval: NewEvaluator(table), clock: clock}
}

// Overview aggregates one user's approved usage as of now and
// evaluates the full rule table against it.
func (s *UsageService) Overview(ctx context.Context, userID string) (UsageOverview, error) {
	apps, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return UsageOverview{}, fmt.Errorf("list applications: %w", err)
	}
	report := Aggregate(apps, s.clock.Now(), s.table)
	return UsageOverview{
		Report:   report,
		Statuses: s.eval.Evaluate(report),
	}, nil
}

// WouldExceed answers the advisory pre-submission check for one user:
// would adding amount to the category's current usage break any
// applicable rule. The engine never blocks on it.
func (s *UsageService) WouldExceed(ctx context.Context, userID string, category core.Category, amount int64) (bool, error) {
	apps, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("list applications: %w", err)
	}
	report := Aggregate(apps, s.clock.Now(), s.table)
	return s.eval.WouldExceed(category, amount, report), nil
}

// Summary builds the admin dashboard from a full scan.
func (s *UsageService) Summary(ctx context.Context) (AdminSummary, error) {
	apps, err := s.repo.ListAll(ctx)
	if err != nil {
		return AdminSummary{}, fmt.Errorf("list all applications: %w", err)
	}

	sum := AdminSummary{
		ByUser: make(map[string]map[core.Category][]core.Application),
	}
	for _, app := range apps {
		sum.Total++
		switch app.Status {
		case core.StatusPending:
			sum.Pending++
		case core.StatusApproved:
			sum.Approved++
		case core.StatusRejected:
			sum.Rejected++
		}
		byCat, ok := sum.ByUser[app.UserID]
		if !ok {
			byCat = make(map[core.Category][]core.Application)
			sum.ByUser[app.UserID] = byCat
		}
		byCat[app.Category] = append(byCat[app.Category], app)
	}
	return sum, nil
}
