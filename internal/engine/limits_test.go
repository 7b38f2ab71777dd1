package engine

import (
	"testing"
	"time"

	"lofawell/internal/core"
)

func TestEvaluateHeadroom(t *testing.T) {
	table := testTable(t)
	eval := NewEvaluator(table)
	ref := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

	apps := []core.Application{
		approvedApp("E100", core.HousingSupport, 50000, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
		approvedApp("E100", core.HousingSupport, 30000, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)),
	}
	report := Aggregate(apps, ref, table)

	var pool, month RuleStatus
	for _, s := range eval.Evaluate(report) {
		switch {
		case s.Pool == "core-welfare":
			pool = s
		case s.Category == core.HousingSupport && s.Window == core.WindowMonth:
			month = s
		}
	}

	if pool.Headroom != 4720000 {
		t.Fatalf("pool headroom = %d, want 4720000", pool.Headroom)
	}
	if month.Headroom != 70000 {
		t.Fatalf("monthly headroom = %d, want 70000", month.Headroom)
	}
}

func TestWouldExceedHalfYearCap(t *testing.T) {
	table := testTable(t)
	eval := NewEvaluator(table)
	ref := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	report := Aggregate(nil, ref, table)

	// Cap is 300000 for the half; 310000 with zero prior usage exceeds.
	if !eval.WouldExceed(core.CulturalActivity, 310000, report) {
		t.Fatal("expected would-exceed for 310000 against 300000 cap")
	}
	if eval.WouldExceed(core.CulturalActivity, 300000, report) {
		t.Fatal("amount exactly at cap must not exceed")
	}
}

func TestNegativeHeadroomObservable(t *testing.T) {
	table := testTable(t)
	eval := NewEvaluator(table)
	ref := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	apps := []core.Application{
		approvedApp("E1", core.CulturalActivity, 310000, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)),
	}
	report := Aggregate(apps, ref, table)

	var status RuleStatus
	for _, s := range eval.StatusFor(core.CulturalActivity, report) {
		if s.Category == core.CulturalActivity {
			status = s
		}
	}
	if status.Headroom != -10000 {
		t.Fatalf("raw headroom = %d, want -10000", status.Headroom)
	}
	if !status.Exceeded() {
		t.Fatal("status should report exceeded")
	}
	if status.Remaining() != 0 {
		t.Fatalf("display remaining = %d, want 0", status.Remaining())
	}
}

func TestUnruledCategoryIsUnlimited(t *testing.T) {
	table := testTable(t)
	eval := NewEvaluator(table)
	report := Aggregate(nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), table)

	// family-event-support has no individual rule and no pool.
	if eval.WouldExceed(core.FamilyEventSupport, 1<<40, report) {
		t.Fatal("category without rules must never exceed")
	}
	if statuses := eval.StatusFor(core.FamilyEventSupport, report); len(statuses) != 0 {
		t.Fatalf("expected no statuses, got %d", len(statuses))
	}
}

func TestPoolAndIndividualEvaluatedIndependently(t *testing.T) {
	table := testTable(t)
	eval := NewEvaluator(table)
	ref := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)

	// 90000 this month: inside the 100000 monthly cap, so only the pool
	// could block a further 20000, and it does not.
	apps := []core.Application{
		approvedApp("E1", core.HousingSupport, 90000, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)),
	}
	report := Aggregate(apps, ref, table)

	if !eval.WouldExceed(core.HousingSupport, 20000, report) {
		t.Fatal("20000 more this month must break the monthly cap")
	}
	if eval.WouldExceed(core.HousingSupport, 10000, report) {
		t.Fatal("10000 more fits both the monthly cap and the pool")
	}
}
