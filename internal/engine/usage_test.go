package engine

import (
	"testing"
	"time"

	"lofawell/internal/core"
	"lofawell/internal/policy"
)

func testTable(t *testing.T) *policy.Table {
	t.Helper()
	table, err := policy.Default()
	if err != nil {
		t.Fatalf("load default policy: %v", err)
	}
	return table
}

func approvedApp(user string, cat core.Category, amount int64, at time.Time) core.Application {
	return core.Application{
		ID: at.Format("20060102150405.000"), UserID: user, Category: cat,
		SubmittedAt: at, Amount: amount, Status: core.StatusApproved,
	}
}

func TestAggregateWindows(t *testing.T) {
	table := testTable(t)
	ref := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

	apps := []core.Application{
		approvedApp("E100", core.HousingSupport, 50000, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
		approvedApp("E100", core.HousingSupport, 30000, time.Date(2026, 4, 9, 0, 0, 0, 0, time.UTC)),
		approvedApp("E100", core.MedicalSupport, 20000, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
		// Different year: never counted.
		approvedApp("E100", core.HousingSupport, 99999, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)),
	}

	report := Aggregate(apps, ref, table)

	if got := report.Usage(core.HousingSupport, core.WindowYear); got != 80000 {
		t.Fatalf("housing year total = %d, want 80000", got)
	}
	if got := report.Usage(core.HousingSupport, core.WindowMonth); got != 30000 {
		t.Fatalf("housing month total = %d, want 30000", got)
	}
	if got := report.Usage(core.HousingSupport, core.WindowHalf); got != 80000 {
		t.Fatalf("housing half total = %d, want 80000", got)
	}
	// Shared pool combines housing and medical for the year.
	if got := report.Pools["core-welfare"]; got != 100000 {
		t.Fatalf("pool total = %d, want 100000", got)
	}
}

func TestAggregateIgnoresNonApproved(t *testing.T) {
	table := testTable(t)
	ref := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	for _, status := range []core.Status{core.StatusPending, core.StatusRejected, core.StatusCancelled} {
		app := approvedApp("E1", core.HousingSupport, 70000, at)
		app.Status = status
		if status == core.StatusRejected {
			app.RejectReason = "incomplete"
		}
		report := Aggregate([]core.Application{app}, ref, table)
		if got := report.Usage(core.HousingSupport, core.WindowYear); got != 0 {
			t.Fatalf("status %s contributed %d, want 0", status, got)
		}
		if got := report.Pools["core-welfare"]; got != 0 {
			t.Fatalf("status %s pool total %d, want 0", status, got)
		}
	}
}

func TestAggregateIsPure(t *testing.T) {
	table := testTable(t)
	ref := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	apps := []core.Application{
		approvedApp("E1", core.CulturalActivity, 1000, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)),
	}
	first := Aggregate(apps, ref, table)
	second := Aggregate(apps, ref, table)
	if first.Usage(core.CulturalActivity, core.WindowHalf) != second.Usage(core.CulturalActivity, core.WindowHalf) {
		t.Fatal("aggregation is not idempotent")
	}
}

func TestHalfYearPartition(t *testing.T) {
	// Every month maps to exactly one half.
	for m := time.January; m <= time.December; m++ {
		h := core.HalfOf(m)
		if h != 1 && h != 2 {
			t.Fatalf("month %d mapped to half %d", m, h)
		}
		want := 1
		if m >= time.July {
			want = 2
		}
		if h != want {
			t.Fatalf("month %d mapped to half %d, want %d", m, h, want)
		}
	}

	// June and July of the same year never share a half-year bucket.
	table := testTable(t)
	june := approvedApp("E1", core.CulturalActivity, 100, time.Date(2026, 6, 30, 23, 59, 0, 0, time.UTC))
	july := approvedApp("E1", core.CulturalActivity, 200, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))

	h1 := Aggregate([]core.Application{june, july}, june.SubmittedAt, table)
	if got := h1.Usage(core.CulturalActivity, core.WindowHalf); got != 100 {
		t.Fatalf("H1 total = %d, want 100", got)
	}
	h2 := Aggregate([]core.Application{june, july}, july.SubmittedAt, table)
	if got := h2.Usage(core.CulturalActivity, core.WindowHalf); got != 200 {
		t.Fatalf("H2 total = %d, want 200", got)
	}
}
