package engine

import (
	"errors"
	"testing"
	"time"

	"lofawell/internal/core"
)

func TestCheckDuplicate(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		prior    []core.Application
		category core.Category
		amount   int64
		wantDup  bool
	}{
		{
			name: "identical within five minutes",
			prior: []core.Application{
				approvedApp("E1", core.MedicalSupport, 50000, now.Add(-2*time.Minute)),
			},
			category: core.MedicalSupport,
			amount:   50000,
			wantDup:  true,
		},
		{
			name: "identical after six minutes",
			prior: []core.Application{
				approvedApp("E1", core.MedicalSupport, 50000, now.Add(-6*time.Minute)),
			},
			category: core.MedicalSupport,
			amount:   50000,
			wantDup:  false,
		},
		{
			name: "different amount within one minute",
			prior: []core.Application{
				approvedApp("E1", core.MedicalSupport, 50000, now.Add(-time.Minute)),
			},
			category: core.MedicalSupport,
			amount:   60000,
			wantDup:  false,
		},
		{
			name: "different category within one minute",
			prior: []core.Application{
				approvedApp("E1", core.MedicalSupport, 50000, now.Add(-time.Minute)),
			},
			category: core.HousingSupport,
			amount:   50000,
			wantDup:  false,
		},
		{
			name:     "no prior submissions",
			category: core.MedicalSupport,
			amount:   50000,
			wantDup:  false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckDuplicate(tc.prior, tc.category, tc.amount, now)
			if tc.wantDup && !errors.Is(err, core.ErrDuplicateSubmission) {
				t.Fatalf("expected duplicate error, got %v", err)
			}
			if !tc.wantDup && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
		})
	}
}

func TestCheckDuplicateBoundedLookback(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// The matching record is pushed beyond the lookback bound by a
	// pile of newer non-matching entries.
	var prior []core.Application
	for i := 0; i < duplicateLookback; i++ {
		prior = append(prior, approvedApp("E1", core.HousingSupport, int64(1000+i), now.Add(-time.Minute)))
	}
	prior = append(prior, approvedApp("E1", core.MedicalSupport, 50000, now.Add(-time.Minute)))

	if err := CheckDuplicate(prior, core.MedicalSupport, 50000, now); err != nil {
		t.Fatalf("match beyond lookback bound must pass, got %v", err)
	}
}
