// Package engine implements the benefit usage and limit enforcement
// rules: usage aggregation over calendar windows, cap evaluation with
// signed headroom, duplicate-submission detection, the application
// lifecycle, and the admin review dispatch.
package engine

import (
	"time"

	"lofawell/internal/core"
	"lofawell/internal/policy"
)

// UsageKey addresses one aggregated total.
type UsageKey struct {
	Category core.Category
	Window   core.WindowKind
}

// UsageReport holds a user's approved usage relative to a reference
// date: per-category totals for the current month, half-year and year,
// plus one combined total per shared pool. Derived, never persisted.
type UsageReport struct {
	Reference time.Time
	Totals    map[UsageKey]int64
	Pools     map[string]int64
}

// Usage returns the aggregated total for a category and window.
func (r UsageReport) Usage(c core.Category, w core.WindowKind) int64 {
	return r.Totals[UsageKey{Category: c, Window: w}]
}

// Aggregate buckets approved application amounts into the month, half
// and year windows containing ref, and into each shared pool of the
// policy table. Non-approved applications contribute nothing. The same
// application counts toward every window it falls in, but never twice
// within one window. Pure function of its inputs.
func Aggregate(apps []core.Application, ref time.Time, table *policy.Table) UsageReport {
	report := UsageReport{
		Reference: ref,
		Totals:    make(map[UsageKey]int64),
		Pools:     make(map[string]int64),
	}
	for _, p := range table.Pools {
		report.Pools[p.Name] = 0
	}

	for _, app := range apps {
		if app.Status != core.StatusApproved {
			continue
		}
		for _, w := range []core.WindowKind{core.WindowMonth, core.WindowHalf, core.WindowYear} {
			if core.InWindow(app.SubmittedAt, ref, w) {
				report.Totals[UsageKey{Category: app.Category, Window: w}] += app.Amount
			}
		}
		if pool, ok := table.PoolFor(app.Category); ok {
			if core.InWindow(app.SubmittedAt, ref, pool.Window) {
				report.Pools[pool.Name] += app.Amount
			}
		}
	}
	return report
}
