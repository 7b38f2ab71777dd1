package engine

import (
	"lofawell/internal/core"
	"lofawell/internal/policy"
)

// RuleStatus is the evaluation of one limit rule against aggregated
// usage. Headroom is the raw signed value (negative when exceeded);
// Remaining clamps to zero and is what dashboards show.
type RuleStatus struct {
	Category core.Category   `json:"category,omitempty"`
	Pool     string          `json:"pool,omitempty"`
	Window   core.WindowKind `json:"window"`
	Cap      int64           `json:"cap"`
	Usage    int64           `json:"usage"`
	Headroom int64           `json:"headroom"`
}

func (s RuleStatus) Remaining() int64 {
	if s.Headroom < 0 {
		return 0
	}
	return s.Headroom
}

func (s RuleStatus) Exceeded() bool { return s.Headroom < 0 }

// Evaluator applies a policy table to usage reports. It is advisory:
// nothing here blocks a submission, it only reports where usage stands.
type Evaluator struct {
	table *policy.Table
}

func NewEvaluator(table *policy.Table) *Evaluator {
	return &Evaluator{table: table}
}

// Evaluate computes the status of every individual rule and pool.
func (e *Evaluator) Evaluate(report UsageReport) []RuleStatus {
	out := make([]RuleStatus, 0, len(e.table.Rules)+len(e.table.Pools))
	for _, r := range e.table.Rules {
		usage := report.Usage(r.Category, r.Window)
		out = append(out, RuleStatus{
			Category: r.Category,
			Window:   r.Window,
			Cap:      r.Cap,
			Usage:    usage,
			Headroom: r.Cap - usage,
		})
	}
	for _, p := range e.table.Pools {
		usage := report.Pools[p.Name]
		out = append(out, RuleStatus{
			Pool:     p.Name,
			Window:   p.Window,
			Cap:      p.Cap,
			Usage:    usage,
			Headroom: p.Cap - usage,
		})
	}
	return out
}

// StatusFor evaluates the rules applicable to one category: the
// individual rule and, independently, the category's shared pool.
// Both must pass for the category to have headroom.
func (e *Evaluator) StatusFor(c core.Category, report UsageReport) []RuleStatus {
	var out []RuleStatus
	if r, ok := e.table.RuleFor(c); ok {
		usage := report.Usage(r.Category, r.Window)
		out = append(out, RuleStatus{
			Category: r.Category,
			Window:   r.Window,
			Cap:      r.Cap,
			Usage:    usage,
			Headroom: r.Cap - usage,
		})
	}
	if p, ok := e.table.PoolFor(c); ok {
		usage := report.Pools[p.Name]
		out = append(out, RuleStatus{
			Pool:     p.Name,
			Window:   p.Window,
			Cap:      p.Cap,
			Usage:    usage,
			Headroom: p.Cap - usage,
		})
	}
	return out
}

// WouldExceed reports whether adding amount to the category's current
// usage would break its individual rule or its shared pool. A category
// with no matching rule has unlimited headroom and never exceeds.
// This is the hook a stricter deployment wires into submission
// validation; the reference behavior keeps it informational.
func (e *Evaluator) WouldExceed(c core.Category, amount int64, report UsageReport) bool {
	for _, s := range e.StatusFor(c, report) {
		if s.Usage+amount > s.Cap {
			return true
		}
	}
	return false
}
