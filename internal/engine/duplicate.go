package engine

import (
	"time"

	"lofawell/internal/core"
)

// DuplicateWindow is how far back the guard looks for an identical
// submission. A double click or a client retry lands well inside it.
const DuplicateWindow = 5 * time.Minute

// duplicateLookback bounds how many recent applications are inspected;
// anything beyond the newest candidates is irrelevant to a retry.
const duplicateLookback = 20

// CheckDuplicate scans a user's recent applications (newest first) for
// one with the same category and amount submitted within the trailing
// window before now. It is a heuristic against accidental
// re-submission, not an idempotency key: different amounts pass.
// Returns core.ErrDuplicateSubmission on a match.
func CheckDuplicate(recent []core.Application, category core.Category, amount int64, now time.Time) error {
	cutoff := now.Add(-DuplicateWindow)
	for i, app := range recent {
		if i >= duplicateLookback {
			break
		}
		if app.SubmittedAt.Before(cutoff) || app.SubmittedAt.After(now) {
			continue
		}
		if app.Category == category && app.Amount == amount {
			return core.ErrDuplicateSubmission
		}
	}
	return nil
}
