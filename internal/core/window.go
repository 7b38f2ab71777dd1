package core

import "time"

// WindowKind scopes usage aggregation to a calendar interval.
type WindowKind string

const (
	WindowMonth WindowKind = "month"
	WindowHalf  WindowKind = "half"
	WindowYear  WindowKind = "year"
)

func (k WindowKind) Valid() bool {
	switch k {
	case WindowMonth, WindowHalf, WindowYear:
		return true
	}
	return false
}

// HalfOf maps a month to its half-year: 1 for months 1-6, 2 for 7-12.
// The month 6 -> 7 boundary is the only half transition in a year.
func HalfOf(month time.Month) int {
	if month <= time.June {
		return 1
	}
	return 2
}

// InWindow reports whether t falls in the same window as ref for the
// given kind. Membership is purely calendar-based: same month of the
// same year, same half of the same year, or same year.
func InWindow(t, ref time.Time, kind WindowKind) bool {
	if t.Year() != ref.Year() {
		return false
	}
	switch kind {
	case WindowMonth:
		return t.Month() == ref.Month()
	case WindowHalf:
		return HalfOf(t.Month()) == HalfOf(ref.Month())
	case WindowYear:
		return true
	}
	return false
}
