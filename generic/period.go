package generic

import "time"

// =============================================================================
// DATE RANGE - Optional-bounded calendar window
// =============================================================================

// DateRange is a closed calendar window [From, To] where either bound may be
// open. Rules use it for their effective/expiration dates.
//
// Examples:
//   - {From: 2025-01-01, To: nil}       effective from Jan 1, never expires
//   - {From: nil, To: 2025-06-30}        already effective, expires end of June
//   - {From: nil, To: nil}               always effective
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Validate rejects a range whose end precedes its start.
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return ErrInvalidPeriod
	}
	return nil
}

// Overlaps reports whether two ranges share at least one day.
// Open bounds extend to infinity in their direction.
func (r DateRange) Overlaps(other DateRange) bool {
	if r.To != nil && other.From != nil && truncateDay(*r.To).Before(truncateDay(*other.From)) {
		return false
	}
	if other.To != nil && r.From != nil && truncateDay(*other.To).Before(truncateDay(*r.From)) {
		return false
	}
	return true
}

// Contains returns true if the day is within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	if r.From != nil && day.Before(truncateDay(*r.From)) {
		return false
	}
	if r.To != nil && day.After(truncateDay(*r.To)) {
		return false
	}
	return true
}

func (r DateRange) String() string {
	from, to := "-inf", "+inf"
	if r.From != nil {
		from = r.From.Format("2006-01-02")
	}
	if r.To != nil {
		to = r.To.Format("2006-01-02")
	}
	return "[" + from + ", " + to + "]"
}

// StartOfYear returns January 1st of the year at midnight UTC.
func StartOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
