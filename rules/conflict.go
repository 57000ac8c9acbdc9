package rules

import (
	"strings"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists every severity, most severe first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Above reports whether s is strictly more severe than other.
func (s Severity) Above(other Severity) bool {
	return s.rank() > other.rank()
}

// =============================================================================
// FINDING & CONFLICT
// =============================================================================

// Kind names the check that produced a finding.
type Kind string

const (
	KindActionContradiction Kind = "action_contradiction"
	KindPriorityOverlap     Kind = "priority_overlap"
	KindActionOverlap       Kind = "action_overlap"
	KindRedundant           Kind = "redundant"
	KindScopeOverlap        Kind = "scope_overlap"
)

// Finding is one check's verdict on a pair of rules.
type Finding struct {
	Kind     Kind
	Severity Severity
	Detail   string
}

// Conflict aggregates every finding for one unordered pair of rules.
type Conflict struct {
	ID          string
	RuleIDs     [2]string
	Severity    Severity
	Kinds       []Kind
	Description string
	DetectedAt  time.Time
}

// ConflictID derives the deterministic ID of a pair. The two rule IDs are
// put in lexical order so (a, b) and (b, a) yield the same conflict.
func ConflictID(a, b string) string {
	lo, hi := orderedPair(a, b)
	return "conflict-" + lo + "-" + hi
}

func orderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func newConflict(a, b Rule, findings []Finding, at time.Time) Conflict {
	lo, hi := orderedPair(a.ID, b.ID)
	c := Conflict{
		ID:         ConflictID(a.ID, b.ID),
		RuleIDs:    [2]string{lo, hi},
		DetectedAt: at,
	}

	details := make([]string, 0, len(findings))
	for _, f := range findings {
		if c.Severity == "" || f.Severity.Above(c.Severity) {
			c.Severity = f.Severity
		}
		if !containsKind(c.Kinds, f.Kind) {
			c.Kinds = append(c.Kinds, f.Kind)
		}
		details = append(details, f.Detail)
	}
	c.Description = strings.Join(details, "; ")
	return c
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, existing := range kinds {
		if existing == k {
			return true
		}
	}
	return false
}

// =============================================================================
// REPORT - Severity bucketing
// =============================================================================

// Grouped holds conflicts by severity.
type Grouped struct {
	Critical []Conflict `json:"critical"`
	High     []Conflict `json:"high"`
	Medium   []Conflict `json:"medium"`
	Low      []Conflict `json:"low"`
}

// Summary counts conflicts by severity.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Report is the listing shape. Summary counts always sum to Total.
type Report struct {
	Conflicts []Conflict
	Grouped   Grouped
	Total     int
	Summary   Summary
}

// Summarize buckets conflicts by severity. A conflict with an unknown
// severity is counted as low so the buckets stay exhaustive.
func Summarize(conflicts []Conflict) Report {
	r := Report{
		Conflicts: conflicts,
		Grouped: Grouped{
			Critical: []Conflict{},
			High:     []Conflict{},
			Medium:   []Conflict{},
			Low:      []Conflict{},
		},
		Total: len(conflicts),
	}
	if r.Conflicts == nil {
		r.Conflicts = []Conflict{}
	}

	for _, c := range conflicts {
		switch c.Severity {
		case SeverityCritical:
			r.Grouped.Critical = append(r.Grouped.Critical, c)
		case SeverityHigh:
			r.Grouped.High = append(r.Grouped.High, c)
		case SeverityMedium:
			r.Grouped.Medium = append(r.Grouped.Medium, c)
		default:
			r.Grouped.Low = append(r.Grouped.Low, c)
		}
	}
	r.Summary = Summary{
		Critical: len(r.Grouped.Critical),
		High:     len(r.Grouped.High),
		Medium:   len(r.Grouped.Medium),
		Low:      len(r.Grouped.Low),
	}
	return r
}
