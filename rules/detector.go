package rules

import (
	"sort"
	"time"
)

// =============================================================================
// DETECTOR - Pairwise orchestration
// =============================================================================

// Detector runs the registry over pairs of rules. It holds no state beyond
// its registry and clock, so one value is built at startup and shared.
type Detector struct {
	registry *Registry
	now      func() time.Time
}

// NewDetector creates a detector. A nil registry uses DefaultRegistry.
func NewDetector(registry *Registry) *Detector {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Detector{registry: registry, now: time.Now}
}

// WithClock returns a copy of the detector reading time from now.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	return &Detector{registry: d.registry, now: now}
}

// Pair evaluates one pair. A rule never conflicts with itself, and rules
// whose effective windows do not overlap never conflict. The pair is
// evaluated in ID order, so (a, b) and (b, a) describe the same conflict.
func (d *Detector) Pair(a, b Rule) (Conflict, bool) {
	if a.ID == b.ID {
		return Conflict{}, false
	}
	if b.ID < a.ID {
		a, b = b, a
	}
	if !a.Window().Overlaps(b.Window()) {
		return Conflict{}, false
	}
	findings := d.registry.Evaluate(a, b)
	if len(findings) == 0 {
		return Conflict{}, false
	}
	return newConflict(a, b, findings, d.now().UTC()), true
}

// Detect checks a candidate against the active rules among others. The
// candidate itself may be inactive, e.g. a draft being authored.
func (d *Detector) Detect(candidate Rule, others []Rule) []Conflict {
	conflicts := []Conflict{}
	seen := make(map[string]bool)
	for _, other := range others {
		if !other.IsActive() || other.ID == candidate.ID {
			continue
		}
		c, ok := d.Pair(candidate, other)
		if !ok || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		conflicts = append(conflicts, c)
	}
	sortConflicts(conflicts)
	return conflicts
}

// Sweep checks every unordered pair of active rules in the catalog.
func (d *Detector) Sweep(catalog []Rule) []Conflict {
	active := make([]Rule, 0, len(catalog))
	for _, r := range catalog {
		if r.IsActive() {
			active = append(active, r)
		}
	}

	conflicts := []Conflict{}
	seen := make(map[string]bool)
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			c, ok := d.Pair(active[i], active[j])
			if !ok || seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			conflicts = append(conflicts, c)
		}
	}
	sortConflicts(conflicts)
	return conflicts
}

// Find re-derives a single conflict from the catalog by its ID.
func (d *Detector) Find(catalog []Rule, conflictID string) (Conflict, bool) {
	for _, c := range d.Sweep(catalog) {
		if c.ID == conflictID {
			return c, true
		}
	}
	return Conflict{}, false
}

// sortConflicts orders by severity, most severe first, then by ID.
func sortConflicts(conflicts []Conflict) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Severity != conflicts[j].Severity {
			return conflicts[i].Severity.Above(conflicts[j].Severity)
		}
		return conflicts[i].ID < conflicts[j].ID
	})
}
