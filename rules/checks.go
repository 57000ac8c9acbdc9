package rules

import (
	"fmt"
)

// =============================================================================
// REGISTRY - Pluggable contradiction predicates
// =============================================================================

// Check inspects a pair of rules whose effective windows overlap.
// It returns false when it has nothing to say about the pair.
type Check func(a, b Rule) (Finding, bool)

type categoryPair struct {
	a, b Category
}

func newCategoryPair(a, b Category) (categoryPair, bool) {
	if b < a {
		return categoryPair{b, a}, true
	}
	return categoryPair{a, b}, false
}

// Registry holds generic checks, run on every pair, and category checks,
// run only on pairs whose categories match their key. Category checks
// always receive their arguments in registration order.
type Registry struct {
	generic    []Check
	byCategory map[categoryPair][]Check
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCategory: make(map[categoryPair][]Check)}
}

// Register adds a check run on every pair.
func (r *Registry) Register(check Check) {
	r.generic = append(r.generic, check)
}

// RegisterPair adds a check for rules of categories (a, b), in either order.
func (r *Registry) RegisterPair(a, b Category, check Check) {
	key, swapped := newCategoryPair(a, b)
	if swapped {
		inner := check
		check = func(x, y Rule) (Finding, bool) { return inner(y, x) }
	}
	r.byCategory[key] = append(r.byCategory[key], check)
}

// Evaluate runs every applicable check on the pair. Rules whose scopes
// cannot cover the same subject are never checked.
func (r *Registry) Evaluate(a, b Rule) []Finding {
	if !ScopesOverlap(a, b) {
		return nil
	}
	var findings []Finding
	for _, check := range r.generic {
		if f, ok := check(a, b); ok {
			findings = append(findings, f)
		}
	}

	key, swapped := newCategoryPair(a.Category(), b.Category())
	x, y := a, b
	if swapped {
		x, y = b, a
	}
	for _, check := range r.byCategory[key] {
		if f, ok := check(x, y); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

// DefaultRegistry wires the standard predicate set.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CheckActionContradiction)
	r.Register(CheckPriorityOverlap)
	r.Register(CheckActionOverlap)
	r.Register(CheckRedundancy)

	r.RegisterPair(CategoryLeaveApproval, CategoryLeaveApproval, checkLeaveApproval)
	r.RegisterPair(CategorySupervision, CategorySupervision, checkSupervision)
	r.RegisterPair(CategoryOperatingRoom, CategoryOperatingRoom, checkOperatingRoom)
	r.RegisterPair(CategoryDuty, CategoryDuty, checkDuty)
	r.RegisterPair(CategorySupervision, CategoryOperatingRoom, checkSupervisionRoom)
	return r
}

// =============================================================================
// SCOPE OVERLAP
// =============================================================================

// ScopesOverlap reports whether two rules can apply to the same subject:
// leave types, roles and sectors, rooms, shift types. An empty list covers
// everything. Categories with nothing in common are assumed to overlap.
func ScopesOverlap(a, b Rule) bool {
	switch sa := a.Scope.(type) {
	case LeaveApprovalScope:
		if sb, ok := b.Scope.(LeaveApprovalScope); ok {
			return intersects(sa.LeaveTypes, sb.LeaveTypes)
		}
	case SupervisionScope:
		switch sb := b.Scope.(type) {
		case SupervisionScope:
			return intersects(sa.Roles, sb.Roles) && intersects(sa.Sectors, sb.Sectors)
		case OperatingRoomScope:
			return intersects(sa.Sectors, sb.Sectors)
		}
	case OperatingRoomScope:
		switch sb := b.Scope.(type) {
		case OperatingRoomScope:
			return intersects(sa.Rooms, sb.Rooms) && intersects(sa.Sectors, sb.Sectors)
		case SupervisionScope:
			return intersects(sa.Sectors, sb.Sectors)
		}
	case DutyScope:
		if sb, ok := b.Scope.(DutyScope); ok {
			return intersects(shiftStrings(sa.ShiftTypes), shiftStrings(sb.ShiftTypes))
		}
	}
	return true
}

// =============================================================================
// GENERIC CHECKS
// =============================================================================

// CheckActionContradiction flags ALLOW vs PREVENT, or MODIFY with different
// values, on the same target when the conditions can hold together. With
// equal priorities neither rule wins, which makes it critical.
func CheckActionContradiction(a, b Rule) (Finding, bool) {
	if !conditionsOverlap(a.Conditions, b.Conditions) {
		return Finding{}, false
	}
	x, y, ok := firstContradiction(a.Actions, b.Actions)
	if !ok {
		return Finding{}, false
	}

	sev := SeverityHigh
	if a.Priority == b.Priority {
		sev = SeverityCritical
	}
	return Finding{
		Kind:     KindActionContradiction,
		Severity: sev,
		Detail: fmt.Sprintf("%q %s %s and %q %s %s",
			a.Name, x.Type, describeTarget(x), b.Name, y.Type, describeTarget(y)),
	}, true
}

// CheckPriorityOverlap flags same-category rules that fire together, share
// an action type and rely on different priorities to decide the outcome.
func CheckPriorityOverlap(a, b Rule) (Finding, bool) {
	if a.Category() != b.Category() || a.Priority == b.Priority {
		return Finding{}, false
	}
	if !conditionsOverlap(a.Conditions, b.Conditions) || !shareActionType(a.Actions, b.Actions) {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindPriorityOverlap,
		Severity: SeverityMedium,
		Detail:   fmt.Sprintf("overlapping rules with different priorities (%d vs %d)", a.Priority, b.Priority),
	}, true
}

// CheckActionOverlap flags the same action applied twice to one target.
func CheckActionOverlap(a, b Rule) (Finding, bool) {
	if !conditionsOverlap(a.Conditions, b.Conditions) {
		return Finding{}, false
	}
	for _, x := range a.Actions {
		for _, y := range b.Actions {
			if x.Type == y.Type && x.Target == y.Target && !contradicts(x, y) {
				return Finding{
					Kind:     KindActionOverlap,
					Severity: SeverityLow,
					Detail:   fmt.Sprintf("both rules %s %s", x.Type, describeTarget(x)),
				}, true
			}
		}
	}
	return Finding{}, false
}

// CheckRedundancy flags a rule whose conditions are a subset of another's
// with equivalent actions: the more general rule already covers it.
func CheckRedundancy(a, b Rule) (Finding, bool) {
	if a.Category() != b.Category() || !equivalentActions(a.Actions, b.Actions) {
		return Finding{}, false
	}
	switch {
	case conditionsSubset(a.Conditions, b.Conditions):
		return Finding{Kind: KindRedundant, Severity: SeverityLow,
			Detail: fmt.Sprintf("%q is covered by %q", b.Name, a.Name)}, true
	case conditionsSubset(b.Conditions, a.Conditions):
		return Finding{Kind: KindRedundant, Severity: SeverityLow,
			Detail: fmt.Sprintf("%q is covered by %q", a.Name, b.Name)}, true
	}
	return Finding{}, false
}

// =============================================================================
// CATEGORY CHECKS
// =============================================================================

func checkLeaveApproval(a, b Rule) (Finding, bool) {
	sa, okA := a.Scope.(LeaveApprovalScope)
	sb, okB := b.Scope.(LeaveApprovalScope)
	if !okA || !okB {
		return Finding{}, false
	}
	if !intersects(sa.LeaveTypes, sb.LeaveTypes) || !scopedDisagreement(a, b) {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindScopeOverlap,
		Severity: SeverityMedium,
		Detail:   "leave approval rules cover the same leave types over the same dates",
	}, true
}

func checkSupervision(a, b Rule) (Finding, bool) {
	sa, okA := a.Scope.(SupervisionScope)
	sb, okB := b.Scope.(SupervisionScope)
	if !okA || !okB {
		return Finding{}, false
	}
	if !intersects(sa.Roles, sb.Roles) || !intersects(sa.Sectors, sb.Sectors) {
		return Finding{}, false
	}
	if !conditionsOverlap(a.Conditions, b.Conditions) {
		return Finding{}, false
	}
	if sa.MaxRoomsPerSupervisor > 0 && sb.MaxRoomsPerSupervisor > 0 &&
		sa.MaxRoomsPerSupervisor != sb.MaxRoomsPerSupervisor {
		return Finding{
			Kind:     KindScopeOverlap,
			Severity: SeverityHigh,
			Detail: fmt.Sprintf("supervision caps disagree (%d vs %d rooms)",
				sa.MaxRoomsPerSupervisor, sb.MaxRoomsPerSupervisor),
		}, true
	}
	if equivalentActions(a.Actions, b.Actions) {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindScopeOverlap,
		Severity: SeverityMedium,
		Detail:   "supervision rules cover the same roles and sectors",
	}, true
}

func checkOperatingRoom(a, b Rule) (Finding, bool) {
	sa, okA := a.Scope.(OperatingRoomScope)
	sb, okB := b.Scope.(OperatingRoomScope)
	if !okA || !okB {
		return Finding{}, false
	}
	if !intersects(sa.Rooms, sb.Rooms) || !intersects(sa.Sectors, sb.Sectors) || !scopedDisagreement(a, b) {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindScopeOverlap,
		Severity: SeverityMedium,
		Detail:   "operating room rules cover the same rooms",
	}, true
}

func checkDuty(a, b Rule) (Finding, bool) {
	sa, okA := a.Scope.(DutyScope)
	sb, okB := b.Scope.(DutyScope)
	if !okA || !okB {
		return Finding{}, false
	}
	if !intersects(shiftStrings(sa.ShiftTypes), shiftStrings(sb.ShiftTypes)) {
		return Finding{}, false
	}
	if !conditionsOverlap(a.Conditions, b.Conditions) {
		return Finding{}, false
	}
	if sa.MinRestHours > 0 && sb.MinRestHours > 0 && sa.MinRestHours != sb.MinRestHours {
		return Finding{
			Kind:     KindScopeOverlap,
			Severity: SeverityHigh,
			Detail:   fmt.Sprintf("rest requirements disagree (%dh vs %dh)", sa.MinRestHours, sb.MinRestHours),
		}, true
	}
	if equivalentActions(a.Actions, b.Actions) {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindScopeOverlap,
		Severity: SeverityMedium,
		Detail:   "duty rules cover the same shift types",
	}, true
}

// checkSupervisionRoom flags a room rule that prevents what a supervision
// rule organizes in the same sector, or the reverse.
func checkSupervisionRoom(sup, room Rule) (Finding, bool) {
	ss, okS := sup.Scope.(SupervisionScope)
	rs, okR := room.Scope.(OperatingRoomScope)
	if !okS || !okR {
		return Finding{}, false
	}
	if !intersects(ss.Sectors, rs.Sectors) || !conditionsOverlap(sup.Conditions, room.Conditions) {
		return Finding{}, false
	}
	if !hasActionType(sup.Actions, ActionPrevent) && !hasActionType(room.Actions, ActionPrevent) {
		return Finding{}, false
	}
	return Finding{
		Kind:     KindScopeOverlap,
		Severity: SeverityMedium,
		Detail:   "a supervision rule and an operating room rule restrict the same sector",
	}, true
}

func scopedDisagreement(a, b Rule) bool {
	return conditionsOverlap(a.Conditions, b.Conditions) && !equivalentActions(a.Actions, b.Actions)
}

func shiftStrings(shifts []ShiftType) []string {
	out := make([]string, len(shifts))
	for i, s := range shifts {
		out[i] = string(s)
	}
	return out
}

// =============================================================================
// CONDITION & ACTION ANALYSIS
// =============================================================================

// conditionsOverlap reports whether some situation can satisfy both sets.
// Conditions on different fields never exclude each other.
func conditionsOverlap(a, b []Condition) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Field == y.Field && mutuallyExclusive(x, y) {
				return false
			}
		}
	}
	return true
}

// mutuallyExclusive decides whether two conditions on one field can never
// both hold. Unknown combinations are assumed compatible.
func mutuallyExclusive(x, y Condition) bool {
	if ix, ok := numericInterval(x); ok {
		if iy, ok := numericInterval(y); ok {
			return ix.disjoint(iy)
		}
	}
	if exclusiveOneWay(x, y) || exclusiveOneWay(y, x) {
		return true
	}
	return false
}

func exclusiveOneWay(x, y Condition) bool {
	switch {
	case x.Operator == OpEquals && y.Operator == OpEquals:
		return !valuesEqual(x.Value, y.Value)
	case x.Operator == OpEquals && y.Operator == OpNotEquals:
		return valuesEqual(x.Value, y.Value)
	case x.Operator == OpEquals && y.Operator == OpIn:
		xs, okX := x.Value.(Text)
		ys, okY := y.Value.(List)
		return okX && okY && !ys.Contains(string(xs))
	case x.Operator == OpEquals && y.Operator == OpNotIn:
		xs, okX := x.Value.(Text)
		ys, okY := y.Value.(List)
		return okX && okY && ys.Contains(string(xs))
	case x.Operator == OpIn && y.Operator == OpIn:
		xs, okX := x.Value.(List)
		ys, okY := y.Value.(List)
		return okX && okY && !intersects(xs, ys) && len(xs) > 0 && len(ys) > 0
	case x.Operator == OpIn && y.Operator == OpNotIn:
		xs, okX := x.Value.(List)
		ys, okY := y.Value.(List)
		if !okX || !okY || len(xs) == 0 {
			return false
		}
		for _, v := range xs {
			if !ys.Contains(v) {
				return false
			}
		}
		return true
	}
	return false
}

// conditionsSubset reports whether every condition of a also appears in b,
// so a applies at least wherever b applies.
func conditionsSubset(a, b []Condition) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x.Equal(y) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func contradicts(x, y Action) bool {
	if x.Target != y.Target {
		return false
	}
	if (x.Type == ActionAllow && y.Type == ActionPrevent) || (x.Type == ActionPrevent && y.Type == ActionAllow) {
		return true
	}
	return x.Type == ActionModify && y.Type == ActionModify && !valuesEqual(x.Value, y.Value)
}

func firstContradiction(a, b []Action) (Action, Action, bool) {
	for _, x := range a {
		for _, y := range b {
			if contradicts(x, y) {
				return x, y, true
			}
		}
	}
	return Action{}, Action{}, false
}

func shareActionType(a, b []Action) bool {
	for _, x := range a {
		if hasActionType(b, x.Type) {
			return true
		}
	}
	return false
}

func hasActionType(actions []Action, t ActionType) bool {
	for _, a := range actions {
		if a.Type == t {
			return true
		}
	}
	return false
}

func equivalentActions(a, b []Action) bool {
	return actionsCovered(a, b) && actionsCovered(b, a)
}

func actionsCovered(a, b []Action) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x.Equal(y) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func describeTarget(a Action) string {
	if a.Target == "" {
		return "(no target)"
	}
	if a.Value != nil {
		return a.Target + "=" + a.Value.String()
	}
	return a.Target
}
