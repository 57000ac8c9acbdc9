/*
Package rules detects and resolves contradictions between scheduling rules.

PURPOSE:
  Planners author rules ("no leave approval on garde days", "a MAR
  supervises at most 2 rooms in sector B"). Two rules can disagree. The
  Detector finds such pairs, the Resolver applies a chosen strategy and
  records the decision.

KEY CONCEPTS:
  Rule:      Conditions + actions + priority + effective window, scoped to
             one category through a sealed Scope type
  Check:     A predicate over a pair of rules, returning a Finding
  Registry:  Generic checks plus (CategoryA, CategoryB) checks
  Conflict:  All findings of one pair, with a deterministic ID
  Resolution: The persisted record of how a conflict was settled

CONFLICTS ARE DERIVED:
  Conflicts are never stored. They are recomputed from the active catalog
  on demand; the ID "conflict-{A}-{B}" (IDs in lexical order) makes the
  same pair map to the same conflict across calls. Only resolutions are
  persisted, keyed by that ID.

SEE ALSO:
  - checks.go: The predicate set
  - detector.go: Pairwise orchestration and reporting
  - resolver.go: Resolution strategies
  - factory/rule.go: JSON representation
*/
package rules

import (
	"fmt"
	"time"

	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// CATEGORY & SCOPE - One variant per rule category
// =============================================================================

type Category string

const (
	CategoryLeaveApproval Category = "LEAVE_APPROVAL"
	CategorySupervision   Category = "SUPERVISION"
	CategoryOperatingRoom Category = "OPERATING_ROOM"
	CategoryDuty          Category = "DUTY"
	CategoryPlanning      Category = "PLANNING"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryLeaveApproval,
	CategorySupervision,
	CategoryOperatingRoom,
	CategoryDuty,
	CategoryPlanning,
}

// Scope restricts a rule to part of its category's domain.
// It is sealed: only the variants below implement it.
// Empty lists mean "applies to all".
type Scope interface {
	Category() Category
	sealedScope()
}

// LeaveApprovalScope targets leave requests by type.
type LeaveApprovalScope struct {
	LeaveTypes []string
}

// SupervisionScope targets bloc supervision.
type SupervisionScope struct {
	Roles   []string
	Sectors []string

	// MaxRoomsPerSupervisor is the cap the rule enforces, 0 if none.
	MaxRoomsPerSupervisor int
}

// OperatingRoomScope targets rooms or whole sectors.
type OperatingRoomScope struct {
	Rooms   []string
	Sectors []string
}

type ShiftType string

const (
	ShiftGarde     ShiftType = "GARDE"
	ShiftAstreinte ShiftType = "ASTREINTE"
)

// DutyScope targets garde / astreinte shifts.
type DutyScope struct {
	ShiftTypes []ShiftType

	// MinRestHours is the rest required after the shift, 0 if none.
	MinRestHours int
}

// PlanningScope applies to planning as a whole.
type PlanningScope struct{}

func (LeaveApprovalScope) Category() Category { return CategoryLeaveApproval }
func (SupervisionScope) Category() Category   { return CategorySupervision }
func (OperatingRoomScope) Category() Category { return CategoryOperatingRoom }
func (DutyScope) Category() Category          { return CategoryDuty }
func (PlanningScope) Category() Category      { return CategoryPlanning }

func (LeaveApprovalScope) sealedScope() {}
func (SupervisionScope) sealedScope()   {}
func (OperatingRoomScope) sealedScope() {}
func (DutyScope) sealedScope()          {}
func (PlanningScope) sealedScope()      {}

// ScopeFor returns the zero scope of a category.
func ScopeFor(c Category) (Scope, error) {
	switch c {
	case CategoryLeaveApproval:
		return LeaveApprovalScope{}, nil
	case CategorySupervision:
		return SupervisionScope{}, nil
	case CategoryOperatingRoom:
		return OperatingRoomScope{}, nil
	case CategoryDuty:
		return DutyScope{}, nil
	case CategoryPlanning:
		return PlanningScope{}, nil
	default:
		return nil, generic.InvalidInput("type", "unknown rule category %q", c)
	}
}

// =============================================================================
// CONDITIONS & ACTIONS
// =============================================================================

type Operator string

const (
	OpEquals         Operator = "EQUALS"
	OpNotEquals      Operator = "NOT_EQUALS"
	OpGreaterThan    Operator = "GREATER_THAN"
	OpGreaterOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThan       Operator = "LESS_THAN"
	OpLessOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpIn             Operator = "IN"
	OpNotIn          Operator = "NOT_IN"
	OpBetween        Operator = "BETWEEN"
	OpContains       Operator = "CONTAINS"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpGreaterOrEqual, OpLessThan,
		OpLessOrEqual, OpIn, OpNotIn, OpBetween, OpContains:
		return true
	}
	return false
}

// Condition restricts when a rule fires.
type Condition struct {
	Field    string
	Operator Operator
	Value    Value
}

func (c Condition) Equal(other Condition) bool {
	return c.Field == other.Field && c.Operator == other.Operator && valuesEqual(c.Value, other.Value)
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

type ActionType string

const (
	ActionAllow   ActionType = "ALLOW"
	ActionPrevent ActionType = "PREVENT"
	ActionModify  ActionType = "MODIFY"
	ActionNotify  ActionType = "NOTIFY"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionAllow, ActionPrevent, ActionModify, ActionNotify:
		return true
	}
	return false
}

// Action is what a rule does when its conditions hold.
// Value is required for MODIFY and optional otherwise.
type Action struct {
	Type   ActionType
	Target string
	Value  Value
}

func (a Action) Equal(other Action) bool {
	return a.Type == other.Type && a.Target == other.Target && valuesEqual(a.Value, other.Value)
}

// =============================================================================
// RULE
// =============================================================================

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Rule is a scheduling rule owned by the rules catalog.
type Rule struct {
	ID             string
	Name           string
	Description    string
	Scope          Scope
	Conditions     []Condition
	Actions        []Action
	Priority       int
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Category is derived from the scope.
func (r Rule) Category() Category {
	if r.Scope == nil {
		return ""
	}
	return r.Scope.Category()
}

func (r Rule) IsActive() bool {
	return r.Status == StatusActive
}

// Window is the rule's effective date range.
func (r Rule) Window() generic.DateRange {
	return generic.DateRange{From: r.EffectiveDate, To: r.ExpirationDate}
}

// Validate checks the rule is well formed.
func (r Rule) Validate() error {
	if r.ID == "" {
		return generic.InvalidInput("id", "required")
	}
	if r.Name == "" {
		return generic.InvalidInput("name", "required")
	}
	if r.Scope == nil {
		return generic.InvalidInput("type", "required")
	}
	if r.Status != StatusActive && r.Status != StatusInactive {
		return generic.InvalidInput("status", "unknown status %q", r.Status)
	}
	if err := r.Window().Validate(); err != nil {
		return generic.InvalidInput("expirationDate", "before effectiveDate")
	}
	if len(r.Actions) == 0 {
		return generic.InvalidInput("actions", "at least one action required")
	}
	for i, c := range r.Conditions {
		field := fmt.Sprintf("conditions[%d]", i)
		if c.Field == "" {
			return generic.InvalidInput(field+".field", "required")
		}
		if !c.Operator.Valid() {
			return generic.InvalidInput(field+".operator", "unknown operator %q", c.Operator)
		}
		if c.Value == nil {
			return generic.InvalidInput(field+".value", "required")
		}
		if _, ok := c.Value.(Range); c.Operator == OpBetween && !ok {
			return generic.InvalidInput(field+".value", "BETWEEN needs a [min, max] range")
		}
	}
	for i, a := range r.Actions {
		field := fmt.Sprintf("actions[%d]", i)
		if !a.Type.Valid() {
			return generic.InvalidInput(field+".type", "unknown action %q", a.Type)
		}
		if a.Type == ActionModify && (a.Target == "" || a.Value == nil) {
			return generic.InvalidInput(field, "MODIFY needs target and value")
		}
	}
	return nil
}
