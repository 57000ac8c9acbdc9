/*
Package factory provides JSON to Go rule conversion.

PURPOSE:
  Converts JSON rule definitions into rules.Rule values and back. The
  same representation is used on the HTTP surface and in the SQLite
  rules table, so a rule reads the same everywhere it is stored or shown.

JSON SCHEMA:
  {
    "id": "rule-garde-leave",
    "name": "No leave on garde days",
    "type": "LEAVE_APPROVAL",
    "scope": {"leaveTypes": ["ANNUAL"]},
    "conditions": [
      {"field": "shift.type", "operator": "EQUALS", "value": "GARDE"},
      {"field": "leave.days", "operator": "BETWEEN", "value": [1, 5]}
    ],
    "actions": [{"type": "PREVENT", "target": "leave.request"}],
    "priority": 10,
    "effectiveDate": "2025-01-01",
    "expirationDate": null,
    "status": "active"
  }

VALUES:
  A condition or action value is a string (Text), a number (Number), an
  array of strings (List) or, for BETWEEN, a [min, max] pair of numbers
  (Range).

SCOPE:
  "scope" holds the fields of the rule's category only:
    LEAVE_APPROVAL: leaveTypes
    SUPERVISION:    roles, sectors, maxRoomsPerSupervisor
    OPERATING_ROOM: rooms, sectors
    DUTY:           shiftTypes, minRestHours
    PLANNING:       (none)

SEE ALSO:
  - rules/types.go: Rule type definition
  - store/sqlite: Persists rules in this representation
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/rules"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a rule.
type RuleJSON struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Type           string          `json:"type"`
	Scope          *ScopeJSON      `json:"scope,omitempty"`
	Conditions     []ConditionJSON `json:"conditions"`
	Actions        []ActionJSON    `json:"actions"`
	Priority       int             `json:"priority"`
	EffectiveDate  *string         `json:"effectiveDate"`
	ExpirationDate *string         `json:"expirationDate"`
	Status         string          `json:"status,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt      *time.Time      `json:"updatedAt,omitempty"`
}

// ScopeJSON is the union of every category's scope fields.
type ScopeJSON struct {
	LeaveTypes            []string `json:"leaveTypes,omitempty"`
	Roles                 []string `json:"roles,omitempty"`
	Sectors               []string `json:"sectors,omitempty"`
	Rooms                 []string `json:"rooms,omitempty"`
	MaxRoomsPerSupervisor int      `json:"maxRoomsPerSupervisor,omitempty"`
	ShiftTypes            []string `json:"shiftTypes,omitempty"`
	MinRestHours          int      `json:"minRestHours,omitempty"`
}

type ConditionJSON struct {
	Field    string          `json:"field"`
	Operator string          `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

type ActionJSON struct {
	Type   string          `json:"type"`
	Target string          `json:"target,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
}

const dateLayout = "2006-01-02"

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to Go structs.
type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON string into a validated rule.
func (f *RuleFactory) ParseRule(jsonStr string) (*rules.Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON converts a RuleJSON into a validated rule.
// An empty status means active.
func (f *RuleFactory) FromJSON(rj RuleJSON) (*rules.Rule, error) {
	scope, err := parseScope(rules.Category(rj.Type), rj.Scope)
	if err != nil {
		return nil, err
	}

	rule := &rules.Rule{
		ID:          rj.ID,
		Name:        rj.Name,
		Description: rj.Description,
		Scope:       scope,
		Priority:    rj.Priority,
		Status:      rules.Status(rj.Status),
	}
	if rule.Status == "" {
		rule.Status = rules.StatusActive
	}
	if rule.EffectiveDate, err = parseDate("effectiveDate", rj.EffectiveDate); err != nil {
		return nil, err
	}
	if rule.ExpirationDate, err = parseDate("expirationDate", rj.ExpirationDate); err != nil {
		return nil, err
	}
	if rj.CreatedAt != nil {
		rule.CreatedAt = *rj.CreatedAt
	}
	if rj.UpdatedAt != nil {
		rule.UpdatedAt = *rj.UpdatedAt
	}

	for i, cj := range rj.Conditions {
		v, err := parseValue(cj.Value)
		if err != nil {
			return nil, generic.InvalidInput(fmt.Sprintf("conditions[%d].value", i), "%v", err)
		}
		rule.Conditions = append(rule.Conditions, rules.Condition{
			Field:    cj.Field,
			Operator: rules.Operator(cj.Operator),
			Value:    v,
		})
	}
	for i, aj := range rj.Actions {
		v, err := parseValue(aj.Value)
		if err != nil {
			return nil, generic.InvalidInput(fmt.Sprintf("actions[%d].value", i), "%v", err)
		}
		rule.Actions = append(rule.Actions, rules.Action{
			Type:   rules.ActionType(aj.Type),
			Target: aj.Target,
			Value:  v,
		})
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// ToJSON converts a rule to its JSON representation.
func (f *RuleFactory) ToJSON(r rules.Rule) RuleJSON {
	rj := RuleJSON{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Type:           string(r.Category()),
		Scope:          scopeToJSON(r.Scope),
		Conditions:     []ConditionJSON{},
		Actions:        []ActionJSON{},
		Priority:       r.Priority,
		EffectiveDate:  formatDate(r.EffectiveDate),
		ExpirationDate: formatDate(r.ExpirationDate),
		Status:         string(r.Status),
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		rj.CreatedAt = &t
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		rj.UpdatedAt = &t
	}
	for _, c := range r.Conditions {
		rj.Conditions = append(rj.Conditions, ConditionJSON{
			Field:    c.Field,
			Operator: string(c.Operator),
			Value:    valueToJSON(c.Value),
		})
	}
	for _, a := range r.Actions {
		rj.Actions = append(rj.Actions, ActionJSON{
			Type:   string(a.Type),
			Target: a.Target,
			Value:  valueToJSON(a.Value),
		})
	}
	return rj
}

// =============================================================================
// SCOPE
// =============================================================================

func parseScope(c rules.Category, sj *ScopeJSON) (rules.Scope, error) {
	if sj == nil {
		return rules.ScopeFor(c)
	}
	switch c {
	case rules.CategoryLeaveApproval:
		return rules.LeaveApprovalScope{LeaveTypes: sj.LeaveTypes}, nil
	case rules.CategorySupervision:
		if sj.MaxRoomsPerSupervisor < 0 {
			return nil, generic.InvalidInput("scope.maxRoomsPerSupervisor", "must be >= 0")
		}
		return rules.SupervisionScope{
			Roles:                 sj.Roles,
			Sectors:               sj.Sectors,
			MaxRoomsPerSupervisor: sj.MaxRoomsPerSupervisor,
		}, nil
	case rules.CategoryOperatingRoom:
		return rules.OperatingRoomScope{Rooms: sj.Rooms, Sectors: sj.Sectors}, nil
	case rules.CategoryDuty:
		if sj.MinRestHours < 0 {
			return nil, generic.InvalidInput("scope.minRestHours", "must be >= 0")
		}
		scope := rules.DutyScope{MinRestHours: sj.MinRestHours}
		for i, st := range sj.ShiftTypes {
			shift := rules.ShiftType(st)
			if shift != rules.ShiftGarde && shift != rules.ShiftAstreinte {
				return nil, generic.InvalidInput(fmt.Sprintf("scope.shiftTypes[%d]", i), "unknown shift type %q", st)
			}
			scope.ShiftTypes = append(scope.ShiftTypes, shift)
		}
		return scope, nil
	default:
		return rules.ScopeFor(c)
	}
}

func scopeToJSON(s rules.Scope) *ScopeJSON {
	switch sc := s.(type) {
	case rules.LeaveApprovalScope:
		return &ScopeJSON{LeaveTypes: sc.LeaveTypes}
	case rules.SupervisionScope:
		return &ScopeJSON{Roles: sc.Roles, Sectors: sc.Sectors, MaxRoomsPerSupervisor: sc.MaxRoomsPerSupervisor}
	case rules.OperatingRoomScope:
		return &ScopeJSON{Rooms: sc.Rooms, Sectors: sc.Sectors}
	case rules.DutyScope:
		sj := &ScopeJSON{MinRestHours: sc.MinRestHours}
		for _, st := range sc.ShiftTypes {
			sj.ShiftTypes = append(sj.ShiftTypes, string(st))
		}
		return sj
	}
	return nil
}

// =============================================================================
// VALUES & DATES
// =============================================================================

// parseValue decodes a condition or action operand. An absent value is nil.
func parseValue(raw json.RawMessage) (rules.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return rules.Text(s), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		if len(items) == 2 && isNumber(items[0]) && isNumber(items[1]) {
			lo, err := decimal.NewFromString(string(bytes.TrimSpace(items[0])))
			if err != nil {
				return nil, err
			}
			hi, err := decimal.NewFromString(string(bytes.TrimSpace(items[1])))
			if err != nil {
				return nil, err
			}
			if lo.GreaterThan(hi) {
				return nil, fmt.Errorf("range min %s above max %s", lo, hi)
			}
			return rules.Range{Min: lo, Max: hi}, nil
		}
		list := make(rules.List, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return nil, errors.New("list values must be strings")
			}
			list = append(list, s)
		}
		return list, nil
	case '{', 't', 'f':
		return nil, fmt.Errorf("unsupported value %s", string(raw))
	default:
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", string(raw))
		}
		return rules.Number{Decimal: d}, nil
	}
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

func valueToJSON(v rules.Value) json.RawMessage {
	switch val := v.(type) {
	case nil:
		return nil
	case rules.Text:
		b, _ := json.Marshal(string(val))
		return b
	case rules.Number:
		return json.RawMessage(val.Decimal.String())
	case rules.List:
		b, _ := json.Marshal([]string(val))
		return b
	case rules.Range:
		return json.RawMessage("[" + val.Min.String() + "," + val.Max.String() + "]")
	}
	return nil
}

// parseDate accepts "2006-01-02" or RFC 3339; nil or "" means unbounded.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, *s)
		if err != nil {
			return nil, generic.InvalidInput(field, "expected YYYY-MM-DD, got %q", *s)
		}
	}
	t = t.UTC()
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(dateLayout)
	return &s
}
