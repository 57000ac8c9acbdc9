/*
Package supervision validates a day's operating-room supervision plan.

PURPOSE:
  Every room of the bloc opératoire needs a principal supervisor, no
  supervisor may cover more rooms than allowed, and nobody can be in two
  rooms at once. The Validator checks a whole day's assignment set and
  returns every issue it finds as data.

KEY CONCEPTS:
  RoomAssignment:       One room's supervisors for the day
  SupervisorAssignment: One supervisor, a role, and the periods they cover
  Issue:                One finding (error, warning or info)
  ValidationResult:     All findings; IsValid when there is no error

TWO OVERLAP VARIANTS:
  ValidateDayPlanning compares periods across DIFFERENT rooms only: a
  supervisor may hold back-to-back or split periods in the same room.
  CheckSupervisorLoad works on a flat list with no room context and
  rejects any two overlapping periods of the same supervisor.

SEE ALSO:
  - validator.go: The checks
  - generic/time.go: TimePeriod and its half-open overlap test
*/
package supervision

import (
	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// ASSIGNMENTS - Input
// =============================================================================

// Role is the supervising role held in a room.
type Role string

const (
	RolePrincipal Role = "PRINCIPAL"
	RoleSecondary Role = "SECONDARY"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RolePrincipal || r == RoleSecondary
}

// SupervisorAssignment is one supervisor's presence in a room.
// RoomID is only read by CheckSupervisorLoad, for issue context.
type SupervisorAssignment struct {
	UserID  generic.UserID       `json:"userId"`
	Role    Role                 `json:"role"`
	Periods []generic.TimePeriod `json:"periodes"`
	RoomID  generic.RoomID       `json:"salleId,omitempty"`
}

// RoomAssignment is the supervision plan of one room for the day.
type RoomAssignment struct {
	RoomID      generic.RoomID         `json:"salleId"`
	Supervisors []SupervisorAssignment `json:"superviseurs"`
	Notes       string                 `json:"notes,omitempty"`
}

// Config tunes the capacity rule.
type Config struct {
	// MaxRoomsPerSupervisor is the normal cap. Defaults to 2.
	MaxRoomsPerSupervisor int

	// MaxRoomsExceptional, when above MaxRoomsPerSupervisor, tolerates
	// counts up to this value with a warning. Zero disables it.
	MaxRoomsExceptional int
}

// DefaultConfig returns the standard bloc configuration.
func DefaultConfig() Config {
	return Config{MaxRoomsPerSupervisor: DefaultMaxRoomsPerSupervisor}
}

const DefaultMaxRoomsPerSupervisor = 2

// Validate rejects caps that NewValidator would otherwise default or
// disable. Used for caller-supplied overrides.
func (c Config) Validate() error {
	if c.MaxRoomsPerSupervisor < 1 {
		return generic.InvalidInput("maxRoomsPerSupervisor", "must be >= 1, got %d", c.MaxRoomsPerSupervisor)
	}
	if c.MaxRoomsExceptional < 0 || (c.MaxRoomsExceptional != 0 && c.MaxRoomsExceptional <= c.MaxRoomsPerSupervisor) {
		return generic.InvalidInput("maxRoomsExceptional", "must be 0 or above maxRoomsPerSupervisor (%d), got %d",
			c.MaxRoomsPerSupervisor, c.MaxRoomsExceptional)
	}
	return nil
}

// =============================================================================
// ISSUES - Output
// =============================================================================

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Issue codes.
const (
	CodePrincipalRequired  = "SUPERVISEUR_PRINCIPAL_REQUIS"
	CodeMaxRooms           = "MAX_SALLES_MAR"
	CodeMaxRoomsException  = "MAX_SALLES_EXCEPTION"
	CodeOverlappingPeriods = "CHEVAUCHEMENT_PERIODES"
)

// Issue types group codes by the rule family that produced them.
const (
	TypeSupervisionRule = "REGLE_SUPERVISION"
	TypeOverlap         = "CHEVAUCHEMENT_PERIODES"
)

// EntityType identifies what an issue points at.
type EntityType string

const (
	EntitySupervisor EntityType = "SUPERVISEUR"
	EntityRoom       EntityType = "SALLE"
)

type EntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// Issue is one finding. Immutable once created.
type Issue struct {
	ID               string      `json:"id"`
	Type             string      `json:"type"`
	Code             string      `json:"code"`
	Description      string      `json:"description"`
	Severity         Severity    `json:"severite"`
	AffectedEntities []EntityRef `json:"entitesAffectees"`
	Resolved         bool        `json:"estResolu"`
}

// ValidationResult collects issues by severity.
// IsValid is true exactly when Errors is empty.
type ValidationResult struct {
	IsValid  bool    `json:"isValid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Infos    []Issue `json:"infos"`
}

// All returns every issue, errors first.
func (r ValidationResult) All() []Issue {
	all := make([]Issue, 0, len(r.Errors)+len(r.Warnings)+len(r.Infos))
	all = append(all, r.Errors...)
	all = append(all, r.Warnings...)
	return append(all, r.Infos...)
}

func newResult() ValidationResult {
	return ValidationResult{
		Errors:   []Issue{},
		Warnings: []Issue{},
		Infos:    []Issue{},
	}
}

func (r *ValidationResult) add(issue Issue) {
	switch issue.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, issue)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, issue)
	default:
		r.Infos = append(r.Infos, issue)
	}
}
