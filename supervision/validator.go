package supervision

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks supervision plans. It holds no state beyond its
// configuration and may be shared by concurrent requests.
type Validator struct {
	cfg   Config
	newID func() string
}

// NewValidator creates a validator. Non-positive caps fall back to defaults.
func NewValidator(cfg Config) *Validator {
	if cfg.MaxRoomsPerSupervisor <= 0 {
		cfg.MaxRoomsPerSupervisor = DefaultMaxRoomsPerSupervisor
	}
	if cfg.MaxRoomsExceptional <= cfg.MaxRoomsPerSupervisor {
		cfg.MaxRoomsExceptional = 0
	}
	return &Validator{cfg: cfg, newID: uuid.NewString}
}

// Config returns the effective configuration.
func (v *Validator) Config() Config {
	return v.cfg
}

// WithConfig returns a validator sharing the ID source with another config.
// Used when a caller overrides the cap for a single request.
func (v *Validator) WithConfig(cfg Config) *Validator {
	nv := NewValidator(cfg)
	nv.newID = v.newID
	return nv
}

// slot is one period of a supervisor, tagged with the room it belongs to.
type slot struct {
	room   generic.RoomID
	period generic.TimePeriod
}

// supervisorIndex keeps the cross-room view of the day, keyed by user and
// ordered by first appearance so results are stable across calls.
type supervisorIndex struct {
	order []generic.UserID
	rooms map[generic.UserID][]generic.RoomID
	slots map[generic.UserID][]slot
}

func newSupervisorIndex() *supervisorIndex {
	return &supervisorIndex{
		rooms: make(map[generic.UserID][]generic.RoomID),
		slots: make(map[generic.UserID][]slot),
	}
}

func (idx *supervisorIndex) add(room generic.RoomID, sa SupervisorAssignment) {
	if _, seen := idx.slots[sa.UserID]; !seen {
		idx.order = append(idx.order, sa.UserID)
		idx.slots[sa.UserID] = []slot{}
	}
	if !containsRoom(idx.rooms[sa.UserID], room) {
		idx.rooms[sa.UserID] = append(idx.rooms[sa.UserID], room)
	}
	for _, p := range sa.Periods {
		idx.slots[sa.UserID] = append(idx.slots[sa.UserID], slot{room: room, period: p})
	}
}

// ValidateDayPlanning runs the principal, capacity and cross-room overlap
// rules over one day's plan. Business violations are returned as issues;
// only a structurally malformed plan returns an error.
func (v *Validator) ValidateDayPlanning(rooms []RoomAssignment) (ValidationResult, error) {
	for i, room := range rooms {
		if err := validateRoom(i, room); err != nil {
			return ValidationResult{}, err
		}
	}

	result := newResult()
	idx := newSupervisorIndex()

	for _, room := range rooms {
		if !hasPrincipal(room) {
			result.add(v.issue(SeverityError, TypeSupervisionRule, CodePrincipalRequired,
				fmt.Sprintf("La salle %s n'a pas de superviseur principal", room.RoomID),
				EntityRef{Type: EntityRoom, ID: string(room.RoomID)}))
		}
		for _, sa := range room.Supervisors {
			idx.add(room.RoomID, sa)
		}
	}

	for _, userID := range idx.order {
		v.checkCapacity(&result, userID, len(idx.rooms[userID]))
	}

	for _, userID := range idx.order {
		v.checkOverlaps(&result, userID, idx.slots[userID], true)
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// CheckSupervisorLoad validates a flat list of assignments outside any room
// grouping: any two overlapping periods of the same supervisor are an error,
// even when they carry the same room.
func (v *Validator) CheckSupervisorLoad(assignments []SupervisorAssignment) (ValidationResult, error) {
	for i, sa := range assignments {
		if err := validateSupervisor(fmt.Sprintf("superviseurs[%d]", i), sa); err != nil {
			return ValidationResult{}, err
		}
	}

	result := newResult()
	idx := newSupervisorIndex()
	for _, sa := range assignments {
		idx.add(sa.RoomID, sa)
	}

	for _, userID := range idx.order {
		v.checkOverlaps(&result, userID, idx.slots[userID], false)
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// =============================================================================
// RULES
// =============================================================================

func (v *Validator) checkCapacity(result *ValidationResult, userID generic.UserID, count int) {
	limit := v.cfg.MaxRoomsPerSupervisor
	if count <= limit {
		return
	}

	ref := EntityRef{Type: EntitySupervisor, ID: string(userID)}
	if exc := v.cfg.MaxRoomsExceptional; exc > 0 && count <= exc {
		result.add(v.issue(SeverityWarning, TypeSupervisionRule, CodeMaxRoomsException,
			fmt.Sprintf("Le superviseur %s est assigné à %d salles, au-delà de la normale (%d) mais dans la limite exceptionnelle (%d)",
				userID, count, limit, exc),
			ref))
		return
	}

	allowed := limit
	if v.cfg.MaxRoomsExceptional > 0 {
		allowed = v.cfg.MaxRoomsExceptional
	}
	result.add(v.issue(SeverityError, TypeSupervisionRule, CodeMaxRooms,
		fmt.Sprintf("Le superviseur %s est assigné à %d salles (maximum autorisé : %d)", userID, count, allowed),
		ref))
}

func (v *Validator) checkOverlaps(result *ValidationResult, userID generic.UserID, slots []slot, skipSameRoom bool) {
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			if skipSameRoom && a.room == b.room {
				continue
			}
			if !a.period.Overlaps(b.period) {
				continue
			}

			refs := []EntityRef{{Type: EntitySupervisor, ID: string(userID)}}
			desc := fmt.Sprintf("Chevauchement de périodes pour le superviseur %s : %s et %s", userID, a.period, b.period)
			if a.room != b.room && a.room != "" && b.room != "" {
				desc = fmt.Sprintf("Chevauchement de périodes pour le superviseur %s : %s en salle %s et %s en salle %s",
					userID, a.period, a.room, b.period, b.room)
				refs = append(refs,
					EntityRef{Type: EntityRoom, ID: string(a.room)},
					EntityRef{Type: EntityRoom, ID: string(b.room)})
			}
			result.add(v.issue(SeverityError, TypeOverlap, CodeOverlappingPeriods, desc, refs...))
		}
	}
}

func (v *Validator) issue(sev Severity, typ, code, desc string, refs ...EntityRef) Issue {
	return Issue{
		ID:               v.newID(),
		Type:             typ,
		Code:             code,
		Description:      desc,
		Severity:         sev,
		AffectedEntities: refs,
	}
}

// =============================================================================
// STRUCTURAL CHECKS
// =============================================================================

func validateRoom(i int, room RoomAssignment) error {
	field := fmt.Sprintf("salles[%d]", i)
	if room.RoomID == "" {
		return generic.InvalidInput(field+".salleId", "required")
	}
	for j, sa := range room.Supervisors {
		if err := validateSupervisor(fmt.Sprintf("%s.superviseurs[%d]", field, j), sa); err != nil {
			return err
		}
	}
	return nil
}

func validateSupervisor(field string, sa SupervisorAssignment) error {
	if sa.UserID == "" {
		return generic.InvalidInput(field+".userId", "required")
	}
	if !sa.Role.Valid() {
		return generic.InvalidInput(field+".role", "unknown role %q", sa.Role)
	}
	for k, p := range sa.Periods {
		if err := p.Validate(); err != nil {
			return generic.InvalidInput(fmt.Sprintf("%s.periodes[%d]", field, k), "%v", err)
		}
	}
	return nil
}

func hasPrincipal(room RoomAssignment) bool {
	for _, sa := range room.Supervisors {
		if sa.Role == RolePrincipal {
			return true
		}
	}
	return false
}

func containsRoom(rooms []generic.RoomID, room generic.RoomID) bool {
	for _, r := range rooms {
		if r == room {
			return true
		}
	}
	return false
}
