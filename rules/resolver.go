/*
resolver.go - Conflict resolution strategies

PURPOSE:
  Settles a detected conflict and records the decision. Rule changes and
  the resolution record are written in one store transaction.

STRATEGIES:
  priority: Higher priority wins, the loser is deactivated (not deleted).
            Equal priorities cannot be settled this way.
  merge:    Conditions and actions of both rules are unioned into a new
            rule (id/name from the payload), both originals deactivated.
  override: The payload rule is saved active and replaces both originals.
  manual:   No rule change. An ignore reason is required and recorded.

RESOLUTION FLOW:
  1. Check the payload carries what the strategy needs (ErrInvalidAction)
  2. Inside the transaction, reject an existing resolution (ErrAlreadyResolved)
  3. Re-derive the conflict from the current rules (ErrNotFound)
  4. Apply the strategy, save the resolution

CONCURRENCY:
  The store serializes WithTx, and the resolution is keyed by conflict ID,
  so two concurrent resolutions of one conflict cannot both succeed.

SEE ALSO:
  - detector.go: Re-derivation of conflicts
  - store.go: Resolution record
*/
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/planning-engine/generic"
)

// Payload carries strategy-specific input.
type Payload struct {
	// Rule is the merged rule's identity (merge) or the replacement (override).
	Rule *Rule

	// IgnoreReason justifies a manual resolution.
	IgnoreReason string
}

// Resolver applies resolution strategies.
type Resolver struct {
	store    TxStore
	detector *Detector
	logger   zerolog.Logger
	now      func() time.Time
}

// NewResolver creates a resolver over a transactional store.
func NewResolver(store TxStore, detector *Detector, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		detector: detector,
		logger:   logger.With().Str("component", "rule_resolver").Logger(),
		now:      time.Now,
	}
}

// WithClock returns a copy of the resolver reading time from now.
func (rv *Resolver) WithClock(now func() time.Time) *Resolver {
	cp := *rv
	cp.now = now
	cp.detector = rv.detector.WithClock(now)
	return &cp
}

// Resolve settles a conflict the caller already holds. The conflict is
// re-derived from the two stored rules, so a stale copy is rejected.
func (rv *Resolver) Resolve(ctx context.Context, conflict Conflict, strategy Strategy, payload Payload, actor string) (*ResolvedConflict, error) {
	if conflict.ID == "" {
		conflict.ID = ConflictID(conflict.RuleIDs[0], conflict.RuleIDs[1])
	}
	return rv.resolve(ctx, conflict.ID, strategy, payload, actor, func(s Store) (Conflict, []Rule, error) {
		pair := make([]Rule, 0, 2)
		for _, id := range conflict.RuleIDs {
			r, err := s.GetRule(ctx, id)
			if err != nil {
				return Conflict{}, nil, fmt.Errorf("failed to load rule %s: %w", id, err)
			}
			if r == nil {
				return Conflict{}, nil, &generic.NotFoundError{Kind: "rule", ID: id}
			}
			pair = append(pair, *r)
		}
		if !pair[0].IsActive() || !pair[1].IsActive() {
			return Conflict{}, nil, &generic.NotFoundError{Kind: "conflict", ID: conflict.ID}
		}
		c, ok := rv.detector.Pair(pair[0], pair[1])
		if !ok || c.ID != conflict.ID {
			return Conflict{}, nil, &generic.NotFoundError{Kind: "conflict", ID: conflict.ID}
		}
		return c, pair, nil
	})
}

// ResolveByID settles a conflict known only by its ID, re-deriving it from
// the active catalog.
func (rv *Resolver) ResolveByID(ctx context.Context, conflictID string, strategy Strategy, payload Payload, actor string) (*ResolvedConflict, error) {
	return rv.resolve(ctx, conflictID, strategy, payload, actor, func(s Store) (Conflict, []Rule, error) {
		catalog, err := s.ListRules(ctx)
		if err != nil {
			return Conflict{}, nil, fmt.Errorf("failed to list rules: %w", err)
		}
		c, ok := rv.detector.Find(catalog, conflictID)
		if !ok {
			return Conflict{}, nil, &generic.NotFoundError{Kind: "conflict", ID: conflictID}
		}
		pair := make([]Rule, 0, 2)
		for _, id := range c.RuleIDs {
			for _, r := range catalog {
				if r.ID == id {
					pair = append(pair, r)
					break
				}
			}
		}
		return c, pair, nil
	})
}

type deriveFunc func(Store) (Conflict, []Rule, error)

func (rv *Resolver) resolve(ctx context.Context, conflictID string, strategy Strategy, payload Payload, actor string, derive deriveFunc) (*ResolvedConflict, error) {
	if err := validatePayload(strategy, payload); err != nil {
		return nil, err
	}

	var resolved *ResolvedConflict
	err := rv.store.WithTx(ctx, func(s Store) error {
		existing, err := s.GetResolution(ctx, conflictID)
		if err != nil {
			return fmt.Errorf("failed to load resolution: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: %s (%s at %s)", generic.ErrAlreadyResolved,
				conflictID, existing.Strategy, existing.ResolvedAt.Format(time.RFC3339))
		}

		conflict, pair, err := derive(s)
		if err != nil {
			return err
		}

		at := rv.now().UTC()
		details, err := rv.apply(ctx, s, strategy, payload, pair, at)
		if err != nil {
			return err
		}

		res := Resolution{
			ConflictID: conflict.ID,
			RuleIDs:    conflict.RuleIDs,
			Strategy:   strategy,
			Details:    details,
			Severity:   conflict.Severity,
			ResolvedAt: at,
			ResolvedBy: actor,
		}
		if err := s.SaveResolution(ctx, res); err != nil {
			return err
		}

		resolved = &ResolvedConflict{
			Conflict:          conflict,
			ResolvedAt:        at,
			Resolution:        strategy,
			ResolutionDetails: details,
		}
		return nil
	})
	if err != nil {
		rv.logger.Warn().Err(err).Str("conflict_id", conflictID).Str("strategy", string(strategy)).Msg("conflict resolution refused")
		return nil, err
	}

	rv.logger.Info().
		Str("conflict_id", conflictID).
		Str("strategy", string(strategy)).
		Str("actor", actor).
		Strs("deactivated", resolved.ResolutionDetails.DeactivatedIDs).
		Msg("conflict resolved")
	return resolved, nil
}

func validatePayload(strategy Strategy, payload Payload) error {
	switch strategy {
	case StrategyPriority:
		return nil
	case StrategyMerge:
		if payload.Rule == nil || payload.Rule.ID == "" {
			return &generic.InvalidActionError{Action: string(strategy), Reason: "merged rule id required"}
		}
	case StrategyOverride:
		if payload.Rule == nil {
			return &generic.InvalidActionError{Action: string(strategy), Reason: "replacement rule required"}
		}
		r := *payload.Rule
		if r.Status == "" {
			r.Status = StatusActive
		}
		if err := r.Validate(); err != nil {
			return &generic.InvalidActionError{Action: string(strategy), Reason: err.Error()}
		}
	case StrategyManual:
		if payload.IgnoreReason == "" {
			return &generic.InvalidActionError{Action: string(strategy), Reason: "ignoreReason required"}
		}
	default:
		return &generic.InvalidActionError{Action: string(strategy), Reason: "unknown strategy"}
	}
	return nil
}

// =============================================================================
// STRATEGIES
// =============================================================================

func (rv *Resolver) apply(ctx context.Context, s Store, strategy Strategy, payload Payload, pair []Rule, at time.Time) (Details, error) {
	a, b := pair[0], pair[1]

	switch strategy {
	case StrategyPriority:
		if a.Priority == b.Priority {
			return Details{}, &generic.InvalidActionError{Action: string(strategy),
				Reason: fmt.Sprintf("rules share priority %d", a.Priority)}
		}
		winner, loser := a, b
		if b.Priority > a.Priority {
			winner, loser = b, a
		}
		if err := deactivate(ctx, s, at, loser); err != nil {
			return Details{}, err
		}
		return Details{WinnerID: winner.ID, DeactivatedIDs: []string{loser.ID}}, nil

	case StrategyMerge:
		if err := ensureFreeID(ctx, s, strategy, payload.Rule.ID, a, b); err != nil {
			return Details{}, err
		}
		merged, err := MergeRules(a, b, payload.Rule.ID, payload.Rule.Name)
		if err != nil {
			return Details{}, err
		}
		merged.CreatedAt, merged.UpdatedAt = at, at
		if err := s.SaveRule(ctx, merged); err != nil {
			return Details{}, fmt.Errorf("failed to save merged rule: %w", err)
		}
		deactivated, err := deactivateExcept(ctx, s, at, merged.ID, a, b)
		if err != nil {
			return Details{}, err
		}
		return Details{MergedRuleID: merged.ID, DeactivatedIDs: deactivated}, nil

	case StrategyOverride:
		if err := ensureFreeID(ctx, s, strategy, payload.Rule.ID, a, b); err != nil {
			return Details{}, err
		}
		replacement := *payload.Rule
		replacement.Status = StatusActive
		if replacement.CreatedAt.IsZero() {
			replacement.CreatedAt = at
		}
		replacement.UpdatedAt = at
		if err := s.SaveRule(ctx, replacement); err != nil {
			return Details{}, fmt.Errorf("failed to save replacement rule: %w", err)
		}
		deactivated, err := deactivateExcept(ctx, s, at, replacement.ID, a, b)
		if err != nil {
			return Details{}, err
		}
		return Details{ReplacementRuleID: replacement.ID, DeactivatedIDs: deactivated}, nil

	case StrategyManual:
		return Details{IgnoreReason: payload.IgnoreReason}, nil
	}
	return Details{}, &generic.InvalidActionError{Action: string(strategy), Reason: "unknown strategy"}
}

// ensureFreeID refuses a new rule ID naming an existing rule outside the
// pair. SaveRule is an upsert and would silently replace it.
func ensureFreeID(ctx context.Context, s Store, strategy Strategy, id string, pair ...Rule) error {
	for _, r := range pair {
		if r.ID == id {
			return nil
		}
	}
	existing, err := s.GetRule(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load rule %s: %w", id, err)
	}
	if existing != nil {
		return &generic.InvalidActionError{Action: string(strategy),
			Reason: fmt.Sprintf("rule %s already exists outside the conflict", id)}
	}
	return nil
}

func deactivate(ctx context.Context, s Store, at time.Time, r Rule) error {
	r.Status = StatusInactive
	r.UpdatedAt = at
	if err := s.SaveRule(ctx, r); err != nil {
		return fmt.Errorf("failed to deactivate rule %s: %w", r.ID, err)
	}
	return nil
}

// deactivateExcept deactivates the originals, skipping one reused as the
// new rule's ID.
func deactivateExcept(ctx context.Context, s Store, at time.Time, keepID string, rules ...Rule) ([]string, error) {
	var ids []string
	for _, r := range rules {
		if r.ID == keepID {
			continue
		}
		if err := deactivate(ctx, s, at, r); err != nil {
			return nil, err
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// =============================================================================
// MERGE
// =============================================================================

// MergeRules unions two rules of the same category. MODIFY actions on the
// same target are combined into one; the merged priority is the higher of
// the two and the effective window covers both.
func MergeRules(a, b Rule, id, name string) (Rule, error) {
	if a.Category() != b.Category() {
		return Rule{}, &generic.InvalidActionError{Action: string(StrategyMerge),
			Reason: fmt.Sprintf("cannot merge %s with %s", a.Category(), b.Category())}
	}
	if name == "" {
		name = a.Name + " + " + b.Name
	}

	merged := Rule{
		ID:          id,
		Name:        name,
		Description: fmt.Sprintf("Merged from %s and %s", a.ID, b.ID),
		Scope:       mergeScopes(a.Scope, b.Scope),
		Priority:    a.Priority,
		Status:      StatusActive,
	}
	if b.Priority > merged.Priority {
		merged.Priority = b.Priority
	}

	merged.Conditions = append([]Condition(nil), a.Conditions...)
	for _, c := range b.Conditions {
		if !containsCondition(merged.Conditions, c) {
			merged.Conditions = append(merged.Conditions, c)
		}
	}

	merged.Actions = append([]Action(nil), a.Actions...)
	for _, act := range b.Actions {
		if i := indexModify(merged.Actions, act); i >= 0 {
			merged.Actions[i].Value = combineValues(merged.Actions[i].Value, act.Value)
			continue
		}
		if !containsAction(merged.Actions, act) {
			merged.Actions = append(merged.Actions, act)
		}
	}

	merged.EffectiveDate = earliest(a.EffectiveDate, b.EffectiveDate)
	merged.ExpirationDate = latest(a.ExpirationDate, b.ExpirationDate)
	return merged, nil
}

func mergeScopes(a, b Scope) Scope {
	switch sa := a.(type) {
	case LeaveApprovalScope:
		sb, _ := b.(LeaveApprovalScope)
		return LeaveApprovalScope{LeaveTypes: unionScopeList(sa.LeaveTypes, sb.LeaveTypes)}
	case SupervisionScope:
		sb, _ := b.(SupervisionScope)
		maxRooms := sa.MaxRoomsPerSupervisor
		if sb.MaxRoomsPerSupervisor > maxRooms {
			maxRooms = sb.MaxRoomsPerSupervisor
		}
		return SupervisionScope{
			Roles:                 unionScopeList(sa.Roles, sb.Roles),
			Sectors:               unionScopeList(sa.Sectors, sb.Sectors),
			MaxRoomsPerSupervisor: maxRooms,
		}
	case OperatingRoomScope:
		sb, _ := b.(OperatingRoomScope)
		return OperatingRoomScope{
			Rooms:   unionScopeList(sa.Rooms, sb.Rooms),
			Sectors: unionScopeList(sa.Sectors, sb.Sectors),
		}
	case DutyScope:
		sb, _ := b.(DutyScope)
		rest := sa.MinRestHours
		if sb.MinRestHours > rest {
			rest = sb.MinRestHours
		}
		shifts := unionScopeList(shiftStrings(sa.ShiftTypes), shiftStrings(sb.ShiftTypes))
		out := DutyScope{MinRestHours: rest}
		for _, s := range shifts {
			out.ShiftTypes = append(out.ShiftTypes, ShiftType(s))
		}
		return out
	}
	return a
}

// unionScopeList keeps "all" (empty) when either side applies to all.
func unionScopeList(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	return unionStrings(a, b)
}

func indexModify(actions []Action, act Action) int {
	if act.Type != ActionModify {
		return -1
	}
	for i, existing := range actions {
		if existing.Type == ActionModify && existing.Target == act.Target {
			return i
		}
	}
	return -1
}

func containsCondition(conds []Condition, c Condition) bool {
	for _, existing := range conds {
		if existing.Equal(c) {
			return true
		}
	}
	return false
}

func containsAction(actions []Action, a Action) bool {
	for _, existing := range actions {
		if existing.Equal(a) {
			return true
		}
	}
	return false
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.Before(*a) {
		return b
	}
	return a
}

func latest(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.After(*a) {
		return b
	}
	return a
}
