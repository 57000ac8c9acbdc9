package rules

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Rule catalog and resolution persistence
// =============================================================================

// Store persists the rule catalog and conflict resolutions.
//
// Conflicts themselves are never stored. Resolutions are append-only and
// keyed by conflict ID: SaveResolution must return generic.ErrAlreadyResolved
// when a resolution for that ID exists.
type Store interface {
	// GetRule returns nil, nil when the rule does not exist.
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	SaveRule(ctx context.Context, rule Rule) error
	DeleteRule(ctx context.Context, id string) error

	// GetResolution returns nil, nil when the conflict is unresolved.
	GetResolution(ctx context.Context, conflictID string) (*Resolution, error)
	SaveResolution(ctx context.Context, res Resolution) error
	ListResolutions(ctx context.Context) ([]Resolution, error)
}

// TxStore runs a function atomically. If fn returns an error nothing it
// wrote is kept. Concurrent WithTx calls are serialized.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RESOLUTION RECORD
// =============================================================================

type Strategy string

const (
	StrategyPriority Strategy = "priority"
	StrategyMerge    Strategy = "merge"
	StrategyOverride Strategy = "override"
	StrategyManual   Strategy = "manual"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyMerge, StrategyOverride, StrategyManual:
		return true
	}
	return false
}

// Details records what a strategy changed.
type Details struct {
	WinnerID          string   `json:"winnerId,omitempty"`
	DeactivatedIDs    []string `json:"deactivatedRuleIds,omitempty"`
	MergedRuleID      string   `json:"mergedRuleId,omitempty"`
	ReplacementRuleID string   `json:"replacementRuleId,omitempty"`
	IgnoreReason      string   `json:"ignoreReason,omitempty"`
}

// Resolution is the authoritative record that a conflict was settled.
type Resolution struct {
	ConflictID string
	RuleIDs    [2]string
	Strategy   Strategy
	Details    Details
	Severity   Severity
	ResolvedAt time.Time
	ResolvedBy string
}

// ResolvedConflict is the conflict as it stood, plus its resolution.
type ResolvedConflict struct {
	Conflict          Conflict
	ResolvedAt        time.Time
	Resolution        Strategy
	ResolutionDetails Details
}
