/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the stores with realistic
	bloc data for demos: rule catalogs that conflict in known ways, and
	quota balances with transfer and carry-over rules.

AVAILABLE SCENARIOS:

	leave-contradiction: Two annual-leave rules, one allows, one prevents
	supervision-caps:    Two sector B caps disagreeing on the room count
	quota-transfers:     RTT and recovery balances with transfer rules

HOW SCENARIOS WORK:
 1. Parse rules via the factory, from the same JSON the API accepts
 2. Save rules, balances and reference data (upsert by ID)
 3. Record the scenario as current

Scenarios are additive: loading one never deletes existing data, and
loading it twice writes the same rows again.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "quota-transfers"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add it to the loaders map

SEE ALSO:
  - handlers.go: Handler dependencies
  - factory/rule.go: Rule JSON definitions
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/quota"
	"github.com/warp/planning-engine/rules"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "leave-contradiction",
		Name:        "Leave Contradiction",
		Description: "Two annual-leave rules at the same priority, one allows, one prevents",
		Category:    "rules",
	},
	{
		ID:          "supervision-caps",
		Name:        "Supervision Caps",
		Description: "Two sector B supervision rules setting different room caps",
		Category:    "rules",
	},
	{
		ID:          "quota-transfers",
		Name:        "Quota Transfers",
		Description: "RTT and recovery balances, transfer rules with limits and approval, annual carry-over",
		Category:    "quota",
	},
}

func (h *Handler) scenarioLoaders() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"leave-contradiction": h.loadLeaveContradictionScenario,
		"supervision-caps":    h.loadSupervisionCapsScenario,
		"quota-transfers":     h.loadQuotaTransfersScenario,
	}
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	load, ok := h.scenarioLoaders()[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario",
			generic.InvalidInput("scenario_id", "%q", req.ScenarioID))
		return
	}
	if err := load(r.Context()); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.logger.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadLeaveContradictionScenario(ctx context.Context) error {
	return h.saveRulesFromJSON(ctx,
		`{"id":"leave-allow-annual","name":"Congés annuels autorisés","type":"LEAVE_APPROVAL",
		  "scope":{"leaveTypes":["ANNUAL"]},
		  "conditions":[{"field":"leave.days","operator":"LESS_THAN","value":10}],
		  "actions":[{"type":"ALLOW","target":"leave.request"}],
		  "priority":5,"effectiveDate":"2025-01-01"}`,
		`{"id":"leave-block-summer","name":"Gel des congés en été","type":"LEAVE_APPROVAL",
		  "scope":{"leaveTypes":["ANNUAL"]},
		  "conditions":[{"field":"leave.month","operator":"IN","value":["07","08"]}],
		  "actions":[{"type":"PREVENT","target":"leave.request"}],
		  "priority":5,"effectiveDate":"2025-06-01","expirationDate":"2025-08-31"}`,
	)
}

func (h *Handler) loadSupervisionCapsScenario(ctx context.Context) error {
	return h.saveRulesFromJSON(ctx,
		`{"id":"sup-b-standard","name":"Secteur B standard","type":"SUPERVISION",
		  "scope":{"sectors":["B"],"maxRoomsPerSupervisor":2},
		  "actions":[{"type":"MODIFY","target":"supervision.maxRooms","value":2}],
		  "priority":5}`,
		`{"id":"sup-b-weekday","name":"Secteur B semaine","type":"SUPERVISION",
		  "scope":{"sectors":["B"],"maxRoomsPerSupervisor":3},
		  "conditions":[{"field":"day.type","operator":"EQUALS","value":"WEEKDAY"}],
		  "actions":[{"type":"MODIFY","target":"supervision.maxRooms","value":3}],
		  "priority":3}`,
	)
}

func (h *Handler) loadQuotaTransfersScenario(ctx context.Context) error {
	at := h.now().UTC()
	balances := []quota.Balance{
		{UserID: "demo-mar", PeriodID: "2025", LeaveType: quota.LeaveRTT, CurrentBalance: decimal.NewFromInt(15), UpdatedAt: at},
		{UserID: "demo-mar", PeriodID: "2025", LeaveType: quota.LeaveRecovery, CurrentBalance: decimal.NewFromInt(6), UpdatedAt: at},
		{UserID: "demo-mar", PeriodID: "2025", LeaveType: quota.LeaveAnnual, CurrentBalance: decimal.NewFromInt(25), UpdatedAt: at},
	}
	pct := decimal.NewFromInt(50)
	transferRules := []quota.TransferRule{
		{
			ID: "rtt-to-annual", FromType: quota.LeaveRTT, ToType: quota.LeaveAnnual,
			ConversionRate:       generic.MustParseDecimal("0.5"),
			MaxTransferDays:      generic.IntPtr(5),
			MinimumRemainingDays: generic.IntPtr(5),
			IsActive:             true,
		},
		{
			ID: "recovery-to-annual", FromType: quota.LeaveRecovery, ToType: quota.LeaveAnnual,
			ConversionRate:        decimal.NewFromInt(1),
			MaxTransferPercentage: &pct,
			RequiresApproval:      true,
			IsActive:              true,
		},
	}
	carryOver := quota.CarryOverRule{
		ID: "annual-carry", LeaveType: quota.LeaveAnnual, RuleType: quota.CarryOverMaxDays,
		Value: decimal.NewFromInt(5), ExpiryMonths: 3, IsActive: true,
	}

	return h.Quota.WithTx(ctx, func(s quota.Store) error {
		for _, b := range balances {
			if err := s.SaveBalance(ctx, b); err != nil {
				return fmt.Errorf("failed to save balance: %w", err)
			}
		}
		for _, r := range transferRules {
			if err := s.SaveTransferRule(ctx, r); err != nil {
				return fmt.Errorf("failed to save transfer rule %s: %w", r.ID, err)
			}
		}
		if err := s.SaveCarryOverRule(ctx, carryOver); err != nil {
			return fmt.Errorf("failed to save carry-over rule: %w", err)
		}
		return nil
	})
}

// saveRulesFromJSON runs in one transaction: a bad definition saves nothing.
func (h *Handler) saveRulesFromJSON(ctx context.Context, defs ...string) error {
	at := h.now().UTC().Truncate(time.Second)
	return h.Rules.WithTx(ctx, func(s rules.Store) error {
		for _, def := range defs {
			rule, err := h.RuleFactory.ParseRule(def)
			if err != nil {
				return err
			}
			rule.CreatedAt, rule.UpdatedAt = at, at
			if err := s.SaveRule(ctx, *rule); err != nil {
				return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
			}
		}
		return nil
	})
}
