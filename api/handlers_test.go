/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Supervision validation and the per-request config override
- Rule catalog, conflict listing, check and resolve
- Quota simulation, commit, idempotency and approval
- Error mapping (400 / 404 / 409 / 422 / 503)
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/planning-engine/api"
	"github.com/warp/planning-engine/store/memory"
	"github.com/warp/planning-engine/supervision"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	m := memory.New()
	h := api.NewHandler(m.Rules(), m.Quota(), supervision.DefaultConfig(), zerolog.Nop())
	return api.NewRouter(h, api.RouterOptions{
		AllowedOrigins: []string{"http://localhost:5173"},
		MaxBodyBytes:   1 << 20,
		Logger:         zerolog.Nop(),
	})
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func room(id, user, role, debut, fin string) map[string]any {
	return map[string]any{
		"salleId": id,
		"superviseurs": []map[string]any{{
			"userId":   user,
			"role":     role,
			"periodes": []map[string]string{{"debut": debut, "fin": fin}},
		}},
	}
}

func periodRoom(period map[string]string) map[string]any {
	return map[string]any{
		"salleId": "S1",
		"superviseurs": []map[string]any{{
			"userId":   "u1",
			"role":     "PRINCIPAL",
			"periodes": []map[string]string{period},
		}},
	}
}

const (
	allowRule = `{"id":"a","name":"Allow annual","type":"LEAVE_APPROVAL","scope":{"leaveTypes":["ANNUAL"]},
		"actions":[{"type":"ALLOW","target":"leave.request"}],"priority":5}`
	preventRule = `{"id":"b","name":"Prevent annual","type":"LEAVE_APPROVAL","scope":{"leaveTypes":["ANNUAL"]},
		"actions":[{"type":"PREVENT","target":"leave.request"}],"priority":5}`
	preventSickRule = `{"id":"c","name":"Prevent sick","type":"LEAVE_APPROVAL","scope":{"leaveTypes":["SICK"]},
		"actions":[{"type":"PREVENT","target":"leave.request"}],"priority":5}`
)

// =============================================================================
// SUPERVISION
// =============================================================================

func TestValidatePlanning_MissingPrincipal(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/bloc/plannings/validate", map[string]any{
		"date":   "2025-03-10",
		"salles": []any{room("S1", "u1", "SECONDARY", "08:00", "12:00")},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[supervision.ValidationResult](t, rec)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, supervision.CodePrincipalRequired, result.Errors[0].Code)
}

func TestValidatePlanning_ConfigOverride(t *testing.T) {
	// GIVEN: One supervisor over three rooms, back to back
	router := newTestRouter(t)
	rooms := []any{
		room("S1", "u1", "PRINCIPAL", "08:00", "10:00"),
		room("S2", "u1", "PRINCIPAL", "10:00", "12:00"),
		room("S3", "u1", "PRINCIPAL", "12:00", "14:00"),
	}

	// WHEN: Validated with the default cap, then with a cap of 3
	rec := do(t, router, http.MethodPost, "/api/bloc/plannings/validate", map[string]any{"salles": rooms})
	relaxed := do(t, router, http.MethodPost, "/api/bloc/plannings/validate", map[string]any{
		"salles": rooms,
		"config": map[string]int{"maxRoomsPerSupervisor": 3},
	})

	// THEN
	result := decode[supervision.ValidationResult](t, rec)
	assert.False(t, result.IsValid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, supervision.CodeMaxRooms, result.Errors[0].Code)
	assert.True(t, decode[supervision.ValidationResult](t, relaxed).IsValid)
}

func TestValidatePlanning_MalformedInput_400(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"inverted period", map[string]any{"salles": []any{room("S1", "u1", "PRINCIPAL", "12:00", "08:00")}}},
		{"unknown role", map[string]any{"salles": []any{room("S1", "u1", "BOSS", "08:00", "12:00")}}},
		{"bad date", map[string]any{"date": "10/03/2025", "salles": []any{}}},
		{"not json", "{"},
		{"missing period start", map[string]any{"salles": []any{periodRoom(map[string]string{"fin": "12:00"})}}},
		{"missing period end", map[string]any{"salles": []any{periodRoom(map[string]string{"debut": "08:00"})}}},
		{"empty period", map[string]any{"salles": []any{periodRoom(map[string]string{"debut": "10:00", "fin": "10:00"})}}},
		{"zero room cap", map[string]any{"salles": []any{}, "config": map[string]int{"maxRoomsPerSupervisor": 0}}},
		{"exceptional cap not above normal", map[string]any{"salles": []any{},
			"config": map[string]int{"maxRoomsPerSupervisor": 3, "maxRoomsExceptional": 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(t), http.MethodPost, "/api/bloc/plannings/validate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestLoadCheck_MissingPeriodBound_400(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/bloc/supervisors/load-check", map[string]any{
		"superviseurs": []any{map[string]any{"userId": "u1", "role": "PRINCIPAL",
			"periodes": []map[string]string{{"fin": "12:00"}}}},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "debut")
}

func TestLoadCheck_OverlapInSameRoom(t *testing.T) {
	router := newTestRouter(t)
	sup := func(debut, fin string) map[string]any {
		return map[string]any{"userId": "u1", "role": "PRINCIPAL", "salleId": "S1",
			"periodes": []map[string]string{{"debut": debut, "fin": fin}}}
	}

	rec := do(t, router, http.MethodPost, "/api/bloc/supervisors/load-check", map[string]any{
		"superviseurs": []any{sup("08:00", "12:00"), sup("11:00", "13:00")},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[supervision.ValidationResult](t, rec)
	assert.False(t, result.IsValid)
	assert.Equal(t, supervision.CodeOverlappingPeriods, result.Errors[0].Code)
}

// =============================================================================
// RULES & CONFLICTS
// =============================================================================

func TestRules_CRUD(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/rules", allowRule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/rules", allowRule)
	assert.Equal(t, http.StatusOK, rec.Code, "saving the same ID replaces")

	rec = do(t, router, http.MethodGet, "/api/rules/a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "active", decode[map[string]any](t, rec)["status"])

	rec = do(t, router, http.MethodPost, "/api/rules/a/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inactive", decode[map[string]any](t, rec)["status"])

	rec = do(t, router, http.MethodGet, "/api/rules?status=active", nil)
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = do(t, router, http.MethodDelete, "/api/rules/a", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/rules/a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[api.ErrorResponse](t, rec).Code)

	rec = do(t, router, http.MethodDelete, "/api/rules/a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRules_InvalidDefinition_400(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/api/rules",
		`{"id":"x","name":"x","type":"PARKING","actions":[{"type":"ALLOW"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[api.ErrorResponse](t, rec).Code)
}

func TestConflicts_SaveListResolve(t *testing.T) {
	// GIVEN: Two rules that contradict each other at the same priority
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/rules", allowRule).Code)
	rec := do(t, router, http.MethodPost, "/api/rules", preventRule)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[api.RuleResponse](t, rec)
	require.Len(t, saved.Conflicts, 1, "saving reports the new conflict")

	// WHEN: Listing conflicts
	rec = do(t, router, http.MethodGet, "/api/rules/conflicts", nil)

	// THEN
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[api.ConflictListResponse](t, rec)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Summary.Critical)
	require.Len(t, list.Grouped.Critical, 1)
	assert.Equal(t, "conflict-a-b", list.Conflicts[0].ID)

	// WHEN: Resolving it manually, which leaves both rules active
	rec = do(t, router, http.MethodPost, "/api/rules/conflicts", map[string]any{
		"action":     "resolve",
		"conflictId": "conflict-a-b",
		"strategy":   "manual",
		"resolution": map[string]string{"ignoreReason": "seasonal"},
	}, "X-User-ID", "planner")

	// THEN: Hidden by default, shown and flagged on request
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[api.ResolveResponse](t, rec)
	assert.Equal(t, "manual", resolved.Resolution.Resolution)

	list = decode[api.ConflictListResponse](t, do(t, router, http.MethodGet, "/api/rules/conflicts", nil))
	assert.Equal(t, 0, list.Total)
	list = decode[api.ConflictListResponse](t, do(t, router, http.MethodGet, "/api/rules/conflicts?includeResolved=true", nil))
	require.Equal(t, 1, list.Total)
	assert.True(t, list.Conflicts[0].Resolved)

	resolutions := decode[[]api.ResolutionDTO](t, do(t, router, http.MethodGet, "/api/rules/conflicts/resolutions", nil))
	require.Len(t, resolutions, 1)
	assert.Equal(t, "planner", resolutions[0].ResolvedBy)

	// AND: A second resolution is refused
	rec = do(t, router, http.MethodPost, "/api/rules/conflicts", map[string]any{
		"action": "resolve", "conflictId": "conflict-a-b", "strategy": "priority",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_resolved", decode[api.ErrorResponse](t, rec).Code)
}

func TestConflicts_ResolveErrors(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/rules", allowRule)
	do(t, router, http.MethodPost, "/api/rules", preventRule)
	do(t, router, http.MethodPost, "/api/rules", preventSickRule)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"merge onto an unrelated rule", map[string]any{"action": "resolve", "conflictId": "conflict-a-b", "strategy": "merge",
			"resolution": map[string]string{"mergedRuleId": "c", "mergedRuleName": "merged"}}, http.StatusBadRequest},
		{"unknown conflict", map[string]any{"action": "resolve", "conflictId": "conflict-a-z", "strategy": "manual",
			"resolution": map[string]string{"ignoreReason": "x"}}, http.StatusNotFound},
		{"equal priorities", map[string]any{"action": "resolve", "conflictId": "conflict-a-b", "strategy": "priority"}, http.StatusBadRequest},
		{"merge without identity", map[string]any{"action": "resolve", "conflictId": "conflict-a-b", "strategy": "merge"}, http.StatusBadRequest},
		{"missing conflict id", map[string]any{"action": "resolve", "strategy": "manual"}, http.StatusBadRequest},
		{"unknown action", map[string]any{"action": "ignore"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/rules/conflicts", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestConflicts_CheckDraft(t *testing.T) {
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/rules", allowRule)

	var draft map[string]any
	require.NoError(t, json.Unmarshal([]byte(preventRule), &draft))
	rec := do(t, router, http.MethodPost, "/api/rules/conflicts", map[string]any{"action": "check", "rule": draft})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	check := decode[api.CheckResponse](t, rec)
	assert.Equal(t, 1, check.Count)
	rec = do(t, router, http.MethodGet, "/api/rules/b", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "check never saves")
}

func TestConflicts_DisjointLeaveTypes_NoConflict(t *testing.T) {
	// GIVEN: Allow annual leave
	router := newTestRouter(t)
	do(t, router, http.MethodPost, "/api/rules", allowRule)

	// WHEN: Saving a rule preventing sick leave at the same priority
	rec := do(t, router, http.MethodPost, "/api/rules", preventSickRule)

	// THEN: No conflict, the rules govern different requests
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	list := decode[api.ConflictListResponse](t, do(t, router, http.MethodGet, "/api/rules/conflicts", nil))
	assert.Equal(t, 0, list.Total)
}

// =============================================================================
// QUOTA
// =============================================================================

func seedQuota(t *testing.T, router http.Handler, requiresApproval bool) {
	t.Helper()
	rec := do(t, router, http.MethodPut, "/api/leaves/quota-balances", map[string]any{
		"userId": "u1", "periodId": "2025", "leaveType": "RTT", "currentBalance": 15,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/leaves/quota-transfer-rules", map[string]any{
		"id": "rtt-annual", "fromType": "RTT", "toType": "ANNUAL", "conversionRate": 0.5,
		"maxTransferDays": 5, "requiresApproval": requiresApproval, "isActive": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func transferBody(days int) map[string]any {
	return map[string]any{"userId": "u1", "periodId": "2025", "fromType": "rtt", "toType": "ANNUAL", "days": days}
}

func balances(t *testing.T, router http.Handler) map[string]float64 {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/api/leaves/quota-balances/u1?periodId=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := map[string]float64{}
	for _, b := range decode[[]api.BalanceDTO](t, rec) {
		out[b.LeaveType] = b.CurrentBalance
	}
	return out
}

func TestSimulateTransfer(t *testing.T) {
	router := newTestRouter(t)
	seedQuota(t, router, false)

	rec := do(t, router, http.MethodPost, "/api/leaves/quota-transfers/simulate", transferBody(10))

	require.Equal(t, http.StatusOK, rec.Code)
	sim := decode[api.SimulationDTO](t, rec)
	assert.False(t, sim.IsValid)
	assert.Equal(t, "transfer exceeds the maximum of 5 days", sim.Message)
	assert.Equal(t, 15.0, balances(t, router)["RTT"], "simulation writes nothing")
}

func TestQuotaResponses_NumbersAreJSONNumbers(t *testing.T) {
	// GIVEN: 15 RTT days and a rule converting at 0.5
	router := newTestRouter(t)
	seedQuota(t, router, false)

	// WHEN: Reading a simulation, the balances and the transfer rules raw
	sim := decode[map[string]any](t, do(t, router, http.MethodPost, "/api/leaves/quota-transfers/simulate", transferBody(4)))
	bals := decode[[]map[string]any](t, do(t, router, http.MethodGet, "/api/leaves/quota-balances/u1", nil))
	rules := decode[[]map[string]any](t, do(t, router, http.MethodGet, "/api/leaves/quota-transfer-rules", nil))

	// THEN: Quantities decode as numbers, not quoted strings
	assert.Equal(t, true, sim["isValid"])
	assert.Equal(t, 11.0, sim["sourceRemaining"])
	assert.Equal(t, 2.0, sim["resultingDays"])
	assert.Equal(t, 0.5, sim["conversionRate"])
	require.Len(t, bals, 1)
	assert.Equal(t, 15.0, bals[0]["currentBalance"])
	require.Len(t, rules, 1)
	assert.Equal(t, 0.5, rules[0]["conversionRate"])
}

func TestSimulateTransfer_MalformedRequest_400(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPost, "/api/leaves/quota-transfers/simulate", transferBody(0))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode[api.ErrorResponse](t, rec).Code)
}

func TestCommitTransfer_AppliesOnceAndRefuses(t *testing.T) {
	// GIVEN: 15 RTT days and a rule converting at 0.5
	router := newTestRouter(t)
	seedQuota(t, router, false)

	// WHEN: Committing 4 days with an idempotency key
	rec := do(t, router, http.MethodPost, "/api/leaves/quota-transfers", transferBody(4), "Idempotency-Key", "k1")

	// THEN: Applied, both balances moved
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[api.CommitResponse](t, rec)
	require.NotNil(t, resp.Transfer)
	assert.Equal(t, "approved", resp.Transfer.Status)
	bal := balances(t, router)
	assert.Equal(t, 11.0, bal["RTT"], "got %v", bal["RTT"])
	assert.Equal(t, 2.0, bal["ANNUAL"], "got %v", bal["ANNUAL"])

	// AND: A retry with the same key is refused and changes nothing
	rec = do(t, router, http.MethodPost, "/api/leaves/quota-transfers", transferBody(4), "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 11.0, balances(t, router)["RTT"])

	// AND: A transfer over the cap is refused with its simulation
	rec = do(t, router, http.MethodPost, "/api/leaves/quota-transfers", transferBody(6))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	refused := decode[api.CommitResponse](t, rec)
	assert.Nil(t, refused.Transfer)
	assert.False(t, refused.Simulation.IsValid)

	ledger := decode[[]api.TransactionDTO](t, do(t, router, http.MethodGet, "/api/leaves/quota-transactions/u1?periodId=2025", nil))
	assert.Len(t, ledger, 2, "one out, one in")
}

func TestCommitTransfer_ApprovalWorkflow(t *testing.T) {
	router := newTestRouter(t)
	seedQuota(t, router, true)

	rec := do(t, router, http.MethodPost, "/api/leaves/quota-transfers", transferBody(2))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	pending := decode[api.CommitResponse](t, rec).Transfer
	require.NotNil(t, pending)
	assert.Equal(t, "pending", pending.Status)
	assert.Equal(t, 15.0, balances(t, router)["RTT"], "nothing moves while pending")

	listed := decode[[]api.TransferDTO](t, do(t, router, http.MethodGet, "/api/leaves/quota-transfers?status=pending", nil))
	assert.Len(t, listed, 1)

	rec = do(t, router, http.MethodPost, "/api/leaves/quota-transfers/"+pending.ID+"/approve", nil, "X-User-ID", "manager")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[api.TransferDTO](t, rec)
	assert.Equal(t, "approved", approved.Status)
	assert.Equal(t, "manager", approved.DecidedBy)
	assert.Equal(t, 13.0, balances(t, router)["RTT"])

	rec = do(t, router, http.MethodPost, "/api/leaves/quota-transfers/"+pending.ID+"/reject", map[string]string{"reason": "late"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no longer pending")

	rec = do(t, router, http.MethodPost, "/api/leaves/quota-transfers/missing/approve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectTransfer(t *testing.T) {
	router := newTestRouter(t)
	seedQuota(t, router, true)
	pending := decode[api.CommitResponse](t, do(t, router, http.MethodPost, "/api/leaves/quota-transfers", transferBody(2))).Transfer
	require.NotNil(t, pending)

	rec := do(t, router, http.MethodPost, "/api/leaves/quota-transfers/"+pending.ID+"/reject", map[string]string{"reason": "team short"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decode[api.TransferDTO](t, rec)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, "team short", rejected.RejectionReason)
	assert.Equal(t, 15.0, balances(t, router)["RTT"])
}

func TestSimulateCarryOver(t *testing.T) {
	router := newTestRouter(t)
	seedQuota(t, router, false)
	rec := do(t, router, http.MethodPost, "/api/leaves/quota-carryover-rules", map[string]any{
		"id": "rtt-carry", "leaveType": "RTT", "ruleType": "max_days", "value": 5,
		"expiryMonths": 3, "isActive": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/leaves/quota-carryovers/simulate", map[string]any{
		"userId": "u1", "periodId": "2025", "leaveType": "RTT", "toYear": 2026,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[api.CarryOverDTO](t, rec)
	assert.True(t, result.IsValid)
	assert.Equal(t, 15.0, result.OriginalRemaining)
	assert.Equal(t, 5.0, result.CarryOverAmount)
	require.NotNil(t, result.ExpiryDate)
	assert.Equal(t, "2026-04-01", *result.ExpiryDate)
}

func TestPutBalance_Rejects(t *testing.T) {
	rec := do(t, newTestRouter(t), http.MethodPut, "/api/leaves/quota-balances", map[string]any{
		"userId": "u1", "periodId": "2025", "leaveType": "VACATION", "currentBalance": 3,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	m := memory.New()
	h := api.NewHandler(m.Rules(), m.Quota(), supervision.DefaultConfig(), zerolog.Nop())
	router := api.NewRouter(h, api.RouterOptions{Logger: zerolog.Nop()})
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", nil).Code)

	h.WithHealthCheck(func(context.Context) error { return errors.New("disk gone") })
	assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodGet, "/healthz", nil).Code)
}
