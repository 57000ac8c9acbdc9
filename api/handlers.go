/*
handlers.go - HTTP API handlers for the bloc planning engine

PURPOSE:
  Exposes the planning engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain packages.

ENDPOINTS:
  Supervision:
    POST   /api/bloc/plannings/validate          Validate a day's room plan
    POST   /api/bloc/supervisors/load-check      Check a flat assignment list

  Rules:
    GET    /api/rules                            List rules (?category=&status=)
    POST   /api/rules                            Create or replace a rule
    GET    /api/rules/{id}                       Get one rule
    POST   /api/rules/{id}/activate              Set status active
    POST   /api/rules/{id}/deactivate            Set status inactive
    DELETE /api/rules/{id}                       Delete a rule

  Conflicts:
    GET    /api/rules/conflicts                  Sweep (?includeResolved=true)
    POST   /api/rules/conflicts                  {action: check|resolve}
    GET    /api/rules/conflicts/resolutions      Persisted resolutions

  Quota:
    POST   /api/leaves/quota-transfers/simulate  Preview a transfer
    POST   /api/leaves/quota-transfers           Commit (Idempotency-Key header)
    GET    /api/leaves/quota-transfers           List (?status=)
    GET    /api/leaves/quota-transfers/{id}      Get one transfer
    POST   /api/leaves/quota-transfers/{id}/approve
    POST   /api/leaves/quota-transfers/{id}/reject
    GET    /api/leaves/quota-balances/{userId}   Balances (?periodId=)
    PUT    /api/leaves/quota-balances            Set a balance
    GET    /api/leaves/quota-transactions/{userId} Ledger (?periodId=)
    GET    /api/leaves/quota-transfer-rules      Transfer rules
    POST   /api/leaves/quota-transfer-rules      Save a transfer rule
    POST   /api/leaves/quota-carryover-rules     Save a carry-over rule
    POST   /api/leaves/quota-carryovers/simulate Preview a carry-over

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Rules / Quota: transactional store views
  - RuleFactory: JSON to Rule conversion
  - Detector / Resolver: conflict detection and resolution
  - Transfers: quota commit and approval workflow
  - Validator: supervision checks, configured at startup

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTO to domain input
  3. Call domain logic
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, invalid period, refused action
  - 404: Rule, conflict or transfer not found
  - 409: Already resolved, duplicate idempotency key
  - 422: Transfer commit refused by the simulation (body carries it)
  - 500: Internal errors (logged)
  Business findings (issues, conflicts, invalid simulations) are 200s.

ACTOR:
  The X-User-ID header names who resolves, commits or decides. There is
  no authentication layer; the header is trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/planning-engine/factory"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/metrics"
	"github.com/warp/planning-engine/quota"
	"github.com/warp/planning-engine/rules"
	"github.com/warp/planning-engine/supervision"
)

const (
	headerActor          = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"
	defaultActor         = "anonymous"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Rules       rules.TxStore
	Quota       quota.TxStore
	RuleFactory *factory.RuleFactory
	Detector    *rules.Detector
	Resolver    *rules.Resolver
	Transfers   *quota.TransferService
	Validator   *supervision.Validator

	logger zerolog.Logger
	now    func() time.Time
	ping   func(context.Context) error

	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the domain services over the given stores.
func NewHandler(ruleStore rules.TxStore, quotaStore quota.TxStore, cfg supervision.Config, logger zerolog.Logger) *Handler {
	detector := rules.NewDetector(nil)
	return &Handler{
		Rules:       ruleStore,
		Quota:       quotaStore,
		RuleFactory: factory.NewRuleFactory(),
		Detector:    detector,
		Resolver:    rules.NewResolver(ruleStore, detector, logger),
		Transfers:   quota.NewTransferService(quotaStore, logger),
		Validator:   supervision.NewValidator(cfg),
		logger:      logger.With().Str("component", "api").Logger(),
		now:         time.Now,
	}
}

// WithHealthCheck sets the probe run by /healthz.
func (h *Handler) WithHealthCheck(ping func(context.Context) error) *Handler {
	h.ping = ping
	return h
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SUPERVISION HANDLERS
// =============================================================================

// ValidatePlanning checks one day's room plan.
func (h *Handler) ValidatePlanning(w http.ResponseWriter, r *http.Request) {
	var req ValidatePlanningRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Date != "" {
		if _, err := time.Parse("2006-01-02", req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD",
				generic.InvalidInput("date", "%q", req.Date))
			return
		}
	}

	cfg, err := req.Config.apply(h.Validator.Config())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result, err := h.Validator.WithConfig(cfg).ValidateDayPlanning(req.Rooms)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	recordValidation("planning", result)
	writeJSON(w, http.StatusOK, result)
}

// LoadCheck validates a flat list of assignments.
func (h *Handler) LoadCheck(w http.ResponseWriter, r *http.Request) {
	var req LoadCheckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cfg, err := req.Config.apply(h.Validator.Config())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result, err := h.Validator.WithConfig(cfg).CheckSupervisorLoad(req.Supervisors)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	recordValidation("load_check", result)
	writeJSON(w, http.StatusOK, result)
}

func recordValidation(kind string, result supervision.ValidationResult) {
	metrics.IncValidation(kind, result.IsValid)
	for _, issue := range result.All() {
		metrics.IncIssue(issue.Code, string(issue.Severity))
	}
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// RuleResponse returns a saved rule with the conflicts it now takes part in.
type RuleResponse struct {
	Rule      factory.RuleJSON `json:"rule"`
	Conflicts []ConflictDTO    `json:"conflicts"`
}

// ListRules returns the catalog, optionally filtered.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.Rules.ListRules(r.Context())
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list rules: %w", err))
		return
	}

	category := strings.ToUpper(r.URL.Query().Get("category"))
	status := strings.ToLower(r.URL.Query().Get("status"))

	dtos := []factory.RuleJSON{}
	for _, rule := range catalog {
		if category != "" && string(rule.Category()) != category {
			continue
		}
		if status != "" && string(rule.Status) != status {
			continue
		}
		dtos = append(dtos, h.RuleFactory.ToJSON(rule))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRule returns one rule.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rule, err := h.Rules.GetRule(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to load rule: %w", err))
		return
	}
	if rule == nil {
		h.writeDomainError(w, r, &generic.NotFoundError{Kind: "rule", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(*rule))
}

// SaveRule creates a rule, or replaces one with the same ID. The response
// lists the active rules the saved rule conflicts with.
func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if !decodeBody(w, r, &rj) {
		return
	}
	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	status := http.StatusCreated
	var conflicts []rules.Conflict
	err = h.Rules.WithTx(ctx, func(s rules.Store) error {
		existing, err := s.GetRule(ctx, rule.ID)
		if err != nil {
			return fmt.Errorf("failed to load rule: %w", err)
		}
		at := h.now().UTC()
		rule.CreatedAt, rule.UpdatedAt = at, at
		if existing != nil {
			rule.CreatedAt = existing.CreatedAt
			status = http.StatusOK
		}
		if err := s.SaveRule(ctx, *rule); err != nil {
			return fmt.Errorf("failed to save rule: %w", err)
		}
		catalog, err := s.ListRules(ctx)
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}
		conflicts = h.Detector.Detect(*rule, catalog)
		return nil
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.Info().Str("rule_id", rule.ID).Int("conflicts", len(conflicts)).Msg("rule saved")
	writeJSON(w, status, RuleResponse{Rule: h.RuleFactory.ToJSON(*rule), Conflicts: toConflictDTOs(conflicts)})
}

// ActivateRule sets a rule active.
func (h *Handler) ActivateRule(w http.ResponseWriter, r *http.Request) {
	h.setRuleStatus(w, r, rules.StatusActive)
}

// DeactivateRule sets a rule inactive. Inactive rules never conflict.
func (h *Handler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	h.setRuleStatus(w, r, rules.StatusInactive)
}

func (h *Handler) setRuleStatus(w http.ResponseWriter, r *http.Request, status rules.Status) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var updated rules.Rule
	err := h.Rules.WithTx(ctx, func(s rules.Store) error {
		rule, err := s.GetRule(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load rule: %w", err)
		}
		if rule == nil {
			return &generic.NotFoundError{Kind: "rule", ID: id}
		}
		rule.Status = status
		rule.UpdatedAt = h.now().UTC()
		if err := s.SaveRule(ctx, *rule); err != nil {
			return fmt.Errorf("failed to save rule: %w", err)
		}
		updated = *rule
		return nil
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.logger.Info().Str("rule_id", id).Str("status", string(status)).Msg("rule status changed")
	writeJSON(w, http.StatusOK, h.RuleFactory.ToJSON(updated))
}

// DeleteRule removes a rule. Resolutions that reference it are kept.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Rules.DeleteRule(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.logger.Info().Str("rule_id", id).Msg("rule deleted")
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CONFLICT HANDLERS
// =============================================================================

// ListConflicts sweeps the active catalog. Resolved conflicts are hidden
// unless includeResolved=true.
func (h *Handler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	catalog, err := h.Rules.ListRules(ctx)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list rules: %w", err))
		return
	}
	resolutions, err := h.Rules.ListResolutions(ctx)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list resolutions: %w", err))
		return
	}
	resolved := make(map[string]bool, len(resolutions))
	for _, res := range resolutions {
		resolved[res.ConflictID] = true
	}

	includeResolved := r.URL.Query().Get("includeResolved") == "true"
	conflicts := []rules.Conflict{}
	for _, c := range h.Detector.Sweep(catalog) {
		if resolved[c.ID] && !includeResolved {
			continue
		}
		conflicts = append(conflicts, c)
		metrics.IncConflict(string(c.Severity))
	}

	resp := toConflictListResponse(rules.Summarize(conflicts))
	for i := range resp.Conflicts {
		resp.Conflicts[i].Resolved = resolved[resp.Conflicts[i].ID]
	}
	writeJSON(w, http.StatusOK, resp)
}

// ConflictAction dispatches on the body's action: check or resolve.
func (h *Handler) ConflictAction(w http.ResponseWriter, r *http.Request) {
	var req ConflictActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch strings.ToLower(req.Action) {
	case "check":
		h.checkRule(w, r, req)
	case "resolve":
		h.resolveConflict(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, "Unknown action, expected check or resolve",
			generic.InvalidInput("action", "%q", req.Action))
	}
}

func (h *Handler) checkRule(w http.ResponseWriter, r *http.Request, req ConflictActionRequest) {
	if req.Rule == nil {
		h.writeDomainError(w, r, generic.InvalidInput("rule", "required for check"))
		return
	}
	candidate, err := h.RuleFactory.FromJSON(*req.Rule)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	catalog, err := h.Rules.ListRules(r.Context())
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list rules: %w", err))
		return
	}

	conflicts := h.Detector.Detect(*candidate, catalog)
	writeJSON(w, http.StatusOK, CheckResponse{Conflicts: toConflictDTOs(conflicts), Count: len(conflicts)})
}

func (h *Handler) resolveConflict(w http.ResponseWriter, r *http.Request, req ConflictActionRequest) {
	if req.ConflictID == "" {
		h.writeDomainError(w, r, generic.InvalidInput("conflictId", "required for resolve"))
		return
	}
	strategy := rules.Strategy(strings.ToLower(req.Strategy))

	payload, err := h.resolutionPayload(strategy, req.Resolution)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	res, err := h.Resolver.ResolveByID(r.Context(), req.ConflictID, strategy, payload, actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	metrics.IncResolution(string(strategy))
	writeJSON(w, http.StatusOK, ResolveResponse{
		Resolution: toResolvedConflictDTO(*res),
		Message:    fmt.Sprintf("conflict %s resolved by %s", res.Conflict.ID, strategy),
	})
}

// resolutionPayload converts the wire payload. A missing piece is left
// empty so the resolver reports it as an invalid action.
func (h *Handler) resolutionPayload(strategy rules.Strategy, dto *ResolutionPayloadDTO) (rules.Payload, error) {
	var p rules.Payload
	if dto == nil {
		return p, nil
	}
	p.IgnoreReason = dto.IgnoreReason

	switch strategy {
	case rules.StrategyMerge:
		if dto.MergedRuleID != "" {
			p.Rule = &rules.Rule{ID: dto.MergedRuleID, Name: dto.MergedRuleName}
		}
	case rules.StrategyOverride:
		if dto.Rule != nil {
			rule, err := h.RuleFactory.FromJSON(*dto.Rule)
			if err != nil {
				return p, err
			}
			p.Rule = rule
		}
	}
	return p, nil
}

// ListResolutions returns every persisted resolution.
func (h *Handler) ListResolutions(w http.ResponseWriter, r *http.Request) {
	resolutions, err := h.Rules.ListResolutions(r.Context())
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list resolutions: %w", err))
		return
	}
	dtos := make([]ResolutionDTO, len(resolutions))
	for i, res := range resolutions {
		dtos[i] = toResolutionDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// QUOTA TRANSFER HANDLERS
// =============================================================================

// SimulateTransfer previews a transfer. A refused transfer is a 200 with
// isValid false; only a malformed request is a 400.
func (h *Handler) SimulateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.Transfers.Preview(r.Context(), req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	metrics.IncSimulation("transfer", result.IsValid)
	writeJSON(w, http.StatusOK, toSimulationDTO(result))
}

// CommitTransfer applies a transfer, or records it pending approval.
func (h *Handler) CommitTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	key := r.Header.Get(headerIdempotencyKey)

	result, err := h.Transfers.Commit(r.Context(), req.toDomain(), actor(r), key)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	metrics.IncSimulation("transfer_commit", result.Simulation.IsValid)
	resp := CommitResponse{Simulation: toSimulationDTO(result.Simulation)}
	if result.Transfer == nil {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	dto := toTransferDTO(*result.Transfer)
	resp.Transfer = &dto
	metrics.IncTransfer(string(result.Transfer.Status))
	status := http.StatusCreated
	if result.Transfer.Status == quota.TransferPending {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

// ListTransfers returns transfers, optionally filtered by status.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	status := quota.TransferStatus(strings.ToLower(r.URL.Query().Get("status")))
	transfers, err := h.Quota.ListTransfers(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list transfers: %w", err))
		return
	}
	dtos := make([]TransferDTO, len(transfers))
	for i, t := range transfers {
		dtos[i] = toTransferDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTransfer returns one transfer.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.Quota.GetTransfer(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to load transfer: %w", err))
		return
	}
	if t == nil {
		h.writeDomainError(w, r, &generic.NotFoundError{Kind: "transfer", ID: id})
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// ApproveTransfer applies a pending transfer.
func (h *Handler) ApproveTransfer(w http.ResponseWriter, r *http.Request) {
	t, err := h.Transfers.Approve(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	metrics.IncTransfer(string(t.Status))
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// RejectTransfer closes a pending transfer. The body is optional.
func (h *Handler) RejectTransfer(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	t, err := h.Transfers.Reject(r.Context(), chi.URLParam(r, "id"), actor(r), req.Reason)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	metrics.IncTransfer(string(t.Status))
	writeJSON(w, http.StatusOK, toTransferDTO(*t))
}

// =============================================================================
// QUOTA REFERENCE DATA HANDLERS
// =============================================================================

// ListBalances returns a user's balances, for one period when given.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "userId"))
	periodID := generic.PeriodID(r.URL.Query().Get("periodId"))

	balances, err := h.Quota.ListBalances(r.Context(), userID, periodID)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list balances: %w", err))
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PutBalance sets a balance outside the ledger, e.g. the yearly allotment.
func (h *Handler) PutBalance(w http.ResponseWriter, r *http.Request) {
	var req BalanceDTO
	if !decodeBody(w, r, &req) {
		return
	}
	b := req.toDomain(h.now().UTC())
	if err := validateBalance(b); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Quota.SaveBalance(r.Context(), b); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to save balance: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

func validateBalance(b quota.Balance) error {
	if b.UserID == "" {
		return generic.InvalidInput("userId", "required")
	}
	if b.PeriodID == "" {
		return generic.InvalidInput("periodId", "required")
	}
	if !b.LeaveType.Valid() {
		return generic.InvalidInput("leaveType", "unknown leave type %q", b.LeaveType)
	}
	if b.CurrentBalance.IsNegative() {
		return generic.InvalidInput("currentBalance", "must be >= 0")
	}
	return nil
}

// ListTransactions returns a user's ledger, oldest first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "userId"))
	periodID := generic.PeriodID(r.URL.Query().Get("periodId"))

	txs, err := h.Quota.ListTransactions(r.Context(), userID, periodID)
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list transactions: %w", err))
		return
	}
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTransferRules returns every transfer rule.
func (h *Handler) ListTransferRules(w http.ResponseWriter, r *http.Request) {
	list, err := h.Quota.ListTransferRules(r.Context())
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to list transfer rules: %w", err))
		return
	}
	dtos := make([]TransferRuleDTO, len(list))
	for i, rule := range list {
		dtos[i] = toTransferRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveTransferRule creates or replaces a transfer rule.
func (h *Handler) SaveTransferRule(w http.ResponseWriter, r *http.Request) {
	var req TransferRuleDTO
	if !decodeBody(w, r, &req) {
		return
	}
	rule := req.toDomain()
	if err := rule.Validate(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Quota.SaveTransferRule(r.Context(), rule); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to save transfer rule: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, toTransferRuleDTO(rule))
}

// SaveCarryOverRule creates or replaces a carry-over rule.
func (h *Handler) SaveCarryOverRule(w http.ResponseWriter, r *http.Request) {
	var req CarryOverRuleDTO
	if !decodeBody(w, r, &req) {
		return
	}
	rule := req.toDomain()
	if err := rule.Validate(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Quota.SaveCarryOverRule(r.Context(), rule); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("failed to save carry-over rule: %w", err))
		return
	}
	req.LeaveType, req.RuleType = string(rule.LeaveType), string(rule.RuleType)
	writeJSON(w, http.StatusCreated, req)
}

// SimulateCarryOver previews how much of a balance survives into ToYear.
func (h *Handler) SimulateCarryOver(w http.ResponseWriter, r *http.Request) {
	var req CarryOverRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := quota.PreviewCarryOver(r.Context(), h.Quota, req.toDomain())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	metrics.IncSimulation("carryover", result.IsValid)
	writeJSON(w, http.StatusOK, toCarryOverDTO(result))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Code = errorCode(err)
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to status codes. Anything
// unclassified is a 500 and is logged with the request ID.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict with current state", err)
	default:
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error", Code: "internal"})
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, generic.ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, generic.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, generic.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, generic.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, generic.ErrNotFound):
		return "not_found"
	case errors.Is(err, generic.ErrAlreadyResolved):
		return "already_resolved"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return "duplicate_idempotency_key"
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(headerActor)); a != "" {
		return a
	}
	return defaultActor
}
