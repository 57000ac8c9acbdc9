/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract: domain structs carry
  no JSON tags beyond the supervision issue shape, which is part of the
  bloc planning contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Supervision:
    ValidatePlanningRequest, LoadCheckRequest, SupervisionConfigDTO

  Rules:
    factory.RuleJSON (rules travel in their persisted form)
    ConflictDTO, ConflictListResponse, ConflictActionRequest,
    ResolutionPayloadDTO, ResolutionDTO

  Quota:
    TransferRequestDTO, SimulationDTO, TransferDTO, CommitResponse,
    BalanceDTO, TransferRuleDTO, CarryOverRequestDTO, CarryOverDTO

VALIDATION:
  Validation is done by the domain packages, not in DTOs. DTOs are pure
  data carriers plus conversion helpers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/factory"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/quota"
	"github.com/warp/planning-engine/rules"
	"github.com/warp/planning-engine/supervision"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// SUPERVISION
// =============================================================================

// SupervisionConfigDTO overrides the server's room caps for one request.
type SupervisionConfigDTO struct {
	MaxRoomsPerSupervisor *int `json:"maxRoomsPerSupervisor,omitempty"`
	MaxRoomsExceptional   *int `json:"maxRoomsExceptional,omitempty"`
}

func (c *SupervisionConfigDTO) apply(base supervision.Config) (supervision.Config, error) {
	if c == nil {
		return base, nil
	}
	if c.MaxRoomsPerSupervisor != nil {
		base.MaxRoomsPerSupervisor = *c.MaxRoomsPerSupervisor
	}
	if c.MaxRoomsExceptional != nil {
		base.MaxRoomsExceptional = *c.MaxRoomsExceptional
	}
	return base, base.Validate()
}

type ValidatePlanningRequest struct {
	Date   string                       `json:"date"`
	Rooms  []supervision.RoomAssignment `json:"salles"`
	Config *SupervisionConfigDTO        `json:"config,omitempty"`
}

type LoadCheckRequest struct {
	Supervisors []supervision.SupervisorAssignment `json:"superviseurs"`
	Config      *SupervisionConfigDTO              `json:"config,omitempty"`
}

// =============================================================================
// RULES & CONFLICTS
// =============================================================================

type ConflictDTO struct {
	ID          string    `json:"id"`
	RuleIDs     [2]string `json:"ruleIds"`
	Severity    string    `json:"severity"`
	Kinds       []string  `json:"kinds"`
	Description string    `json:"description"`
	DetectedAt  time.Time `json:"detectedAt"`
	Resolved    bool      `json:"resolved,omitempty"`
}

type GroupedDTO struct {
	Critical []ConflictDTO `json:"critical"`
	High     []ConflictDTO `json:"high"`
	Medium   []ConflictDTO `json:"medium"`
	Low      []ConflictDTO `json:"low"`
}

type ConflictListResponse struct {
	Conflicts []ConflictDTO `json:"conflicts"`
	Grouped   GroupedDTO    `json:"grouped"`
	Total     int           `json:"total"`
	Summary   rules.Summary `json:"summary"`
}

type CheckResponse struct {
	Conflicts []ConflictDTO `json:"conflicts"`
	Count     int           `json:"count"`
}

// ConflictActionRequest is the body of POST /api/rules/conflicts.
// Action "check" reads Rule; action "resolve" reads the rest.
type ConflictActionRequest struct {
	Action     string                `json:"action"`
	Rule       *factory.RuleJSON     `json:"rule,omitempty"`
	ConflictID string                `json:"conflictId,omitempty"`
	Strategy   string                `json:"strategy,omitempty"`
	Resolution *ResolutionPayloadDTO `json:"resolution,omitempty"`
}

// ResolutionPayloadDTO carries strategy input: the merged rule identity
// (merge), the replacement rule (override) or the reason (manual).
type ResolutionPayloadDTO struct {
	MergedRuleID   string            `json:"mergedRuleId,omitempty"`
	MergedRuleName string            `json:"mergedRuleName,omitempty"`
	Rule           *factory.RuleJSON `json:"rule,omitempty"`
	IgnoreReason   string            `json:"ignoreReason,omitempty"`
}

type ResolutionDTO struct {
	ConflictID string        `json:"conflictId"`
	RuleIDs    [2]string     `json:"ruleIds"`
	Strategy   string        `json:"strategy"`
	Severity   string        `json:"severity"`
	Details    rules.Details `json:"details"`
	ResolvedBy string        `json:"resolvedBy"`
	ResolvedAt time.Time     `json:"resolvedAt"`
}

type ResolveResponse struct {
	Resolution ResolvedConflictDTO `json:"resolution"`
	Message    string              `json:"message"`
}

type ResolvedConflictDTO struct {
	Conflict          ConflictDTO   `json:"conflict"`
	ResolvedAt        time.Time     `json:"resolvedAt"`
	Resolution        string        `json:"resolution"`
	ResolutionDetails rules.Details `json:"resolutionDetails"`
}

func toConflictDTO(c rules.Conflict) ConflictDTO {
	kinds := make([]string, len(c.Kinds))
	for i, k := range c.Kinds {
		kinds[i] = string(k)
	}
	return ConflictDTO{
		ID:          c.ID,
		RuleIDs:     c.RuleIDs,
		Severity:    string(c.Severity),
		Kinds:       kinds,
		Description: c.Description,
		DetectedAt:  c.DetectedAt,
	}
}

func toConflictDTOs(conflicts []rules.Conflict) []ConflictDTO {
	out := make([]ConflictDTO, len(conflicts))
	for i, c := range conflicts {
		out[i] = toConflictDTO(c)
	}
	return out
}

func toConflictListResponse(report rules.Report) ConflictListResponse {
	return ConflictListResponse{
		Conflicts: toConflictDTOs(report.Conflicts),
		Grouped: GroupedDTO{
			Critical: toConflictDTOs(report.Grouped.Critical),
			High:     toConflictDTOs(report.Grouped.High),
			Medium:   toConflictDTOs(report.Grouped.Medium),
			Low:      toConflictDTOs(report.Grouped.Low),
		},
		Total:   report.Total,
		Summary: report.Summary,
	}
}

func toResolutionDTO(r rules.Resolution) ResolutionDTO {
	return ResolutionDTO{
		ConflictID: r.ConflictID,
		RuleIDs:    r.RuleIDs,
		Strategy:   string(r.Strategy),
		Severity:   string(r.Severity),
		Details:    r.Details,
		ResolvedBy: r.ResolvedBy,
		ResolvedAt: r.ResolvedAt,
	}
}

func toResolvedConflictDTO(rc rules.ResolvedConflict) ResolvedConflictDTO {
	return ResolvedConflictDTO{
		Conflict:          toConflictDTO(rc.Conflict),
		ResolvedAt:        rc.ResolvedAt,
		Resolution:        string(rc.Resolution),
		ResolutionDetails: rc.ResolutionDetails,
	}
}

// =============================================================================
// QUOTA
// =============================================================================

type TransferRequestDTO struct {
	UserID   string          `json:"userId"`
	PeriodID string          `json:"periodId"`
	FromType string          `json:"fromType"`
	ToType   string          `json:"toType"`
	Days     float64 `json:"days"`
}

// toDomain normalizes leave types; unknown values fail request validation.
func (d TransferRequestDTO) toDomain() quota.TransferRequest {
	return quota.TransferRequest{
		UserID:   generic.UserID(d.UserID),
		PeriodID: generic.PeriodID(d.PeriodID),
		FromType: normalizeLeaveType(d.FromType),
		ToType:   normalizeLeaveType(d.ToType),
		Days:     decimal.NewFromFloat(d.Days),
	}
}

func normalizeLeaveType(s string) quota.LeaveType {
	if lt, err := quota.ParseLeaveType(s); err == nil {
		return lt
	}
	return quota.LeaveType(s)
}

type SimulationDTO struct {
	IsValid          bool    `json:"isValid"`
	SourceRemaining  float64 `json:"sourceRemaining"`
	ResultingDays    float64 `json:"resultingDays"`
	ConversionRate   float64 `json:"conversionRate"`
	RequiresApproval bool    `json:"requiresApproval"`
	Message          string  `json:"message,omitempty"`
}

func toSimulationDTO(r quota.SimulationResult) SimulationDTO {
	return SimulationDTO{
		IsValid:          r.IsValid,
		SourceRemaining:  toFloat(r.SourceRemaining),
		ResultingDays:    toFloat(r.ResultingDays),
		ConversionRate:   toFloat(r.ConversionRate),
		RequiresApproval: r.RequiresApproval,
		Message:          r.Message,
	}
}

type TransferDTO struct {
	ID              string             `json:"id"`
	Request         TransferRequestDTO `json:"request"`
	RuleID          string             `json:"ruleId"`
	ResultingDays   float64            `json:"resultingDays"`
	ConversionRate  float64            `json:"conversionRate"`
	Status          string             `json:"status"`
	RequestedBy     string             `json:"requestedBy"`
	DecidedBy       string             `json:"decidedBy,omitempty"`
	RejectionReason string             `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	DecidedAt       *time.Time         `json:"decidedAt,omitempty"`
}

func toTransferDTO(t quota.Transfer) TransferDTO {
	return TransferDTO{
		ID: t.ID,
		Request: TransferRequestDTO{
			UserID:   string(t.Request.UserID),
			PeriodID: string(t.Request.PeriodID),
			FromType: string(t.Request.FromType),
			ToType:   string(t.Request.ToType),
			Days:     toFloat(t.Request.Days),
		},
		RuleID:          t.RuleID,
		ResultingDays:   toFloat(t.ResultingDays),
		ConversionRate:  toFloat(t.ConversionRate),
		Status:          string(t.Status),
		RequestedBy:     t.RequestedBy,
		DecidedBy:       t.DecidedBy,
		RejectionReason: t.RejectionReason,
		CreatedAt:       t.CreatedAt,
		DecidedAt:       t.DecidedAt,
	}
}

// CommitResponse: Transfer is nil when the simulation refused the request.
type CommitResponse struct {
	Transfer   *TransferDTO  `json:"transfer,omitempty"`
	Simulation SimulationDTO `json:"simulation"`
}

type DecisionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type BalanceDTO struct {
	UserID         string     `json:"userId"`
	PeriodID       string     `json:"periodId"`
	LeaveType      string     `json:"leaveType"`
	CurrentBalance float64    `json:"currentBalance"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

func (d BalanceDTO) toDomain(at time.Time) quota.Balance {
	return quota.Balance{
		UserID:         generic.UserID(d.UserID),
		PeriodID:       generic.PeriodID(d.PeriodID),
		LeaveType:      normalizeLeaveType(d.LeaveType),
		CurrentBalance: decimal.NewFromFloat(d.CurrentBalance),
		UpdatedAt:      at,
	}
}

func toBalanceDTO(b quota.Balance) BalanceDTO {
	dto := BalanceDTO{
		UserID:         string(b.UserID),
		PeriodID:       string(b.PeriodID),
		LeaveType:      string(b.LeaveType),
		CurrentBalance: toFloat(b.CurrentBalance),
	}
	if !b.UpdatedAt.IsZero() {
		at := b.UpdatedAt
		dto.UpdatedAt = &at
	}
	return dto
}

type TransferRuleDTO struct {
	ID                    string   `json:"id"`
	FromType              string   `json:"fromType"`
	ToType                string   `json:"toType"`
	ConversionRate        float64  `json:"conversionRate"`
	MaxTransferDays       *int     `json:"maxTransferDays"`
	MaxTransferPercentage *float64 `json:"maxTransferPercentage"`
	MinimumRemainingDays  *int     `json:"minimumRemainingDays"`
	RequiresApproval      bool     `json:"requiresApproval"`
	IsActive              bool     `json:"isActive"`
}

func (d TransferRuleDTO) toDomain() quota.TransferRule {
	return quota.TransferRule{
		ID:                    d.ID,
		FromType:              normalizeLeaveType(d.FromType),
		ToType:                normalizeLeaveType(d.ToType),
		ConversionRate:        decimal.NewFromFloat(d.ConversionRate),
		MaxTransferDays:       d.MaxTransferDays,
		MaxTransferPercentage: decimalPtr(d.MaxTransferPercentage),
		MinimumRemainingDays:  d.MinimumRemainingDays,
		RequiresApproval:      d.RequiresApproval,
		IsActive:              d.IsActive,
	}
}

func toTransferRuleDTO(r quota.TransferRule) TransferRuleDTO {
	return TransferRuleDTO{
		ID:                    r.ID,
		FromType:              string(r.FromType),
		ToType:                string(r.ToType),
		ConversionRate:        toFloat(r.ConversionRate),
		MaxTransferDays:       r.MaxTransferDays,
		MaxTransferPercentage: floatPtr(r.MaxTransferPercentage),
		MinimumRemainingDays:  r.MinimumRemainingDays,
		RequiresApproval:      r.RequiresApproval,
		IsActive:              r.IsActive,
	}
}

type CarryOverRequestDTO struct {
	UserID    string `json:"userId"`
	PeriodID  string `json:"periodId"`
	LeaveType string `json:"leaveType"`
	ToYear    int    `json:"toYear"`
}

func (d CarryOverRequestDTO) toDomain() quota.CarryOverRequest {
	return quota.CarryOverRequest{
		UserID:    generic.UserID(d.UserID),
		PeriodID:  generic.PeriodID(d.PeriodID),
		LeaveType: normalizeLeaveType(d.LeaveType),
		ToYear:    d.ToYear,
	}
}

type CarryOverDTO struct {
	IsValid           bool    `json:"isValid"`
	OriginalRemaining float64 `json:"originalRemaining"`
	CarryOverAmount   float64 `json:"carryOverAmount"`
	ExpiryDate        *string `json:"expiryDate"`
	RuleID            string  `json:"ruleId,omitempty"`
	RequiresApproval  bool    `json:"requiresApproval"`
	Message           string  `json:"message,omitempty"`
}

func toCarryOverDTO(r quota.CarryOverResult) CarryOverDTO {
	dto := CarryOverDTO{
		IsValid:           r.IsValid,
		OriginalRemaining: toFloat(r.OriginalRemaining),
		CarryOverAmount:   toFloat(r.CarryOverAmount),
		RuleID:            r.RuleID,
		RequiresApproval:  r.RequiresApproval,
		Message:           r.Message,
	}
	if r.ExpiryDate != nil {
		s := r.ExpiryDate.Format("2006-01-02")
		dto.ExpiryDate = &s
	}
	return dto
}

type CarryOverRuleDTO struct {
	ID               string  `json:"id"`
	LeaveType        string  `json:"leaveType"`
	RuleType         string  `json:"ruleType"`
	Value            float64 `json:"value"`
	MaxCarryOverDays *int    `json:"maxCarryOverDays"`
	ExpiryMonths     int     `json:"expiryMonths"`
	RequiresApproval bool    `json:"requiresApproval"`
	IsActive         bool    `json:"isActive"`
}

func (d CarryOverRuleDTO) toDomain() quota.CarryOverRule {
	return quota.CarryOverRule{
		ID:               d.ID,
		LeaveType:        normalizeLeaveType(d.LeaveType),
		RuleType:         quota.CarryOverRuleType(strings.ToUpper(d.RuleType)),
		Value:            decimal.NewFromFloat(d.Value),
		MaxCarryOverDays: d.MaxCarryOverDays,
		ExpiryMonths:     d.ExpiryMonths,
		RequiresApproval: d.RequiresApproval,
		IsActive:         d.IsActive,
	}
}

type TransactionDTO struct {
	ID          string    `json:"id"`
	LeaveType   string    `json:"leaveType"`
	Delta       float64   `json:"delta"`
	Type        string    `json:"type"`
	ReferenceID string    `json:"referenceId,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTransactionDTO(tx quota.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		LeaveType:   string(tx.LeaveType),
		Delta:       toFloat(tx.Delta),
		Type:        string(tx.Type),
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
		CreatedAt:   tx.CreatedAt,
	}
}

// =============================================================================
// NUMBERS
// =============================================================================

// Quantities are exact decimals inside and plain JSON numbers at the edge.

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := toFloat(*d)
	return &f
}

func decimalPtr(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}
