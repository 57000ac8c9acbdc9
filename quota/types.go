/*
Package quota simulates and commits leave-quota transfers.

PURPOSE:
  A user may convert days from one leave balance into another (e.g. RTT
  into ANNUAL at a 0.5 rate). Simulate answers "can I, and how many days
  do I get" without touching any balance. TransferService commits a
  transfer once the user confirms, through the store's transaction.

SIMULATE / COMMIT SPLIT:
  Simulate is pure: same input, same output, no writes. The commit path
  re-reads balances and re-simulates inside the transaction, so a preview
  can never be applied twice or against a stale balance.

KEY TYPES:
  TransferRule:     Reference data per (from, to) pair
  Balance:          Current days per (user, period, leave type)
  TransferRequest:  What the user asks for
  SimulationResult: The verdict, with resulting days

PRECISION:
  All quantities are decimal.Decimal. 5 days at a 0.5 rate is exactly 2.5.

SEE ALSO:
  - simulate.go: The simulator
  - carryover.go: Year-end carry-over preview
  - transfer.go: Commit, approve, reject
*/
package quota

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveType string

const (
	LeaveAnnual    LeaveType = "ANNUAL"
	LeaveRecovery  LeaveType = "RECOVERY"
	LeaveRTT       LeaveType = "RTT"
	LeaveTraining  LeaveType = "TRAINING"
	LeaveSick      LeaveType = "SICK"
	LeaveMaternity LeaveType = "MATERNITY"
	LeaveSpecial   LeaveType = "SPECIAL"
	LeaveUnpaid    LeaveType = "UNPAID"
	LeaveOther     LeaveType = "OTHER"
)

var leaveTypes = map[LeaveType]bool{
	LeaveAnnual: true, LeaveRecovery: true, LeaveRTT: true, LeaveTraining: true,
	LeaveSick: true, LeaveMaternity: true, LeaveSpecial: true, LeaveUnpaid: true,
	LeaveOther: true,
}

// ParseLeaveType accepts known leave types, case-insensitively.
func ParseLeaveType(s string) (LeaveType, error) {
	lt := LeaveType(strings.ToUpper(strings.TrimSpace(s)))
	if !leaveTypes[lt] {
		return "", generic.InvalidInput("leaveType", "unknown leave type %q", s)
	}
	return lt, nil
}

func (lt LeaveType) Valid() bool {
	return leaveTypes[lt]
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// TransferRule governs conversions from one leave type to another.
// At most one active rule per (FromType, ToType) pair.
type TransferRule struct {
	ID             string
	FromType       LeaveType
	ToType         LeaveType
	ConversionRate decimal.Decimal

	// Optional limits; nil means unlimited.
	MaxTransferDays       *int
	MaxTransferPercentage *decimal.Decimal
	MinimumRemainingDays  *int

	RequiresApproval bool
	IsActive         bool
}

// Validate checks the rule's own invariants.
func (r TransferRule) Validate() error {
	if r.ID == "" {
		return generic.InvalidInput("id", "required")
	}
	if !r.FromType.Valid() {
		return generic.InvalidInput("fromType", "unknown leave type %q", r.FromType)
	}
	if !r.ToType.Valid() {
		return generic.InvalidInput("toType", "unknown leave type %q", r.ToType)
	}
	if r.FromType == r.ToType {
		return generic.InvalidInput("toType", "must differ from fromType")
	}
	if !r.ConversionRate.IsPositive() {
		return generic.InvalidInput("conversionRate", "must be > 0")
	}
	if r.MaxTransferDays != nil && *r.MaxTransferDays < 0 {
		return generic.InvalidInput("maxTransferDays", "must be >= 0")
	}
	if p := r.MaxTransferPercentage; p != nil && (p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100))) {
		return generic.InvalidInput("maxTransferPercentage", "must be within 0-100")
	}
	if r.MinimumRemainingDays != nil && *r.MinimumRemainingDays < 0 {
		return generic.InvalidInput("minimumRemainingDays", "must be >= 0")
	}
	return nil
}

// Balance is a user's current quota for one leave type in one period.
type Balance struct {
	UserID         generic.UserID
	PeriodID       generic.PeriodID
	LeaveType      LeaveType
	CurrentBalance decimal.Decimal
	UpdatedAt      time.Time
}

// BalanceKey identifies a balance row; it is also the lock scope of a commit.
type BalanceKey struct {
	UserID    generic.UserID
	PeriodID  generic.PeriodID
	LeaveType LeaveType
}

func (b Balance) Key() BalanceKey {
	return BalanceKey{UserID: b.UserID, PeriodID: b.PeriodID, LeaveType: b.LeaveType}
}

// =============================================================================
// REQUEST & RESULT
// =============================================================================

// TransferRequest asks to move Days from FromType to ToType.
type TransferRequest struct {
	UserID   generic.UserID
	PeriodID generic.PeriodID
	FromType LeaveType
	ToType   LeaveType
	Days     decimal.Decimal
}

// Validate rejects structurally invalid requests. Business limits are the
// simulator's job, not this one's.
func (r TransferRequest) Validate() error {
	if r.UserID == "" {
		return generic.InvalidInput("userId", "required")
	}
	if r.PeriodID == "" {
		return generic.InvalidInput("periodId", "required")
	}
	if !r.FromType.Valid() {
		return generic.InvalidInput("fromType", "unknown leave type %q", r.FromType)
	}
	if !r.ToType.Valid() {
		return generic.InvalidInput("toType", "unknown leave type %q", r.ToType)
	}
	if r.FromType == r.ToType {
		return generic.InvalidInput("toType", "must differ from fromType")
	}
	if !r.Days.IsPositive() {
		return generic.InvalidInput("days", "must be > 0")
	}
	return nil
}

func (r TransferRequest) SourceKey() BalanceKey {
	return BalanceKey{UserID: r.UserID, PeriodID: r.PeriodID, LeaveType: r.FromType}
}

func (r TransferRequest) DestinationKey() BalanceKey {
	return BalanceKey{UserID: r.UserID, PeriodID: r.PeriodID, LeaveType: r.ToType}
}

// SimulationResult is derived, never persisted.
type SimulationResult struct {
	IsValid          bool
	SourceRemaining  decimal.Decimal
	ResultingDays    decimal.Decimal
	ConversionRate   decimal.Decimal
	RequiresApproval bool
	Message          string
}
