package quota

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// CARRY-OVER - Year-end preview
// =============================================================================

type CarryOverRuleType string

const (
	CarryOverPercentage CarryOverRuleType = "PERCENTAGE" // floor(remaining * value / 100)
	CarryOverFixed      CarryOverRuleType = "FIXED"      // min(remaining, value)
	CarryOverMaxDays    CarryOverRuleType = "MAX_DAYS"   // min(remaining, value)
	CarryOverAll        CarryOverRuleType = "ALL"        // remaining
)

func (t CarryOverRuleType) Valid() bool {
	switch t {
	case CarryOverPercentage, CarryOverFixed, CarryOverMaxDays, CarryOverAll:
		return true
	}
	return false
}

// CarryOverRule says how much of a leave type survives into the next year.
type CarryOverRule struct {
	ID               string
	LeaveType        LeaveType
	RuleType         CarryOverRuleType
	Value            decimal.Decimal
	MaxCarryOverDays *int
	ExpiryMonths     int // months after Jan 1 of the target year; 0 = never
	RequiresApproval bool
	IsActive         bool
}

func (r CarryOverRule) Validate() error {
	if r.ID == "" {
		return generic.InvalidInput("id", "required")
	}
	if !r.LeaveType.Valid() {
		return generic.InvalidInput("leaveType", "unknown leave type %q", r.LeaveType)
	}
	if !r.RuleType.Valid() {
		return generic.InvalidInput("ruleType", "unknown rule type %q", r.RuleType)
	}
	if r.Value.IsNegative() {
		return generic.InvalidInput("value", "must be >= 0")
	}
	if r.RuleType == CarryOverPercentage && r.Value.GreaterThan(decimal.NewFromInt(100)) {
		return generic.InvalidInput("value", "percentage above 100")
	}
	if r.MaxCarryOverDays != nil && *r.MaxCarryOverDays < 0 {
		return generic.InvalidInput("maxCarryOverDays", "must be >= 0")
	}
	if r.ExpiryMonths < 0 {
		return generic.InvalidInput("expiryMonths", "must be >= 0")
	}
	return nil
}

// CarryOverRequest asks what would carry over from PeriodID into ToYear.
type CarryOverRequest struct {
	UserID    generic.UserID
	PeriodID  generic.PeriodID
	LeaveType LeaveType
	ToYear    int
}

func (r CarryOverRequest) Validate() error {
	if r.UserID == "" {
		return generic.InvalidInput("userId", "required")
	}
	if r.PeriodID == "" {
		return generic.InvalidInput("periodId", "required")
	}
	if !r.LeaveType.Valid() {
		return generic.InvalidInput("leaveType", "unknown leave type %q", r.LeaveType)
	}
	if r.ToYear < 1970 || r.ToYear > 9999 {
		return generic.InvalidInput("toYear", "out of range")
	}
	return nil
}

// CarryOverResult is derived, never persisted. IsValid is false when no
// active rule covers the leave type.
type CarryOverResult struct {
	IsValid           bool
	OriginalRemaining decimal.Decimal
	CarryOverAmount   decimal.Decimal
	ExpiryDate        *time.Time
	RuleID            string
	RequiresApproval  bool
	Message           string
}

// SimulateCarryOver previews a carry-over. Pure, like Simulate.
func SimulateCarryOver(req CarryOverRequest, bal Balance, rule *CarryOverRule) CarryOverResult {
	if rule == nil || !rule.IsActive || rule.LeaveType != req.LeaveType {
		return CarryOverResult{
			OriginalRemaining: decimal.Zero,
			CarryOverAmount:   decimal.Zero,
			Message:           "no carry-over rule applies to this leave type",
		}
	}

	remaining := bal.CurrentBalance
	if !remaining.IsPositive() {
		return CarryOverResult{
			IsValid:           true,
			OriginalRemaining: decimal.Zero,
			CarryOverAmount:   decimal.Zero,
			RuleID:            rule.ID,
			RequiresApproval:  rule.RequiresApproval,
			Message:           "no remaining days to carry over",
		}
	}

	var amount decimal.Decimal
	switch rule.RuleType {
	case CarryOverPercentage:
		amount = remaining.Mul(rule.Value).Div(hundred).Floor()
	case CarryOverFixed, CarryOverMaxDays:
		amount = decimal.Min(remaining, rule.Value)
	case CarryOverAll:
		amount = remaining
	default:
		amount = decimal.Zero
	}
	if rule.MaxCarryOverDays != nil {
		amount = decimal.Min(amount, decimal.NewFromInt(int64(*rule.MaxCarryOverDays)))
	}

	result := CarryOverResult{
		IsValid:           true,
		OriginalRemaining: remaining,
		CarryOverAmount:   amount,
		RuleID:            rule.ID,
		RequiresApproval:  rule.RequiresApproval,
		Message:           fmt.Sprintf("%s %s days carry over into %d", amount.String(), req.LeaveType, req.ToYear),
	}
	if rule.ExpiryMonths > 0 {
		expiry := generic.StartOfYear(req.ToYear).AddDate(0, rule.ExpiryMonths, 0)
		result.ExpiryDate = &expiry
		result.Message += fmt.Sprintf(", expiring %s", expiry.Format("2006-01-02"))
	}
	return result
}
