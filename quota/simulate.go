package quota

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Simulation messages.
const (
	MsgNoRule              = "no rule defined for this pair"
	MsgInsufficientBalance = "insufficient balance"
)

var hundred = decimal.NewFromInt(100)

// Simulate previews a transfer. It never mutates its inputs and never
// fails: every refusal is an invalid result with a message. Checks run in
// order and stop at the first refusal:
//
//  1. no active rule for the pair
//  2. balance below the requested days
//  3. requested days above min(maxTransferDays, balance*pct/100, balance)
//  4. remaining balance below minimumRemainingDays
//
// A refused simulation leaves SourceRemaining at the current balance.
func Simulate(req TransferRequest, bal Balance, rule *TransferRule) SimulationResult {
	current := bal.CurrentBalance

	if rule == nil || !rule.IsActive {
		return SimulationResult{
			SourceRemaining: current,
			ResultingDays:   decimal.Zero,
			ConversionRate:  decimal.Zero,
			Message:         MsgNoRule,
		}
	}

	refuse := func(msg string) SimulationResult {
		return SimulationResult{
			SourceRemaining:  current,
			ResultingDays:    decimal.Zero,
			ConversionRate:   rule.ConversionRate,
			RequiresApproval: rule.RequiresApproval,
			Message:          msg,
		}
	}

	if current.LessThan(req.Days) {
		return refuse(MsgInsufficientBalance)
	}

	maxAllowed := MaxTransferable(current, *rule)
	if req.Days.GreaterThan(maxAllowed) {
		return refuse(fmt.Sprintf("transfer exceeds the maximum of %s days", maxAllowed.String()))
	}

	remaining := current.Sub(req.Days)
	if floor := rule.MinimumRemainingDays; floor != nil && remaining.LessThan(decimal.NewFromInt(int64(*floor))) {
		return refuse(fmt.Sprintf("transfer would leave %s days, below the minimum of %d", remaining.String(), *floor))
	}

	resulting := req.Days.Mul(rule.ConversionRate)
	return SimulationResult{
		IsValid:          true,
		SourceRemaining:  remaining,
		ResultingDays:    resulting,
		ConversionRate:   rule.ConversionRate,
		RequiresApproval: rule.RequiresApproval,
		Message: fmt.Sprintf("%s %s days become %s %s days",
			req.Days.String(), req.FromType, resulting.String(), req.ToType),
	}
}

// MaxTransferable is the largest number of days the rule lets leave a
// balance: min(maxTransferDays ?? inf, balance*pct/100, balance).
func MaxTransferable(current decimal.Decimal, rule TransferRule) decimal.Decimal {
	pct := hundred
	if rule.MaxTransferPercentage != nil {
		pct = *rule.MaxTransferPercentage
	}
	maxAllowed := decimal.Min(current, current.Mul(pct).Div(hundred))
	if rule.MaxTransferDays != nil {
		maxAllowed = decimal.Min(maxAllowed, decimal.NewFromInt(int64(*rule.MaxTransferDays)))
	}
	return maxAllowed
}
