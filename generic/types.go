/*
Package generic provides the primitives shared by the planning engine.

PURPOSE:
  This package contains domain-agnostic types used by the three engine
  packages. Supervision validation, rule conflict detection and quota
  simulation all speak in these terms, so the HTTP layer and the stores
  never need to translate between them.

KEY CONCEPTS:
  - TimeOfDay / TimePeriod: Half-open intervals within a planning day (time.go)
  - DateRange: Optional-bounded calendar windows (period.go)
  - Days: Decimal day quantities for leave balances (this file)
  - Type-safe identifiers for users and periods (this file)
  - Sentinel and structured errors (errors.go)

DESIGN PRINCIPLES:
  1. Immutability: Values are passed by copy and never mutated in place
  2. Precision: Day quantities use decimal.Decimal, never float64
  3. Type Safety: Strong typing for IDs prevents mixing user/period IDs

SEE ALSO:
  - supervision/: Uses TimePeriod.Overlaps
  - rules/: Uses DateRange.Overlaps
  - quota/: Uses Days
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type PeriodID string
type RoomID string

// =============================================================================
// DAYS - Decimal day quantity
// =============================================================================

// Days is a leave quantity. Half days and conversion rates such as 0.5
// produce fractional values, so it is always a decimal.
type Days = decimal.Decimal

func NewDays(value float64) Days {
	return decimal.NewFromFloat(value)
}

func NewDaysFromInt(value int) Days {
	return decimal.NewFromInt(int64(value))
}

// MustParseDecimal is for literals in code and tests. It panics on a
// malformed value.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("invalid decimal %q: %v", s, err))
	}
	return d
}

// MinDecimal returns the smallest of its arguments.
func MinDecimal(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	return decimal.Min(first, rest...)
}

// IntPtr is a convenience for optional integer fields.
func IntPtr(v int) *int {
	return &v
}

// DecimalPtr is a convenience for optional decimal fields.
func DecimalPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}
