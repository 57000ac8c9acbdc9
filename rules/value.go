package rules

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VALUE - Sealed operand type for conditions and actions
// =============================================================================

// Value is the operand of a condition or action. Sealed: Text, Number,
// List and Range are the only variants.
type Value interface {
	String() string
	sealedValue()
}

type Text string

type Number struct {
	decimal.Decimal
}

type List []string

// Range is the closed interval [Min, Max].
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func NewNumber(v float64) Number { return Number{decimal.NewFromFloat(v)} }

func NewRange(min, max float64) Range {
	return Range{Min: decimal.NewFromFloat(min), Max: decimal.NewFromFloat(max)}
}

func (t Text) String() string   { return string(t) }
func (n Number) String() string { return n.Decimal.String() }
func (l List) String() string   { return "[" + strings.Join(l, ", ") + "]" }
func (r Range) String() string  { return "[" + r.Min.String() + ", " + r.Max.String() + "]" }

func (Text) sealedValue()   {}
func (Number) sealedValue() {}
func (List) sealedValue()   {}
func (Range) sealedValue()  {}

func (l List) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

func valuesEqual(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av.Equal(bv.Decimal)
	case List:
		bv, ok := b.(List)
		return ok && sameSet(av, bv)
	case Range:
		bv, ok := b.(Range)
		return ok && av.Min.Equal(bv.Min) && av.Max.Equal(bv.Max)
	}
	return false
}

// combineValues merges two MODIFY operands on the same target:
// the larger number wins, lists are unioned, anything else takes b.
func combineValues(a, b Value) Value {
	switch av := a.(type) {
	case Number:
		if bv, ok := b.(Number); ok {
			if av.GreaterThan(bv.Decimal) {
				return av
			}
			return bv
		}
	case List:
		if bv, ok := b.(List); ok {
			return unionStrings(av, bv)
		}
	}
	return b
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func unionStrings(a, b []string) List {
	out := make(List, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// intersects treats an empty list as "everything".
func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// =============================================================================
// NUMERIC INTERVALS - For disjointness of numeric conditions
// =============================================================================

type bound struct {
	value     decimal.Decimal
	inclusive bool
	infinite  bool
}

type interval struct {
	lo, hi bound
}

// numericInterval maps a numeric condition to the set of values it admits.
func numericInterval(c Condition) (interval, bool) {
	unbounded := bound{infinite: true}
	switch v := c.Value.(type) {
	case Number:
		d := v.Decimal
		switch c.Operator {
		case OpEquals:
			return interval{bound{value: d, inclusive: true}, bound{value: d, inclusive: true}}, true
		case OpGreaterThan:
			return interval{bound{value: d}, unbounded}, true
		case OpGreaterOrEqual:
			return interval{bound{value: d, inclusive: true}, unbounded}, true
		case OpLessThan:
			return interval{unbounded, bound{value: d}}, true
		case OpLessOrEqual:
			return interval{unbounded, bound{value: d, inclusive: true}}, true
		}
	case Range:
		if c.Operator == OpBetween {
			return interval{bound{value: v.Min, inclusive: true}, bound{value: v.Max, inclusive: true}}, true
		}
	}
	return interval{}, false
}

// disjoint reports whether no number lies in both intervals.
func (a interval) disjoint(b interval) bool {
	return below(a.hi, b.lo) || below(b.hi, a.lo)
}

// below reports whether upper bound hi lies strictly before lower bound lo.
func below(hi, lo bound) bool {
	if hi.infinite || lo.infinite {
		return false
	}
	if hi.value.LessThan(lo.value) {
		return true
	}
	return hi.value.Equal(lo.value) && !(hi.inclusive && lo.inclusive)
}
