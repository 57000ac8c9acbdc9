package generic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// TIME OF DAY - Minutes since midnight
// =============================================================================

// TimeOfDay is a wall-clock time within a planning day.
// Stored as minutes since midnight; serialized as "HH:MM".
type TimeOfDay int

const (
	minutesPerDay = 24 * 60

	// EndOfDay is 24:00, the only value allowed past 23:59.
	EndOfDay TimeOfDay = minutesPerDay
)

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted as end of day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, InvalidInput("time", "%q is not HH:MM", s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil {
		return 0, InvalidInput("time", "%q is not HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, InvalidInput("time", "%q is out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Valid reports whether t is within [00:00, 24:00].
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= EndOfDay
}

// On anchors the time of day to a calendar date in the date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, mo, d := date.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, date.Location()).Add(time.Duration(t) * time.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return InvalidInput("time", "expected \"HH:MM\" string")
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// =============================================================================
// TIME PERIOD - Half-open interval within a day
// =============================================================================

// TimePeriod is the half-open interval [Start, End) within one day.
// Invariant: Start < End. Immutable value.
type TimePeriod struct {
	Start TimeOfDay `json:"debut"`
	End   TimeOfDay `json:"fin"`
}

// NewTimePeriod builds a period and checks the invariant.
func NewTimePeriod(start, end TimeOfDay) (TimePeriod, error) {
	p := TimePeriod{Start: start, End: end}
	return p, p.Validate()
}

// MustTimePeriod is NewTimePeriod for literals in code and tests.
func MustTimePeriod(start, end string) TimePeriod {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	p, err := NewTimePeriod(s, e)
	if err != nil {
		panic(err)
	}
	return p
}

// UnmarshalJSON requires both bounds. A missing "debut" would otherwise
// decode as 00:00 and pass as a real interval.
func (p *TimePeriod) UnmarshalJSON(data []byte) error {
	var raw struct {
		Start *TimeOfDay `json:"debut"`
		End   *TimeOfDay `json:"fin"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Start == nil {
		return InvalidInput("debut", "required")
	}
	if raw.End == nil {
		return InvalidInput("fin", "required")
	}
	*p = TimePeriod{Start: *raw.Start, End: *raw.End}
	return nil
}

// Validate returns ErrInvalidPeriod unless Start < End and both are in range.
func (p TimePeriod) Validate() error {
	if !p.Start.Valid() || !p.End.Valid() {
		return fmt.Errorf("%w: %s out of day bounds", ErrInvalidPeriod, p)
	}
	if p.Start >= p.End {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Overlaps reports whether two half-open periods share any instant.
// [08:00,12:00) and [12:00,16:00) do not overlap.
func (p TimePeriod) Overlaps(other TimePeriod) bool {
	return p.Start < other.End && p.End > other.Start
}

// Duration is the length of the period.
func (p TimePeriod) Duration() time.Duration {
	return time.Duration(p.End-p.Start) * time.Minute
}

func (p TimePeriod) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}
