package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/planning-engine/generic"
)

// =============================================================================
// TIME OF DAY
// =============================================================================

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    generic.TimeOfDay
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", generic.NewTimeOfDay(8, 30), false},
		{"23:59", generic.NewTimeOfDay(23, 59), false},
		{"24:00", generic.EndOfDay, false},
		{"24:01", 0, true},
		{"12:60", 0, true},
		{"8:30", 0, true},
		{"08-30", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	var p generic.TimePeriod
	require.NoError(t, json.Unmarshal([]byte(`{"debut":"08:00","fin":"12:30"}`), &p))
	assert.Equal(t, generic.NewTimeOfDay(8, 0), p.Start)
	assert.Equal(t, generic.NewTimeOfDay(12, 30), p.End)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"debut":"08:00","fin":"12:30"}`, string(out))

	err = json.Unmarshal([]byte(`{"debut":800,"fin":"12:30"}`), &p)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestTimePeriod_JSONRequiresBothBounds(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing start", `{"fin":"12:00"}`, "debut"},
		{"null start", `{"debut":null,"fin":"12:00"}`, "debut"},
		{"missing end", `{"debut":"08:00"}`, "fin"},
		{"empty object", `{}`, "debut"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p generic.TimePeriod
			err := json.Unmarshal([]byte(tt.body), &p)

			require.ErrorIs(t, err, generic.ErrInvalidInput)
			var inputErr *generic.InvalidInputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
		})
	}
}

func TestTimeOfDay_On(t *testing.T) {
	day := time.Date(2025, time.March, 10, 15, 45, 0, 0, time.UTC)

	got := generic.NewTimeOfDay(8, 30).On(day)

	assert.Equal(t, time.Date(2025, time.March, 10, 8, 30, 0, 0, time.UTC), got)
}

// =============================================================================
// TIME PERIOD
// =============================================================================

func TestTimePeriod_Validate(t *testing.T) {
	_, err := generic.NewTimePeriod(generic.NewTimeOfDay(12, 0), generic.NewTimeOfDay(8, 0))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)

	_, err = generic.NewTimePeriod(generic.NewTimeOfDay(8, 0), generic.NewTimeOfDay(8, 0))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod, "empty period")

	_, err = generic.NewTimePeriod(generic.NewTimeOfDay(20, 0), generic.EndOfDay)
	assert.NoError(t, err)
}

func TestTimePeriod_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b generic.TimePeriod
		want bool
	}{
		{"touching", generic.MustTimePeriod("08:00", "12:00"), generic.MustTimePeriod("12:00", "16:00"), false},
		{"one minute shared", generic.MustTimePeriod("08:00", "12:01"), generic.MustTimePeriod("12:00", "16:00"), true},
		{"contained", generic.MustTimePeriod("08:00", "18:00"), generic.MustTimePeriod("10:00", "11:00"), true},
		{"identical", generic.MustTimePeriod("08:00", "12:00"), generic.MustTimePeriod("08:00", "12:00"), true},
		{"apart", generic.MustTimePeriod("08:00", "09:00"), generic.MustTimePeriod("10:00", "11:00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap is symmetric")
		})
	}
}

func TestTimePeriod_Duration(t *testing.T) {
	assert.Equal(t, 4*time.Hour+30*time.Minute, generic.MustTimePeriod("08:00", "12:30").Duration())
}

// =============================================================================
// DATE RANGE
// =============================================================================

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestDateRange_Overlaps(t *testing.T) {
	q1 := generic.DateRange{From: day(2025, 1, 1), To: day(2025, 3, 31)}

	assert.True(t, q1.Overlaps(generic.DateRange{From: day(2025, 3, 31)}), "closed bounds share the last day")
	assert.False(t, q1.Overlaps(generic.DateRange{From: day(2025, 4, 1)}))
	assert.True(t, q1.Overlaps(generic.DateRange{}), "unbounded range overlaps everything")
	assert.False(t, q1.Overlaps(generic.DateRange{To: day(2024, 12, 31)}))
}

func TestDateRange_ValidateAndContains(t *testing.T) {
	bad := generic.DateRange{From: day(2025, 2, 1), To: day(2025, 1, 1)}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)

	r := generic.DateRange{From: day(2025, 1, 1), To: day(2025, 1, 31)}
	assert.NoError(t, r.Validate())
	assert.True(t, r.Contains(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, generic.IsClientError(generic.InvalidInput("days", "must be > 0")))
	assert.True(t, generic.IsClientError(&generic.InvalidActionError{Action: "merge", Reason: "x"}))
	assert.True(t, generic.IsNotFound(&generic.NotFoundError{Kind: "rule", ID: "r1"}))
	assert.True(t, generic.IsConflict(generic.ErrAlreadyResolved))
	assert.False(t, generic.IsClientError(generic.ErrAlreadyResolved))
	assert.Equal(t, `rule "r1" not found`, (&generic.NotFoundError{Kind: "rule", ID: "r1"}).Error())
}
