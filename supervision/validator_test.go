package supervision_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/planning-engine/generic"
	"github.com/warp/planning-engine/supervision"
)

func principal(user string, periods ...generic.TimePeriod) supervision.SupervisorAssignment {
	return supervision.SupervisorAssignment{UserID: generic.UserID(user), Role: supervision.RolePrincipal, Periods: periods}
}

func secondary(user string, periods ...generic.TimePeriod) supervision.SupervisorAssignment {
	return supervision.SupervisorAssignment{UserID: generic.UserID(user), Role: supervision.RoleSecondary, Periods: periods}
}

func room(id string, sups ...supervision.SupervisorAssignment) supervision.RoomAssignment {
	return supervision.RoomAssignment{RoomID: generic.RoomID(id), Supervisors: sups}
}

func codes(issues []supervision.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

var morning = generic.MustTimePeriod("08:00", "12:00")

// =============================================================================
// DAY PLANNING
// =============================================================================

func TestValidateDayPlanning_EmptyPlanIsValid(t *testing.T) {
	v := supervision.NewValidator(supervision.DefaultConfig())

	result, err := v.ValidateDayPlanning(nil)

	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Infos)
}

func TestValidateDayPlanning_MissingPrincipalOncePerRoom(t *testing.T) {
	// GIVEN: Two rooms with only secondaries, one correctly staffed room
	v := supervision.NewValidator(supervision.DefaultConfig())
	plan := []supervision.RoomAssignment{
		room("S1", secondary("u1", morning)),
		room("S2"),
		room("S3", principal("u3", morning), secondary("u4", morning)),
	}

	// WHEN
	result, err := v.ValidateDayPlanning(plan)

	// THEN: One issue per room lacking a principal
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 2)
	for i, roomID := range []string{"S1", "S2"} {
		assert.Equal(t, supervision.CodePrincipalRequired, result.Errors[i].Code)
		assert.Equal(t, supervision.SeverityError, result.Errors[i].Severity)
		assert.Equal(t, []supervision.EntityRef{{Type: supervision.EntityRoom, ID: roomID}}, result.Errors[i].AffectedEntities)
		assert.NotEmpty(t, result.Errors[i].ID)
		assert.False(t, result.Errors[i].Resolved)
	}
}

func TestValidateDayPlanning_CapacityBoundary(t *testing.T) {
	v := supervision.NewValidator(supervision.DefaultConfig())

	t.Run("exactly max rooms is fine", func(t *testing.T) {
		plan := []supervision.RoomAssignment{
			room("S1", principal("mar", generic.MustTimePeriod("08:00", "10:00"))),
			room("S2", principal("mar", generic.MustTimePeriod("10:00", "12:00"))),
		}
		result, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})

	t.Run("max plus one yields exactly one issue", func(t *testing.T) {
		plan := []supervision.RoomAssignment{
			room("S1", principal("mar", generic.MustTimePeriod("08:00", "10:00"))),
			room("S2", principal("mar", generic.MustTimePeriod("10:00", "12:00"))),
			room("S3", principal("mar", generic.MustTimePeriod("12:00", "14:00"))),
		}
		result, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.Equal(t, []string{supervision.CodeMaxRooms}, codes(result.Errors))
		assert.Contains(t, result.Errors[0].Description, "3 salles")
		assert.Contains(t, result.Errors[0].Description, "2")
	})

	t.Run("same room listed twice counts once", func(t *testing.T) {
		plan := []supervision.RoomAssignment{
			room("S1", principal("mar", generic.MustTimePeriod("08:00", "10:00")), secondary("mar", generic.MustTimePeriod("10:00", "12:00"))),
			room("S2", principal("mar", generic.MustTimePeriod("13:00", "15:00"))),
		}
		result, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})
}

func TestValidateDayPlanning_ExceptionalCapacityWarns(t *testing.T) {
	// GIVEN: Normal cap 2, exceptional cap 3
	v := supervision.NewValidator(supervision.Config{MaxRoomsPerSupervisor: 2, MaxRoomsExceptional: 3})
	three := []supervision.RoomAssignment{
		room("S1", principal("mar", generic.MustTimePeriod("08:00", "09:00"))),
		room("S2", principal("mar", generic.MustTimePeriod("09:00", "10:00"))),
		room("S3", principal("mar", generic.MustTimePeriod("10:00", "11:00"))),
	}

	// WHEN: Three rooms
	result, err := v.ValidateDayPlanning(three)

	// THEN: Warning only, plan stays valid
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, []string{supervision.CodeMaxRoomsException}, codes(result.Warnings))

	// WHEN: Four rooms
	four := append(three, room("S4", principal("mar", generic.MustTimePeriod("11:00", "12:00"))))
	result, err = v.ValidateDayPlanning(four)

	// THEN: Hard error
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{supervision.CodeMaxRooms}, codes(result.Errors))
	assert.Empty(t, result.Warnings)
}

func TestValidateDayPlanning_OverlapAcrossRooms(t *testing.T) {
	v := supervision.NewValidator(supervision.DefaultConfig())

	t.Run("overlapping periods in two rooms", func(t *testing.T) {
		plan := []supervision.RoomAssignment{
			room("S1", principal("mar", generic.MustTimePeriod("08:00", "12:00"))),
			room("S2", principal("mar", generic.MustTimePeriod("11:00", "15:00"))),
		}
		result, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.Equal(t, []string{supervision.CodeOverlappingPeriods}, codes(result.Errors))
		assert.Equal(t, supervision.EntityRef{Type: supervision.EntitySupervisor, ID: "mar"}, result.Errors[0].AffectedEntities[0])
	})

	t.Run("touching boundaries do not overlap", func(t *testing.T) {
		plan := []supervision.RoomAssignment{
			room("S1", principal("mar", generic.MustTimePeriod("08:00", "12:00"))),
			room("S2", principal("mar", generic.MustTimePeriod("12:00", "16:00"))),
		}
		result, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})

	t.Run("same room periods are not compared", func(t *testing.T) {
		plan := []supervision.RoomAssignment{
			room("S1", principal("mar", generic.MustTimePeriod("08:00", "12:00"), generic.MustTimePeriod("10:00", "14:00"))),
		}
		result, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.True(t, result.IsValid)
	})
}

func TestValidateDayPlanning_MalformedInput(t *testing.T) {
	v := supervision.NewValidator(supervision.DefaultConfig())

	tests := []struct {
		name string
		plan []supervision.RoomAssignment
	}{
		{"missing room id", []supervision.RoomAssignment{room("", principal("u1", morning))}},
		{"missing user id", []supervision.RoomAssignment{room("S1", principal("", morning))}},
		{"unknown role", []supervision.RoomAssignment{room("S1", supervision.SupervisorAssignment{UserID: "u1", Role: "CHIEF"})}},
		{"inverted period", []supervision.RoomAssignment{room("S1", principal("u1", generic.TimePeriod{
			Start: generic.NewTimeOfDay(12, 0), End: generic.NewTimeOfDay(8, 0),
		}))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateDayPlanning(tt.plan)
			require.Error(t, err)
			assert.True(t, errors.Is(err, generic.ErrInvalidInput))
			var iie *generic.InvalidInputError
			assert.True(t, errors.As(err, &iie))
		})
	}
}

func TestValidateDayPlanning_Deterministic(t *testing.T) {
	v := supervision.NewValidator(supervision.DefaultConfig())
	plan := []supervision.RoomAssignment{
		room("S1", principal("b", generic.MustTimePeriod("08:00", "12:00")), secondary("a", morning)),
		room("S2", secondary("b", generic.MustTimePeriod("09:00", "10:00"))),
		room("S3", secondary("a", generic.MustTimePeriod("11:00", "13:00")), secondary("b", morning)),
	}

	first, err := v.ValidateDayPlanning(plan)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := v.ValidateDayPlanning(plan)
		require.NoError(t, err)
		assert.Equal(t, codes(first.Errors), codes(again.Errors))
	}
}

// =============================================================================
// FLAT LOAD CHECK
// =============================================================================

func TestCheckSupervisorLoad_NoRoomExclusion(t *testing.T) {
	// GIVEN: Two overlapping periods for the same supervisor in the same room
	v := supervision.NewValidator(supervision.DefaultConfig())
	flat := []supervision.SupervisorAssignment{
		{UserID: "mar", Role: supervision.RolePrincipal, RoomID: "S1", Periods: []generic.TimePeriod{generic.MustTimePeriod("08:00", "12:00")}},
		{UserID: "mar", Role: supervision.RoleSecondary, RoomID: "S1", Periods: []generic.TimePeriod{generic.MustTimePeriod("10:00", "14:00")}},
		{UserID: "other", Role: supervision.RolePrincipal, Periods: []generic.TimePeriod{morning}},
	}

	// WHEN
	result, err := v.CheckSupervisorLoad(flat)

	// THEN: The flat checker flags it, the room-grouped one would not
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{supervision.CodeOverlappingPeriods}, codes(result.Errors))

	grouped, err := v.ValidateDayPlanning([]supervision.RoomAssignment{{RoomID: "S1", Supervisors: flat[:2]}})
	require.NoError(t, err)
	assert.True(t, grouped.IsValid)
}

func TestCheckSupervisorLoad_BackToBackIsFine(t *testing.T) {
	v := supervision.NewValidator(supervision.DefaultConfig())
	flat := []supervision.SupervisorAssignment{
		principal("mar", generic.MustTimePeriod("08:00", "12:00"), generic.MustTimePeriod("12:00", "16:00")),
	}

	result, err := v.CheckSupervisorLoad(flat)

	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     supervision.Config
		wantErr bool
	}{
		{"default", supervision.DefaultConfig(), false},
		{"with exceptional cap", supervision.Config{MaxRoomsPerSupervisor: 2, MaxRoomsExceptional: 3}, false},
		{"zero cap", supervision.Config{MaxRoomsPerSupervisor: 0}, true},
		{"negative cap", supervision.Config{MaxRoomsPerSupervisor: -1}, true},
		{"exceptional equal to cap", supervision.Config{MaxRoomsPerSupervisor: 2, MaxRoomsExceptional: 2}, true},
		{"exceptional below cap", supervision.Config{MaxRoomsPerSupervisor: 3, MaxRoomsExceptional: 1}, true},
		{"negative exceptional", supervision.Config{MaxRoomsPerSupervisor: 2, MaxRoomsExceptional: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, generic.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}
