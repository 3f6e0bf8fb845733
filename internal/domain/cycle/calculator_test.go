package cycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

// TestCurrentCycleMatchesCalendarFormula checks floor(days/duration)+1 over a range of offsets.
func TestCurrentCycleMatchesCalendarFormula(t *testing.T) {
	calc := NewCalculator(19)
	loc := mustLoad(t, "Asia/Singapore")
	start := time.Date(2024, time.January, 1, 19, 0, 0, 0, loc)

	for _, duration := range []int{1, 3, 7, 30, 365} {
		for days := 0; days < 800; days += 5 {
			now := time.Date(2024, time.January, 1+days, 21, 0, 0, 0, loc)
			got, err := calc.CurrentCycle(start, duration, "Asia/Singapore", now)
			require.NoError(t, err)
			assert.Equal(t, days/duration+1, got, "duration=%d days=%d", duration, days)
			assert.GreaterOrEqual(t, got, 1)
		}
	}
}

func TestCurrentCycleBeforeStartIsOne(t *testing.T) {
	calc := NewCalculator(19)
	start := time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC)

	got, err := calc.CurrentCycle(start, 7, "UTC", start.Add(-40*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = calc.CurrentCycle(start, 7, "UTC", start.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

// TestCurrentCycleCountsCalendarDaysAcrossDST spans the US spring-forward night, which is an hour
// short. A 24h-multiple count would still report day zero.
func TestCurrentCycleCountsCalendarDaysAcrossDST(t *testing.T) {
	calc := NewCalculator(19)
	loc := mustLoad(t, "America/New_York")
	start := time.Date(2024, time.March, 9, 19, 0, 0, 0, loc)
	now := time.Date(2024, time.March, 10, 18, 30, 0, 0, loc) // 22h30m elapsed
	require.Less(t, now.Sub(start), 24*time.Hour)

	got, err := calc.CurrentCycle(start, 1, "America/New_York", now)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestCurrentCycleUsesRegionZoneForDates(t *testing.T) {
	calc := NewCalculator(19)
	start := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC) // 18:00 in Singapore
	now := time.Date(2024, time.June, 1, 17, 0, 0, 0, time.UTC)   // 01:00 next day in Singapore

	sg, err := calc.CurrentCycle(start, 1, "Asia/Singapore", now)
	require.NoError(t, err)
	assert.Equal(t, 2, sg)

	utc, err := calc.CurrentCycle(start, 1, "UTC", now)
	require.NoError(t, err)
	assert.Equal(t, 1, utc)
}

func TestNextTransitionIsStrictlyAfterNowAtFixedHour(t *testing.T) {
	calc := NewCalculator(19)
	zones := []string{"Asia/Singapore", "America/New_York", "Europe/Berlin", "UTC"}

	for _, tz := range zones {
		loc := mustLoad(t, tz)
		start := time.Date(2024, time.February, 27, 19, 0, 0, 0, loc)
		for _, duration := range []int{1, 7, 30} {
			for hours := 0; hours < 24*120; hours += 7 {
				now := start.Add(time.Duration(hours) * time.Hour)
				current, err := calc.CurrentCycle(start, duration, tz, now)
				require.NoError(t, err)

				next, err := calc.NextTransition(start, current, duration, tz)
				require.NoError(t, err)
				assert.True(t, next.After(now), "tz=%s duration=%d now=%s next=%s", tz, duration, now, next)

				local := next.In(loc)
				assert.Equal(t, 19, local.Hour())
				assert.Equal(t, 0, local.Minute())
				assert.Equal(t, 0, local.Second())
			}
		}
	}
}

func TestNextTransitionAddsCalendarDays(t *testing.T) {
	calc := NewCalculator(19)
	loc := mustLoad(t, "Europe/Berlin")
	start := time.Date(2024, time.March, 25, 8, 15, 0, 0, loc)

	next, err := calc.NextTransition(start, 1, 7, "Europe/Berlin")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, time.April, 1, 19, 0, 0, 0, loc).Equal(next), "got %s", next)

	next, err = calc.NextTransition(start, 3, 7, "Europe/Berlin")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, time.April, 15, 19, 0, 0, 0, loc).Equal(next), "got %s", next)
}

func TestNextTransitionHonoursConfiguredHour(t *testing.T) {
	calc := NewCalculator(6)
	start := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

	next, err := calc.NextTransition(start, 1, 1, "UTC")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC).Equal(next), "got %s", next)
}

func TestInvalidConfiguration(t *testing.T) {
	calc := NewCalculator(19)
	start := time.Date(2024, time.January, 1, 19, 0, 0, 0, time.UTC)
	now := start.Add(48 * time.Hour)

	tests := []struct {
		name     string
		start    time.Time
		duration int
		tz       string
	}{
		{"zero duration", start, 0, "UTC"},
		{"negative duration", start, -3, "UTC"},
		{"unknown timezone", start, 7, "Mars/Olympus_Mons"},
		{"empty timezone", start, 7, ""},
		{"missing start date", time.Time{}, 7, "UTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.CurrentCycle(tt.start, tt.duration, tt.tz, now)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))

			_, err = calc.NextTransition(tt.start, 1, tt.duration, tt.tz)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		})
	}
}

func TestDefaultStartDate(t *testing.T) {
	calc := NewCalculator(19)
	loc := mustLoad(t, "Asia/Singapore")
	now := time.Date(2024, time.May, 5, 23, 30, 0, 0, time.UTC) // May 6 07:30 in Singapore

	got, err := calc.DefaultStartDate("Asia/Singapore", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, time.May, 6, 19, 0, 0, 0, loc).Equal(got), "got %s", got)
}

func TestNewCalculatorClampsHour(t *testing.T) {
	assert.Equal(t, DefaultTransitionHour, NewCalculator(24).TransitionHour)
	assert.Equal(t, DefaultTransitionHour, NewCalculator(-1).TransitionHour)
	assert.Equal(t, 0, NewCalculator(0).TransitionHour)
}
