// internal/domain/cycle/calculator.go
package cycle

import (
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfiguration is returned for a cycle configuration that can never produce a cycle
// index: a non-positive duration, an unknown timezone or a missing start date.
var ErrInvalidConfiguration = fmt.Errorf("invalid cycle configuration")

// DefaultTransitionHour is the local hour at which cycles roll over (19:00).
const DefaultTransitionHour = 19

// Calculator derives cycle indices and transition instants. It holds no state besides the
// configured transition hour and performs no I/O.
type Calculator struct {
	TransitionHour int // 0..23, local time of the region
}

func NewCalculator(transitionHour int) Calculator {
	if transitionHour < 0 || transitionHour > 23 {
		transitionHour = DefaultTransitionHour
	}
	return Calculator{TransitionHour: transitionHour}
}

// LoadLocation resolves an IANA zone name. Empty names are rejected instead of silently mapping to UTC.
func LoadLocation(timezone string) (*time.Location, error) {
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		return nil, fmt.Errorf("%w: timezone is empty", ErrInvalidConfiguration)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfiguration, timezone)
	}
	return loc, nil
}

// ValidateConfig checks the inputs shared by CurrentCycle and NextTransition.
func (c Calculator) ValidateConfig(cycleDuration int, timezone string, startDate time.Time) (*time.Location, error) {
	if cycleDuration <= 0 {
		return nil, fmt.Errorf("%w: cycle duration must be positive, got %d", ErrInvalidConfiguration, cycleDuration)
	}
	if startDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is missing", ErrInvalidConfiguration)
	}
	return LoadLocation(timezone)
}

// CurrentCycle returns the 1-based cycle index active at now. Days are counted as calendar days in
// the region's zone so DST shifts never move a boundary. Instants before startDate map to cycle 1.
func (c Calculator) CurrentCycle(startDate time.Time, cycleDuration int, timezone string, now time.Time) (int, error) {
	loc, err := c.ValidateConfig(cycleDuration, timezone, startDate)
	if err != nil {
		return 0, err
	}
	if now.Before(startDate) {
		return 1, nil
	}
	days := CalendarDaysBetween(startDate.In(loc), now.In(loc))
	if days < 0 {
		return 1, nil
	}
	return days/cycleDuration + 1, nil
}

// NextTransition returns the instant at which currentCycle ends: startDate plus
// currentCycle*cycleDuration calendar days, pinned to the transition hour in the region's zone.
func (c Calculator) NextTransition(startDate time.Time, currentCycle int, cycleDuration int, timezone string) (time.Time, error) {
	loc, err := c.ValidateConfig(cycleDuration, timezone, startDate)
	if err != nil {
		return time.Time{}, err
	}
	if currentCycle < 1 {
		currentCycle = 1
	}
	local := startDate.In(loc)
	// time.Date normalises day overflow across months and years.
	return time.Date(local.Year(), local.Month(), local.Day()+currentCycle*cycleDuration, c.TransitionHour, 0, 0, 0, loc), nil
}

// DefaultStartDate is today at the transition hour in the given zone.
func (c Calculator) DefaultStartDate(timezone string, now time.Time) (time.Time, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.TransitionHour, 0, 0, 0, loc), nil
}

// CalendarDaysBetween counts date changes from a to b using each value's own wall-clock date.
// Both values should already be in the same location.
func CalendarDaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}
