package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"question_rotation_bot/internal/app"
	"question_rotation_bot/internal/domain/cycle"
)

const dateLayout = "2006-01-02"

var errUsage = errors.New("invalid command format")

type addRegionArgs struct {
	name          string
	timezone      string
	cycleDuration int // 0 selects the configured default
	startDate     *time.Time
}

// parseAddRegionArgs reads: <name> <timezone> [duration_days] [YYYY-MM-DD].
// The optional start date is pinned to the transition hour in the region's zone.
func parseAddRegionArgs(args []string, calc cycle.Calculator) (addRegionArgs, error) {
	if len(args) < 2 || len(args) > 4 {
		return addRegionArgs{}, errUsage
	}
	out := addRegionArgs{name: args[0], timezone: args[1]}
	if len(args) >= 3 {
		d, err := strconv.Atoi(args[2])
		if err != nil || d <= 0 {
			return addRegionArgs{}, fmt.Errorf("%w: cycle duration must be a positive number of days", app.ErrInvalidConfiguration)
		}
		out.cycleDuration = d
	}
	if len(args) == 4 {
		start, err := parseStartDate(args[3], out.timezone, calc)
		if err != nil {
			return addRegionArgs{}, err
		}
		out.startDate = &start
	}
	return out, nil
}

// parseStartDate turns YYYY-MM-DD into that day's transition instant in timezone.
func parseStartDate(raw, timezone string, calc cycle.Calculator) (time.Time, error) {
	loc, err := cycle.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start date must look like %s", app.ErrInvalidConfiguration, dateLayout)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), calc.TransitionHour, 0, 0, 0, loc), nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid ID", raw)
	}
	return id, nil
}

// restOf joins args[from:] back into free text.
func restOf(args []string, from int) string {
	if from >= len(args) {
		return ""
	}
	return strings.Join(args[from:], " ")
}

// errorReply turns a service error into the text shown to the sender.
func errorReply(err error) string {
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		return "Error: you are not allowed to run this command."
	case errors.Is(err, app.ErrInvalidConfiguration):
		return fmt.Sprintf("Error: %s", err.Error())
	case errors.Is(err, app.ErrNotFound):
		return "Error: not found."
	case errors.Is(err, app.ErrDuplicate):
		return "Error: it already exists."
	case errors.Is(err, app.ErrNoQuestionsConfigured):
		return "No questions are configured for this region yet."
	case errors.Is(err, app.ErrTransientUnavailable):
		return "The question is changing right now. Please try again in a few seconds."
	case errors.Is(err, errUsage):
		return "Invalid command format. Use /help to see the syntax."
	}
	return "Something went wrong. Please try again later."
}
