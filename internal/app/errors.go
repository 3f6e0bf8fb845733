package app

import (
	"errors"
	"fmt"

	"question_rotation_bot/internal/domain/cycle"
	"question_rotation_bot/internal/domain/question"
	idb "question_rotation_bot/internal/infra/database"
)

var (
	// ErrInvalidConfiguration rejects a region config before anything is persisted. Never retried.
	ErrInvalidConfiguration = cycle.ErrInvalidConfiguration
	// ErrNotFound covers missing regions, questions and users.
	ErrNotFound = fmt.Errorf("not found")
	// ErrTransientUnavailable means a transition marker outlived the reader's poll budget; retry later.
	ErrTransientUnavailable = fmt.Errorf("region is transitioning, try again shortly")
	// ErrNoQuestionsConfigured means the region has nothing to rotate.
	ErrNoQuestionsConfigured = question.ErrNoQuestionsConfigured
	// ErrSchedulingGap marks a transition that fired but did not re-arm. The region stops
	// advancing until the next config edit, reconciliation pass or restart.
	ErrSchedulingGap = fmt.Errorf("scheduling gap")
	// ErrDuplicate covers unique violations: region name, question sequence, user Telegram ID.
	ErrDuplicate = fmt.Errorf("already exists")
	// ErrAdminNotAuthorized is returned when the performing user is not the configured admin.
	ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
)

// classify maps repository sentinels onto the service taxonomy while keeping the original
// error reachable through errors.Is.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, idb.ErrRegionNotFound),
		errors.Is(err, idb.ErrQuestionNotFound),
		errors.Is(err, idb.ErrUserNotFound),
		errors.Is(err, idb.ErrRegionReferenceMissing):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, idb.ErrDuplicateRegionName),
		errors.Is(err, idb.ErrDuplicateSequence),
		errors.Is(err, idb.ErrDuplicateTelegramID):
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}
	return err
}
