package service

import (
	"alcyxob/workout-planner/internal/repository"
	"errors"
	"fmt"
)

// --- Error Categories ---
// Every error a service returns on purpose wraps exactly one of these, so
// callers (the API layer in particular) can branch with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrIllegalState = errors.New("illegal state")
	ErrNotFound     = errors.New("not found")
)

// --- Error Definitions ---
var (
	ErrPlanNotFound       = fmt.Errorf("%w: plan not found", ErrNotFound)
	ErrSessionNotFound    = fmt.Errorf("%w: session not found", ErrNotFound)
	ErrExerciseNotFound   = fmt.Errorf("%w: exercise not found in session", ErrNotFound)
	ErrScheduleDayMissing = fmt.Errorf("%w: no scheduled session for that day", ErrNotFound)
	ErrNotInPlanWindow    = fmt.Errorf("%w: date is outside the plan", ErrNotFound)

	ErrPlanNotActive          = fmt.Errorf("%w: plan is not active", ErrConflict)
	ErrDuplicateOpenSession   = fmt.Errorf("%w: an open session already exists for that day", ErrConflict)
	ErrInvalidPlanTransition  = fmt.Errorf("%w: plan status transition not allowed", ErrConflict)
	ErrUserAlreadyExists      = fmt.Errorf("%w: user with this email already exists", ErrConflict)
	ErrSessionTerminal        = fmt.Errorf("%w: session is closed", ErrIllegalState)
	ErrExerciseTransition     = fmt.Errorf("%w: exercise status transition not allowed", ErrIllegalState)
	ErrCompleteCancelled      = fmt.Errorf("%w: a cancelled session cannot be completed", ErrIllegalState)
	ErrRestDay                = fmt.Errorf("%w: that day is a rest day", ErrValidation)
	ErrInvalidExerciseOutcome = fmt.Errorf("%w: invalid exercise outcome", ErrValidation)
	ErrInvalidFeedback        = fmt.Errorf("%w: invalid feedback", ErrValidation)
)

// validationError wraps a message in the validation category.
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// translateNotFound maps repository.ErrNotFound to the given service error and
// passes everything else through.
func translateNotFound(err, notFound error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return err
}
