package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the engine returns to callers wraps exactly one of
// these so transports can classify it with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateSubmission = errors.New("answer already submitted")
)

var (
	// ErrSessionNotFound is returned when a game session does not exist.
	ErrSessionNotFound = fmt.Errorf("game session %w", ErrNotFound)
	// ErrJoinUnavailable hides whether a code never existed or the game already started.
	ErrJoinUnavailable = fmt.Errorf("game session %w or already started", ErrNotFound)
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrPlayerNotFound is returned for lookups of an unknown player id.
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
	// ErrAnswerRecordNotFound is returned for lookups of an unknown submission id.
	ErrAnswerRecordNotFound = fmt.Errorf("player answer %w", ErrNotFound)

	// ErrGameNotInProgress rejects submissions outside the InProgress state.
	ErrGameNotInProgress = fmt.Errorf("%w: invalid game session or game not in progress", ErrInvalidState)
	// ErrGameCancelled rejects advancing a cancelled game.
	ErrGameCancelled = fmt.Errorf("%w: game session was cancelled", ErrInvalidState)
	// ErrGameFinished rejects cancelling a game that already ended.
	ErrGameFinished = fmt.Errorf("%w: game session already finished", ErrInvalidState)

	// ErrAnswerNotFound indicates a submitted answer id is invalid.
	ErrAnswerNotFound = fmt.Errorf("%w: invalid answer", ErrInvalidInput)
	// ErrQuestionNotFound indicates a submitted question id is not part of the quiz.
	ErrQuestionNotFound = fmt.Errorf("%w: invalid question", ErrInvalidInput)
	// ErrPlayerNotInSession indicates the submitting player does not belong to the session.
	ErrPlayerNotInSession = fmt.Errorf("%w: player is not part of this game session", ErrInvalidInput)
	// ErrNegativeResponseTime rejects response times below zero.
	ErrNegativeResponseTime = fmt.Errorf("%w: response time must not be negative", ErrInvalidInput)
	// ErrPlayerNameRequired rejects blank display names.
	ErrPlayerNameRequired = fmt.Errorf("%w: player name is required", ErrInvalidInput)

	// ErrCodeSpaceExhausted is returned when no free join code was found within the retry budget.
	ErrCodeSpaceExhausted = errors.New("no free join code available")
)
