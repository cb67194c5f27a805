package services

import "errors"

// Shared errors used by the services and by HTTP status mapping.
var (
	ErrValidationFailed  = errors.New("validation failed")
	ErrGameNameRequired  = errors.New("game name is required")
	ErrInvalidMaxCards   = errors.New("max cards must be between 1 and 99")
	ErrOwnerRequired     = errors.New("game owner is required")
	ErrInvalidStatus     = errors.New("invalid game status")
	ErrPrizeNameRequired = errors.New("prize name is required")

	// State conflicts.
	ErrInvalidStatusTransition = errors.New("invalid game status transition")
	ErrGameNotRunning          = errors.New("game is not running")
	ErrExtractionsExhausted    = errors.New("all numbers have already been extracted")
	ErrMaxCardsReached         = errors.New("maximum number of cards reached for this player")
	ErrGameClosed              = errors.New("game is closed")

	// Not found.
	ErrGameNotFound  = errors.New("game not found")
	ErrCardNotFound  = errors.New("card not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrPrizeNotFound = errors.New("prize not found")

	// Authentication and authorization.
	ErrAuthInvalidCredentials = errors.New("invalid username or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	ErrUsernameConflict = errors.New("username is already in use")
	ErrEmailConflict    = errors.New("email address is already in use")
)
