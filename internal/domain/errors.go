package domain

import "errors"

// Domain errors
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrFloorNotFound    = errors.New("floor not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrSessionNotFound  = errors.New("game session not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrGameFinished     = errors.New("game session already finished")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInternalError    = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrFloorNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsInvalidInputError checks if an error was caused by malformed input
func IsInvalidInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidRequest)
}
