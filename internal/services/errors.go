package services

import "errors"

// The text of each error is the code returned to clients.
var (
	ErrInvalidState        = errors.New("INVALID_STATE")
	ErrInvalidConfig       = errors.New("INVALID_CONFIG")
	ErrInvalidChoice       = errors.New("INVALID_CHOICE")
	ErrInvalidPID          = errors.New("INVALID_PID")
	ErrInvalidDeckSize     = errors.New("INVALID_DECK_SIZE")
	ErrActivityNotOpen     = errors.New("ACTIVITY_NOT_OPEN")
	ErrAlreadyParticipated = errors.New("ALREADY_PARTICIPATED")
	ErrNotFound            = errors.New("NOT_FOUND")
	ErrNoPID               = errors.New("NO_PID")
	ErrRoundNotFound       = errors.New("ROUND_NOT_FOUND")
	ErrConcurrentUpdate    = errors.New("CONCURRENT_UPDATE")
	ErrAdminRequired       = errors.New("ADMIN_REQUIRED")
	ErrSessionExpired      = errors.New("SESSION_EXPIRED")
	ErrInvalidPassword     = errors.New("INVALID_PASSWORD")
)

// AlreadyParticipatedError carries the outcome of the draw that already happened.
type AlreadyParticipatedError struct {
	PID int
	Win bool
}

func (e *AlreadyParticipatedError) Error() string { return ErrAlreadyParticipated.Error() }

func (e *AlreadyParticipatedError) Unwrap() error { return ErrAlreadyParticipated }
