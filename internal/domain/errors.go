package domain

import "errors"

var (
	// ErrNotAuthenticated is returned when no identity snapshot exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionInvalid means the stored token was rejected or the user no longer exists; the session is cleared.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrUnauthorized is returned when a single call's token is rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the requested record does not exist on the server.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz is not part of the loaded catalog.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAlreadyPlayed is returned for replay attempts.
	ErrAlreadyPlayed = errors.New("quiz already played")
	// ErrSubmissionInFlight is returned when the same quiz already has a pending submission.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrConflict is returned when the server refuses a write that conflicts with its state.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates the request was rejected as malformed.
	ErrValidation = errors.New("validation failed")
	// ErrNetworkFailure covers transport errors, timeouts and server-side failures.
	ErrNetworkFailure = errors.New("network failure")
)
