package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidScope indicates an unknown session scope.
	ErrInvalidScope = errors.New("invalid scope")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLastSession indicates a close would remove the last session in its scope.
	ErrLastSession = errors.New("cannot close the last session in this scope")
	// ErrInvalidLayout indicates an unknown layout mode.
	ErrInvalidLayout = errors.New("invalid layout mode")
	// ErrEmptyMessage indicates the turn message was empty.
	ErrEmptyMessage = errors.New("empty message")
	// ErrTurnBusy indicates a turn is already in flight on this controller.
	ErrTurnBusy = errors.New("turn already in flight")
	// ErrNeedsAuth indicates the turn endpoint rejected the request before
	// streaming started and the agent runtime needs (re)authentication.
	ErrNeedsAuth = errors.New("agent runtime needs authentication")
)
