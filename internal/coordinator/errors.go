package coordinator

import "errors"

// Sentinel errors returned by the coordinator. Check with errors.Is.
var (
	// ErrNotFound indicates a task or section does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotConnected indicates an operation needs a connected document.
	ErrNotConnected = errors.New("no document connected")

	// ErrConnectFailed indicates the document could not be acquired or read.
	// The coordinator stays disconnected.
	ErrConnectFailed = errors.New("connect failed")

	// ErrInvalidInput indicates a task, note or date failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRolledOver indicates rollover already ran for the date.
	ErrAlreadyRolledOver = errors.New("already rolled over")
)
