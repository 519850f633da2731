package refapi

import "errors"

var (
	// ErrVersionMismatch is returned by negotiation when the requested version is not Version.
	ErrVersionMismatch = errors.New("ref: api version mismatch")

	// ErrNotInitialized is returned when an operation needs a successful Init first.
	ErrNotInitialized = errors.New("ref: renderer not initialized")

	// ErrInitFailed is returned by operations attempted after a failed Init.
	ErrInitFailed = errors.New("ref: renderer failed to initialize")

	// ErrShutdown rejects calls made after Shutdown (other than a new Init).
	ErrShutdown = errors.New("ref: renderer is shut down")

	// ErrProtocolViolation marks an operation called outside its legal state.
	ErrProtocolViolation = errors.New("ref: protocol violation")
)
