package pipeline

import "errors"

// Sentinel outcomes of pipeline operations. The HTTP layer maps these to
// status codes; nothing below the controllers speaks HTTP.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionInactive   = errors.New("session not active")
	ErrSessionNotStarted = errors.New("session not started")
	ErrSessionEnded      = errors.New("session ended")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptEnded      = errors.New("attempt already ended")
)
