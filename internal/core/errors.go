package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodePersistFailed   = "persist_failed"
	ErrCodeBroadcastFailed = "broadcast_failed"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeNotJoined       = "not_joined"
)

var (
	ErrInvalidRoom      = errors.New("invalid room")
	ErrNotJoined        = errors.New("session not joined")
	ErrSessionClosed    = errors.New("session closed")
	ErrAlreadyConnected = errors.New("session already connected")
)

// CoreError wraps a code and human-readable message. Err, when set, is the
// underlying cause and is never sent to clients.
type CoreError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
