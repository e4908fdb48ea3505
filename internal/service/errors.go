package service

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrPlayerNotFound    = errors.New("player not found in session")
	ErrEncounterNotFound = errors.New("encounter not found")
	ErrUnknownEnemy      = errors.New("unknown enemy")
	ErrInvalidScan       = errors.New("invalid qr code")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrIdentityMismatch  = errors.New("user id does not match token")
	ErrNotInRoom         = errors.New("connection is not bound to this session")

	// ErrProtocolViolation marks events that are logged and dropped without
	// any reply to the sender.
	ErrProtocolViolation = errors.New("protocol violation")
)

// IsProtocolViolation reports whether err should be dropped silently.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
