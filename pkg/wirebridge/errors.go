package wirebridge

import "errors"

var (
	// ErrInvalidEvent indicates that an event does not satisfy protocol invariants.
	ErrInvalidEvent = errors.New("wirebridge: invalid event")
	// ErrInvalidCommand indicates that a client command is missing required fields.
	ErrInvalidCommand = errors.New("wirebridge: invalid command")
	// ErrInvalidKey indicates that a cache key string could not be parsed.
	ErrInvalidKey = errors.New("wirebridge: invalid cache key")
	// ErrNotConnected indicates that a command was issued with no active connection.
	ErrNotConnected = errors.New("wirebridge: not connected")
	// ErrConnectionClosed indicates that the transport was shut down deliberately.
	ErrConnectionClosed = errors.New("wirebridge: connection closed")
	// ErrReconnectExhausted indicates that the transport gave up reconnecting.
	ErrReconnectExhausted = errors.New("wirebridge: reconnect attempts exhausted")
)
