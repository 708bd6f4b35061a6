package client

import "errors"

var (
	// ErrStopped is returned to any caller whose request could not be
	// serviced because the connection's actor has already terminated.
	ErrStopped = errors.New("eventsocket: connection stopped")

	// ErrNotConnected is returned when a command is issued while the
	// engine is between connect attempts.
	ErrNotConnected = errors.New("eventsocket: not connected")

	// ErrAuthFailed is the terminal reason when FreeSWITCH rejects the
	// auth password. It is not retried.
	ErrAuthFailed = errors.New("eventsocket: authentication failed")

	// ErrUnexpectedPacket is the terminal reason when anything other
	// than auth/request or command/reply arrives before authentication
	// completes.
	ErrUnexpectedPacket = errors.New("eventsocket: unexpected packet during authentication")

	// ErrMaxRetryExceeded is the terminal reason once failureCount
	// reaches maxRetries without a successful connection.
	ErrMaxRetryExceeded = errors.New("eventsocket: max_retry_exceeded")
)
