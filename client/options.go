package client

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// maxRetries is MAX_RETRIES from the connection engine's reconnect
	// contract: after this many consecutive failed connect attempts the
	// engine stops with ErrMaxRetryExceeded rather than retrying again.
	maxRetries = 10

	// retryInterval gates how long the engine waits between reconnect
	// attempts.
	retryInterval = 1 * time.Second

	// subscriberBufferSize bounds how many undelivered events a single
	// subscriber can accumulate before new events are dropped for it.
	// Event delivery is best-effort; a bounded drop-oldest queue per
	// subscriber is a plausible future upgrade, not implemented here.
	subscriberBufferSize = 64

	readBufferSize = 1024 << 4
)

// Config configures a single Event Socket connection.
type Config struct {
	// Name identifies this connection in logs; purely cosmetic.
	Name string

	Host     string
	Port     int
	Password string

	// Ready, if set, receives an empty value each time authentication
	// completes successfully, including after a reconnect. The send is
	// non-blocking and is skipped when the channel cannot take it, so it
	// should be buffered (or otherwise read promptly).
	Ready chan<- struct{}

	Log *zap.Logger
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
