// Package client implements the connection engine: a single actor
// goroutine that owns one Event Socket connection, its synchronous
// command queue, its bgapi job registry and its event subscriber
// registry, and that reconnects on transport failure with a bounded
// number of attempts.
package client

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luma/eventsocket/protocol"
)

type phase int

const (
	phaseConnecting phase = iota
	phaseConnected
	phaseReconnecting
	phaseStopped
)

func (p phase) String() string {
	switch p {
	case phaseConnecting:
		return "connecting"
	case phaseConnected:
		return "connected"
	case phaseReconnecting:
		return "reconnecting"
	case phaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type syncResult struct {
	packet *protocol.Packet
	err    error
}

type syncRequest struct {
	render func(io.Writer) error
	reply  chan syncResult
}

type bgapiRequest struct {
	cmd, args string
	jobID     string
	resultCh  chan *protocol.Packet
	ack       chan error
}

type listenRequest struct {
	id   subscriberID
	sub  *subscriber
	done chan struct{}
}

type unlistenRequest struct {
	id   subscriberID
	done chan struct{}
}

// Stats is a point-in-time snapshot of a connection's internal state,
// used by the HTTP introspection endpoints.
type Stats struct {
	Phase           string
	FailureCount    int
	InFlight        bool
	PendingCommands int
	Jobs            int
	Subscribers     int
}

// Conn is a handle to a running connection engine. Its methods are
// safe to call concurrently; every call is serviced by the single
// actor goroutine started by Start or StartLink.
type Conn struct {
	cfg Config
	log *zap.Logger

	syncReqs     chan *syncRequest
	cancelReqs   chan *syncRequest
	bgapiReqs    chan *bgapiRequest
	listenReqs   chan *listenRequest
	unlistenReqs chan *unlistenRequest
	statsReqs    chan chan Stats

	nextSubscriberID uint64

	stopCh   chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	err      error
}

// Start begins the connection engine's state machine in a new
// goroutine and returns a handle immediately; it does not wait for the
// first connect attempt to succeed. Watch cfg.Ready, or poll Stats, to
// learn when authentication completes.
func Start(cfg Config) (*Conn, error) {
	c, _ := StartLink(cfg)
	return c, nil
}

// StartLink is like Start but also returns a channel that receives the
// engine's terminal error exactly once, when it stops for good
// (ErrAuthFailed, ErrMaxRetryExceeded, or nil after an explicit Stop).
func StartLink(cfg Config) (*Conn, <-chan error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	c := &Conn{
		cfg:          cfg,
		log:          cfg.Log.Named("eventsocket").With(zap.String("conn", cfg.Name)),
		syncReqs:     make(chan *syncRequest),
		cancelReqs:   make(chan *syncRequest),
		bgapiReqs:    make(chan *bgapiRequest),
		listenReqs:   make(chan *listenRequest),
		unlistenReqs: make(chan *unlistenRequest),
		statsReqs:    make(chan chan Stats),
		stopCh:       make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	go c.run()

	errCh := make(chan error, 1)
	go func() {
		<-c.stopped
		errCh <- c.err
	}()

	return c, errCh
}

// Stop requests the engine shut down and blocks until it has. It is
// safe to call more than once.
func (c *Conn) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.stopped
}

// Done returns a channel that is closed once the engine has stopped,
// whether by request or because a terminal error occurred.
func (c *Conn) Done() <-chan struct{} {
	return c.stopped
}

// Err returns the engine's terminal error. It is only meaningful after
// Done is closed.
func (c *Conn) Err() error {
	return c.err
}

// Stats reports a snapshot of the engine's internal state.
func (c *Conn) Stats() (Stats, error) {
	req := make(chan Stats, 1)
	select {
	case c.statsReqs <- req:
	case <-c.stopped:
		return Stats{}, ErrStopped
	}
	select {
	case s := <-req:
		return s, nil
	case <-c.stopped:
		return Stats{}, ErrStopped
	}
}

// Api issues a synchronous API command and waits for its single
// api/response packet.
func (c *Conn) Api(ctx context.Context, cmd, args string) (*protocol.Packet, error) {
	return c.sendSync(ctx, func(w io.Writer) error {
		return protocol.WriteCommand(w, "api", cmd+" "+args)
	})
}

// Bgapi issues a background API command, returning the job id
// immediately and a channel that will receive its single result
// packet whenever it arrives. The channel is closed after delivering
// the result, or without a value if the engine stops first.
func (c *Conn) Bgapi(ctx context.Context, cmd, args string) (string, <-chan *protocol.Packet, error) {
	jobID := uuid.NewString()

	req := &bgapiRequest{
		cmd:      cmd,
		args:     args,
		jobID:    jobID,
		resultCh: make(chan *protocol.Packet, 1),
		ack:      make(chan error, 1),
	}

	select {
	case c.bgapiReqs <- req:
	case <-c.stopped:
		return jobID, nil, ErrStopped
	case <-ctx.Done():
		return jobID, nil, ctx.Err()
	}

	select {
	case err := <-req.ack:
		if err != nil {
			return jobID, nil, err
		}
		return jobID, req.resultCh, nil
	case <-c.stopped:
		return jobID, nil, ErrStopped
	case <-ctx.Done():
		return jobID, nil, ctx.Err()
	}
}

// sendSync enqueues a rendered command and waits for the single reply
// correlated to it by FIFO order. Cancelling ctx before the reply
// arrives removes the request from the queue if it hasn't been
// written yet; if it has, the bytes are already on the wire and the
// eventual reply is simply discarded.
func (c *Conn) sendSync(ctx context.Context, render func(io.Writer) error) (*protocol.Packet, error) {
	req := &syncRequest{render: render, reply: make(chan syncResult, 1)}

	select {
	case c.syncReqs <- req:
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.packet, res.err
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		select {
		case c.cancelReqs <- req:
		case <-c.stopped:
		}
		return nil, ctx.Err()
	}
}

func (c *Conn) notifyReady() {
	if c.cfg.Ready == nil {
		return
	}
	select {
	case c.cfg.Ready <- struct{}{}:
	default:
	}
}

// run is the engine's single actor loop. It owns the socket and every
// registry exclusively, so none of them need locks.
func (c *Conn) run() {
	defer close(c.stopped)

	var (
		ph           = phaseConnecting
		failureCount = 0

		sock       net.Conn
		sockCancel context.CancelFunc
		incoming   chan *protocol.Packet
		sockErrs   chan error

		pending  []*syncRequest
		inFlight *syncRequest

		jobs = newJobRegistry()
		subs = newSubscriberRegistry()

		retryTimer *time.Timer
		retryC     <-chan time.Time
	)

	abandonSocket := func() {
		if sockCancel != nil {
			sockCancel()
			sockCancel = nil
		}
		if sock != nil {
			sock.Close()
			sock = nil
		}
		incoming = nil
		sockErrs = nil
	}

	failPending := func(err error) {
		if inFlight != nil {
			inFlight.reply <- syncResult{err: err}
			inFlight = nil
		}
		for _, req := range pending {
			req.reply <- syncResult{err: err}
		}
		pending = nil
	}

	terminate := func(reason error) {
		c.err = reason
		abandonSocket()
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer, retryC = nil, nil
		}
		failPending(ErrStopped)
		jobs.drain()
		subs.drain()
		ph = phaseStopped
	}

	scheduleRetry := func() {
		failureCount++
		if failureCount >= maxRetries {
			terminate(ErrMaxRetryExceeded)
			return
		}
		ph = phaseReconnecting
		retryTimer = time.NewTimer(retryInterval)
		retryC = retryTimer.C
	}

	dial := func() {
		conn, err := net.Dial("tcp", c.cfg.addr())
		if err != nil {
			c.log.Warn("connect failed", zap.Error(err), zap.Int("failure_count", failureCount+1))
			scheduleRetry()
			return
		}

		sock = conn
		ctx, cancel := context.WithCancel(context.Background())
		sockCancel = cancel
		incoming = make(chan *protocol.Packet)
		sockErrs = make(chan error, 1)
		go readLoop(conn, incoming, sockErrs, ctx.Done())

		ph = phaseConnecting
		retryTimer, retryC = nil, nil
	}

	dial()

	for ph != phaseStopped {
		select {
		case <-c.stopCh:
			terminate(nil)

		case <-retryC:
			retryC = nil
			dial()

		case pkt, ok := <-incoming:
			if !ok {
				continue
			}
			switch ph {
			case phaseConnecting:
				authenticated, fatal := handleConnecting(pkt, sock, c.cfg.Password)
				if fatal != nil {
					terminate(fatal)
					continue
				}
				if authenticated {
					ph = phaseConnected
					failureCount = 0
					c.notifyReady()
				}
			case phaseConnected:
				dispatchConnected(pkt, &inFlight, &pending, jobs, subs, sock)
			}

		case err, ok := <-sockErrs:
			if !ok {
				continue
			}
			c.log.Warn("connection lost", zap.Error(err))
			abandonSocket()
			failPending(ErrNotConnected)
			dial()

		case req := <-c.syncReqs:
			if ph != phaseConnected {
				req.reply <- syncResult{err: ErrNotConnected}
				continue
			}
			if inFlight == nil {
				if err := req.render(sock); err != nil {
					req.reply <- syncResult{err: err}
					continue
				}
				inFlight = req
			} else {
				pending = append(pending, req)
			}

		case req := <-c.cancelReqs:
			for i, p := range pending {
				if p == req {
					pending = append(pending[:i], pending[i+1:]...)
					break
				}
			}

		case req := <-c.bgapiReqs:
			if ph != phaseConnected {
				req.ack <- ErrNotConnected
				continue
			}
			jobs.register(req.jobID, req.resultCh)
			if err := protocol.WriteBgapi(sock, req.cmd, req.args, req.jobID); err != nil {
				jobs.resolve(req.jobID)
				req.ack <- err
				continue
			}
			req.ack <- nil

		case req := <-c.listenReqs:
			subs.start(req.id, req.sub)
			close(req.done)

		case req := <-c.unlistenReqs:
			subs.stop(req.id)
			close(req.done)

		case req := <-c.statsReqs:
			req <- Stats{
				Phase:           ph.String(),
				FailureCount:    failureCount,
				InFlight:        inFlight != nil,
				PendingCommands: len(pending),
				Jobs:            jobs.len(),
				Subscribers:     subs.len(),
			}
		}
	}
}

// handleConnecting drives the auth handshake. On success it reports
// authenticated=true; a rejected login or any unexpected packet is
// fatal and not retried.
func handleConnecting(pkt *protocol.Packet, sock io.Writer, password string) (authenticated bool, fatal error) {
	switch pkt.Type {
	case protocol.TypeAuthRequest:
		if err := protocol.WriteCommand(sock, "auth", password); err != nil {
			return false, err
		}
		return false, nil
	case protocol.TypeCommandReply:
		if pkt.Success {
			return true, nil
		}
		return false, ErrAuthFailed
	default:
		return false, ErrUnexpectedPacket
	}
}

// dispatchConnected applies the steady-state dispatch rules: a
// reply with no Job-UUID resolves the in-flight synchronous command;
// a packet carrying a known Job-UUID resolves a bgapi job; anything
// else is a generic event, fanned out to matching subscribers.
func dispatchConnected(pkt *protocol.Packet, inFlight **syncRequest, pending *[]*syncRequest, jobs *jobRegistry, subs *subscriberRegistry, sock io.Writer) {
	isSyncReply := (pkt.Type == protocol.TypeCommandReply || pkt.Type == protocol.TypeAPIResponse) && pkt.JobID == ""

	switch {
	case isSyncReply:
		if *inFlight == nil {
			return
		}
		(*inFlight).reply <- syncResult{packet: pkt}
		*inFlight = nil
		if len(*pending) > 0 {
			next := (*pending)[0]
			*pending = (*pending)[1:]
			if err := next.render(sock); err != nil {
				next.reply <- syncResult{err: err}
			} else {
				*inFlight = next
			}
		}

	case pkt.JobID != "":
		if result := jobs.resolve(pkt.JobID); result != nil {
			result <- pkt
			close(result)
		}

	default:
		subs.deliver(pkt)
	}
}
