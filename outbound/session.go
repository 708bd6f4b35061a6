package outbound

import (
	"context"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/eventsocket/protocol"
)

type syncResult struct {
	packet *protocol.Packet
	err    error
}

type syncRequest struct {
	render func(io.Writer) error
	reply  chan syncResult
}

// Session is one accepted outbound connection: FreeSWITCH on the
// other end, us driving it with sendmsg/api the same way the client
// package drives an inbound connection. Unlike the client's
// connection engine, a session has no reconnect: when FreeSWITCH
// hangs up, the session ends.
type Session struct {
	conn    net.Conn
	log     *zap.Logger
	handler Handler

	syncReqs chan *syncRequest

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn net.Conn, log *zap.Logger, handler Handler) *Session {
	return &Session{
		conn:     conn,
		log:      log,
		handler:  handler,
		syncReqs: make(chan *syncRequest),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Close ends the session, closing the underlying connection. Safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	<-s.done
	return nil
}

// Done is closed once the session's connection has ended, by either
// side.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) run() {
	defer close(s.done)
	defer s.conn.Close()

	if err := protocol.WriteCommand(s.conn, "connect", ""); err != nil {
		s.log.Warn("failed to send connect", zap.Error(err))
		return
	}

	incoming := make(chan *protocol.Packet)
	errs := make(chan error, 1)
	go readLoop(s.conn, incoming, errs, s.stopCh)

	var (
		inFlight *syncRequest
		pending  []*syncRequest

		// awaitingConnect stays true until the reply to the initial
		// "connect" arrives; that reply answers no sendSync request.
		awaitingConnect = true
	)

	for {
		select {
		case <-s.stopCh:
			return

		case pkt, ok := <-incoming:
			if !ok {
				continue
			}

			if awaitingConnect && pkt.Type == protocol.TypeCommandReply {
				awaitingConnect = false
				if s.handler != nil {
					s.handler(s, pkt)
				}
				continue
			}

			isReply := pkt.Type == protocol.TypeCommandReply || pkt.Type == protocol.TypeAPIResponse
			if isReply && inFlight != nil {
				inFlight.reply <- syncResult{packet: pkt}
				inFlight = nil
				if len(pending) > 0 {
					next := pending[0]
					pending = pending[1:]
					if err := next.render(s.conn); err != nil {
						next.reply <- syncResult{err: err}
					} else {
						inFlight = next
					}
				}
				continue
			}

			if s.handler != nil {
				s.handler(s, pkt)
			}

		case err, ok := <-errs:
			if !ok {
				continue
			}
			s.log.Info("session connection closed", zap.Error(err))
			return

		case req := <-s.syncReqs:
			if inFlight == nil {
				if err := req.render(s.conn); err != nil {
					req.reply <- syncResult{err: err}
					continue
				}
				inFlight = req
			} else {
				pending = append(pending, req)
			}
		}
	}
}

func (s *Session) sendSync(ctx context.Context, render func(io.Writer) error) (*protocol.Packet, error) {
	req := &syncRequest{render: render, reply: make(chan syncResult, 1)}

	select {
	case s.syncReqs <- req:
	case <-s.done:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.reply:
		return res.packet, res.err
	case <-s.done:
		return nil, io.ErrClosedPipe
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Api issues a synchronous API command on this session.
func (s *Session) Api(ctx context.Context, cmd, args string) (*protocol.Packet, error) {
	return s.sendSync(ctx, func(w io.Writer) error {
		return protocol.WriteCommand(w, "api", cmd+" "+args)
	})
}

// SendMsg sends call-control directives to the channel that dialed in
// (uuid is implicit on an outbound socket).
func (s *Session) SendMsg(ctx context.Context, headers map[string]string, body []byte) (*protocol.Packet, error) {
	return s.sendSync(ctx, func(w io.Writer) error {
		return protocol.WriteSendMsg(w, "", headers, body)
	})
}

// Execute runs a dialplan application against the channel that dialed
// into this session.
func (s *Session) Execute(ctx context.Context, appName, appArg string, lock bool) (*protocol.Packet, error) {
	headers := map[string]string{
		"call-command":     "execute",
		"execute-app-name": appName,
		"execute-app-arg":  appArg,
	}
	if lock {
		headers["event-lock"] = "true"
	}
	return s.SendMsg(ctx, headers, nil)
}
