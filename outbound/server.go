// Package outbound implements Event Socket *outbound* mode: FreeSWITCH
// dials into a listener this package runs, rather than the client
// dialing out to FreeSWITCH (the inbound direction the client package
// implements). Framing is identical; only who initiates the TCP
// connection differs.
package outbound

import (
	"net"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/eventsocket/protocol"
)

// Handler is invoked for every packet a session receives that isn't
// the reply to a synchronous command issued through that session
// (i.e. every channel event FreeSWITCH pushes unsolicited).
type Handler func(*Session, *protocol.Packet)

// Options configures a Server.
type Options struct {
	Host string
	Port int

	// Reuseport sets SO_REUSEPORT on the listening socket, letting
	// multiple processes (or multiple listeners in this one) share the
	// port.
	Reuseport bool

	Handler Handler
	Log     *zap.Logger
}

// Server accepts outbound Event Socket connections and runs one
// Session per accepted connection.
type Server struct {
	ln      net.Listener
	handler Handler
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}

	stopCh chan struct{}
	waiter sync.WaitGroup
}

// Listen starts accepting connections in a background goroutine and
// returns immediately.
func Listen(opts Options) (*Server, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	var (
		ln  net.Listener
		err error
	)
	if opts.Reuseport {
		ln, err = reuseport.Listen("tcp", addr)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		ln:       ln,
		handler:  opts.Handler,
		log:      log.Named("outbound"),
		sessions: make(map[*Session]struct{}),
		stopCh:   make(chan struct{}),
	}

	s.waiter.Add(1)
	go s.acceptLoop()

	return s, nil
}

// Addr returns the listener's bound address, useful when Port was 0.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.waiter.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
				s.log.Warn("accept failed", zap.Error(err))
				return
			}
		}

		sess := newSession(conn, s.log.Named("session"), s.handler)
		s.addSession(sess)

		s.waiter.Add(1)
		go func() {
			defer s.waiter.Done()
			defer s.removeSession(sess)
			sess.run()
		}()
	}
}

func (s *Server) addSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess] = struct{}{}
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

// Sessions returns a snapshot of the currently active sessions.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Close stops accepting new connections and closes every active
// session, aggregating whatever errors that produces rather than
// stopping at the first one.
func (s *Server) Close() (err error) {
	close(s.stopCh)

	if cerr := s.ln.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}

	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		if cerr := sess.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}

	s.waiter.Wait()
	return err
}
