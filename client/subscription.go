package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/luma/eventsocket/protocol"
)

// Subscription is a live registration for generic event packets
// matching a predicate. It is returned by StartListening and stays
// live until Stop is called, its context is cancelled, or the owning
// connection stops.
type Subscription struct {
	id     subscriberID
	conn   *Conn
	events chan *protocol.Packet
	once   sync.Once
}

// Events returns the channel events matching this subscription's
// predicate are delivered on. It is closed when the subscription
// stops, by whichever means.
func (s *Subscription) Events() <-chan *protocol.Packet {
	return s.events
}

// Stop ends the subscription. Safe to call more than once and safe to
// call concurrently with delivery.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		req := &unlistenRequest{id: s.id, done: make(chan struct{})}
		select {
		case s.conn.unlistenReqs <- req:
			<-req.done
		case <-s.conn.stopped:
		}
	})
}

// StartListening registers a predicate against every generic event
// packet the connection receives while connected. A nil predicate
// matches everything. The subscription is automatically stopped when
// ctx is cancelled, modeling an originator that has gone away.
func (c *Conn) StartListening(ctx context.Context, predicate func(*protocol.Packet) bool) (*Subscription, error) {
	if predicate == nil {
		predicate = func(*protocol.Packet) bool { return true }
	}

	id := subscriberID(atomic.AddUint64(&c.nextSubscriberID, 1))
	deliver := make(chan *protocol.Packet, subscriberBufferSize)

	req := &listenRequest{
		id:   id,
		sub:  &subscriber{predicate: predicate, deliver: deliver},
		done: make(chan struct{}),
	}

	select {
	case c.listenReqs <- req:
	case <-c.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case <-req.done:
	case <-c.stopped:
		return nil, ErrStopped
	}

	sub := &Subscription{id: id, conn: c, events: deliver}

	go func() {
		select {
		case <-ctx.Done():
			sub.Stop()
		case <-c.stopped:
		}
	}()

	return sub, nil
}
