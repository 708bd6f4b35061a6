package client

import "github.com/luma/eventsocket/protocol"

type subscriberID uint64

type subscriber struct {
	predicate func(*protocol.Packet) bool
	deliver   chan *protocol.Packet
}

// subscriberRegistry fans generic event packets out to every live
// subscriber whose predicate matches. Like jobRegistry, it is touched
// only from the actor goroutine.
type subscriberRegistry struct {
	byID map[subscriberID]*subscriber
}

func newSubscriberRegistry() *subscriberRegistry {
	return &subscriberRegistry{byID: make(map[subscriberID]*subscriber)}
}

func (r *subscriberRegistry) start(id subscriberID, sub *subscriber) {
	r.byID[id] = sub
}

func (r *subscriberRegistry) stop(id subscriberID) {
	sub, ok := r.byID[id]
	if !ok {
		return
	}
	close(sub.deliver)
	delete(r.byID, id)
}

// deliver fans pkt out to every subscriber whose predicate matches.
// Delivery is best-effort: a subscriber whose buffer is full has the
// event dropped for it rather than stalling the engine.
func (r *subscriberRegistry) deliver(pkt *protocol.Packet) {
	for _, sub := range r.byID {
		if !sub.predicate(pkt) {
			continue
		}
		select {
		case sub.deliver <- pkt:
		default:
		}
	}
}

// drain closes every remaining subscriber channel and empties the
// registry. Called once, when the engine stops for good.
func (r *subscriberRegistry) drain() {
	for id := range r.byID {
		r.stop(id)
	}
}

func (r *subscriberRegistry) len() int {
	return len(r.byID)
}
