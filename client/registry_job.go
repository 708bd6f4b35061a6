package client

import "github.com/luma/eventsocket/protocol"

// jobRegistry maps a bgapi Job-UUID to the channel its originator is
// waiting on for a result. It is touched only from the connection's
// actor goroutine, so it carries no lock of its own.
type jobRegistry struct {
	byID map[string]chan *protocol.Packet
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{byID: make(map[string]chan *protocol.Packet)}
}

func (r *jobRegistry) register(jobID string, result chan *protocol.Packet) {
	r.byID[jobID] = result
}

// resolve returns and removes the channel waiting on jobID, or nil if
// jobID is unknown, either because it was never ours or because it was
// already resolved. Entries are kept across a reconnect.
func (r *jobRegistry) resolve(jobID string) chan *protocol.Packet {
	result, ok := r.byID[jobID]
	if !ok {
		return nil
	}
	delete(r.byID, jobID)
	return result
}

// drain closes every outstanding job channel without a value and
// empties the registry. Called once, when the engine stops for good.
func (r *jobRegistry) drain() {
	for id, ch := range r.byID {
		close(ch)
		delete(r.byID, id)
	}
}

func (r *jobRegistry) len() int {
	return len(r.byID)
}
