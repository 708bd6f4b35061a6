package client

import (
	"net"

	"github.com/luma/eventsocket/protocol"
)

// readLoop decodes packets off conn and feeds them to out in receive
// order until conn.Read fails, at which point it reports the error on
// errs and returns. done lets the owner abandon this socket (on
// reconnect or shutdown) without the goroutine leaking on a blocked
// send.
func readLoop(conn net.Conn, out chan<- *protocol.Packet, errs chan<- error, done <-chan struct{}) {
	buf := make([]byte, 0, readBufferSize)
	tmp := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)

			var packets []*protocol.Packet
			buf, packets = protocol.Parse(buf)

			for _, p := range packets {
				select {
				case out <- p:
				case <-done:
					return
				}
			}
		}

		if err != nil {
			select {
			case errs <- err:
			case <-done:
			}
			return
		}
	}
}
