package outbound

import (
	"net"

	"github.com/luma/eventsocket/protocol"
)

// readLoop mirrors client.readLoop: decode packets off conn in
// receive order until a read fails, reporting the error on errs. done
// lets the owner abandon the socket without leaking this goroutine.
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

const readBufferSize = 1024 << 4
