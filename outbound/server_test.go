package outbound_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/eventsocket/outbound"
	"github.com/luma/eventsocket/protocol"
)

func readBlock(r *bufio.Reader) (string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

var _ = Describe("Server", func() {
	It("sends connect on accept and hands the channel-data reply to the handler", func() {
		received := make(chan *protocol.Packet, 4)

		srv, err := outbound.Listen(outbound.Options{
			Host: "127.0.0.1",
			Port: 0,
			Handler: func(_ *outbound.Session, pkt *protocol.Packet) {
				received <- pkt
			},
		})
		Expect(err).To(Succeed())
		defer srv.Close()

		addr := srv.Addr().(*net.TCPAddr)
		conn, err := net.Dial("tcp", addr.String())
		Expect(err).To(Succeed())
		defer conn.Close()

		r := bufio.NewReader(conn)
		cmd, err := readBlock(r)
		Expect(err).To(Succeed())
		Expect(cmd).To(Equal("connect"))

		conn.Write([]byte("content-type: command/reply\nchannel-call-uuid: abc-123\nreply-text: +OK\n\n"))

		var pkt *protocol.Packet
		Eventually(received, time.Second).Should(Receive(&pkt))
		Expect(pkt.Header("channel-call-uuid")).To(Equal("abc-123"))

		body := "Event-Name: CHANNEL_HANGUP\n\n"
		conn.Write([]byte("content-type: text/event-plain\ncontent-length: " +
			strconv.Itoa(len(body)) + "\n\n" + body))

		Eventually(received, time.Second).Should(Receive(&pkt))
		Expect(pkt.Field("Event-Name")).To(Equal("CHANNEL_HANGUP"))
	})

	It("correlates Session.Api with the next api/response", func() {
		srv, err := outbound.Listen(outbound.Options{Host: "127.0.0.1", Port: 0})
		Expect(err).To(Succeed())
		defer srv.Close()

		addr := srv.Addr().(*net.TCPAddr)
		conn, err := net.Dial("tcp", addr.String())
		Expect(err).To(Succeed())
		defer conn.Close()

		r := bufio.NewReader(conn)
		_, err = readBlock(r) // the initial "connect"
		Expect(err).To(Succeed())
		conn.Write([]byte("content-type: command/reply\nreply-text: +OK\n\n"))

		var sess *outbound.Session
		Eventually(func() int { return len(srv.Sessions()) }, time.Second).Should(Equal(1))
		sess = srv.Sessions()[0]

		go func() {
			cmd, err := readBlock(r)
			if err != nil {
				return
			}
			Expect(cmd).To(Equal("api status "))
			conn.Write([]byte("content-type: api/response\ncontent-length: 3\n\n+OK"))
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		pkt, err := sess.Api(ctx, "status", "")
		Expect(err).To(Succeed())
		Expect(string(pkt.Body)).To(Equal("+OK"))
	})
})
