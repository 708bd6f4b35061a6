package client_test

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/eventsocket/client"
	"github.com/luma/eventsocket/protocol"
)

func newConfig(fs *fakeServer, password string) client.Config {
	host, port := fs.hostPort()
	return client.Config{
		Name:     "test",
		Host:     host,
		Port:     port,
		Password: password,
	}
}

var _ = Describe("Conn", func() {
	Describe("authentication", func() {
		It("reaches the connected phase and notifies Ready on success", func() {
			fs := startFakeServer("secret", nil)
			defer fs.Close()

			cfg := newConfig(fs, "secret")
			ready := make(chan struct{}, 1)
			cfg.Ready = ready

			c, err := client.Start(cfg)
			Expect(err).To(Succeed())
			defer c.Stop()

			Eventually(ready, time.Second).Should(Receive())

			stats, err := c.Stats()
			Expect(err).To(Succeed())
			Expect(stats.Phase).To(Equal("connected"))
		})

		It("stops fatally without retrying when the password is rejected", func() {
			fs := startFakeServer("secret", nil)
			defer fs.Close()

			cfg := newConfig(fs, "wrong")
			c, errCh := client.StartLink(cfg)
			defer c.Stop()

			Eventually(c.Done(), time.Second).Should(BeClosed())
			Expect(<-errCh).To(Equal(client.ErrAuthFailed))
		})
	})

	Describe("Api", func() {
		It("returns the correlated api/response", func() {
			fs := startFakeServer("secret", func(r *bufio.Reader, conn net.Conn) {
				cmd, err := readCommandBlock(r)
				if err != nil {
					return
				}
				Expect(cmd).To(Equal("api status "))
				conn.Write([]byte("content-type: api/response\ncontent-length: 3\n\n+OK"))
			})
			defer fs.Close()

			c, err := client.Start(newConfig(fs, "secret"))
			Expect(err).To(Succeed())
			defer c.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			waitConnected(c)

			pkt, err := c.Api(ctx, "status", "")
			Expect(err).To(Succeed())
			Expect(pkt.Type).To(Equal(protocol.TypeAPIResponse))
			Expect(pkt.Success).To(BeTrue())
			Expect(string(pkt.Body)).To(Equal("+OK"))
		})
	})

	Describe("Bgapi", func() {
		It("correlates the asynchronous result by Job-UUID", func() {
			fs := startFakeServer("secret", func(r *bufio.Reader, conn net.Conn) {
				cmd, err := readCommandBlock(r)
				if err != nil {
					return
				}

				jobID := cmd[len("bgapi originate foo\nJob-UUID: "):]

				body := "Job-UUID: " + jobID + "\n\n+OK all-good\n"
				conn.Write([]byte("content-type: text/event-plain\ncontent-length: " +
					strconv.Itoa(len(body)) + "\n\n" + body))
			})
			defer fs.Close()

			c, err := client.Start(newConfig(fs, "secret"))
			Expect(err).To(Succeed())
			defer c.Stop()

			waitConnected(c)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			jobID, result, err := c.Bgapi(ctx, "originate", "foo")
			Expect(err).To(Succeed())
			Expect(jobID).NotTo(BeEmpty())

			var pkt *protocol.Packet
			Eventually(result, time.Second).Should(Receive(&pkt))
			Expect(pkt.JobID).To(Equal(jobID))
		})
	})

	Describe("StartListening", func() {
		It("delivers matching generic events and stops on context cancellation", func() {
			fs := startFakeServer("secret", func(r *bufio.Reader, conn net.Conn) {
				body := "Event-Name: HEARTBEAT\n\n"
				conn.Write([]byte("content-type: text/event-plain\ncontent-length: " +
					strconv.Itoa(len(body)) + "\n\n" + body))
				// keep the connection open so the subscriber has time to
				// receive before the test tears down.
				time.Sleep(200 * time.Millisecond)
			})
			defer fs.Close()

			c, err := client.Start(newConfig(fs, "secret"))
			Expect(err).To(Succeed())
			defer c.Stop()

			waitConnected(c)

			ctx, cancel := context.WithCancel(context.Background())

			sub, err := c.StartListening(ctx, func(p *protocol.Packet) bool {
				return p.Field("Event-Name") == "HEARTBEAT"
			})
			Expect(err).To(Succeed())

			var pkt *protocol.Packet
			Eventually(sub.Events(), time.Second).Should(Receive(&pkt))
			Expect(pkt.Field("Event-Name")).To(Equal("HEARTBEAT"))

			cancel()
			Eventually(sub.Events(), time.Second).Should(BeClosed())
		})
	})

	Describe("reconnect", func() {
		It("gives up after the configured number of failed attempts", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).To(Succeed())
			addr := ln.Addr().(*net.TCPAddr)
			Expect(ln.Close()).To(Succeed())

			cfg := client.Config{Host: addr.IP.String(), Port: addr.Port, Password: "x"}
			c, errCh := client.StartLink(cfg)
			defer c.Stop()

			Eventually(c.Done(), 15*time.Second).Should(BeClosed())
			Expect(<-errCh).To(Equal(client.ErrMaxRetryExceeded))
		})
	})
})

func waitConnected(c *client.Conn) {
	Eventually(func() string {
		stats, err := c.Stats()
		if err != nil {
			return ""
		}
		return stats.Phase
	}, time.Second).Should(Equal("connected"))
}
