package protocol_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/eventsocket/protocol"
)

var _ = Describe("encoding", func() {
	Describe("WriteCommand", func() {
		It("writes a simple verb with no args", func() {
			var b bytes.Buffer
			Expect(protocol.WriteCommand(&b, "noevents", "")).To(Succeed())
			Expect(b.String()).To(Equal("noevents\n\n"))
		})

		It("writes a verb with args separated by a single space", func() {
			var b bytes.Buffer
			Expect(protocol.WriteCommand(&b, "api", "status")).To(Succeed())
			Expect(b.String()).To(Equal("api status\n\n"))
		})
	})

	Describe("WriteBgapi", func() {
		It("appends a Job-UUID header after the command line", func() {
			var b bytes.Buffer
			Expect(protocol.WriteBgapi(&b, "originate", "sofia/...", "job-1")).To(Succeed())
			Expect(b.String()).To(Equal("bgapi originate sofia/...\nJob-UUID: job-1\n\n"))
		})
	})

	Describe("WriteSendEvent", func() {
		It("writes headers then a blank line when there is no body", func() {
			var b bytes.Buffer
			Expect(protocol.WriteSendEvent(&b, "CUSTOM", map[string]string{
				"event-subclass": "demo::test",
			}, nil)).To(Succeed())
			Expect(b.String()).To(Equal("sendevent CUSTOM\nevent-subclass: demo::test\n\n"))
		})

		It("injects content-length and appends the body", func() {
			var b bytes.Buffer
			Expect(protocol.WriteSendEvent(&b, "CUSTOM", map[string]string{
				"event-subclass": "demo::test",
			}, []byte("hello"))).To(Succeed())
			Expect(b.String()).To(Equal(
				"sendevent CUSTOM\nevent-subclass: demo::test\ncontent-length: 5\n\nhello"))
		})
	})

	Describe("WriteSendMsg", func() {
		It("includes the uuid on the first line when given", func() {
			var b bytes.Buffer
			Expect(protocol.WriteSendMsg(&b, "abc-123", map[string]string{
				"call-command": "hangup",
			}, nil)).To(Succeed())
			Expect(b.String()).To(Equal("sendmsg abc-123\ncall-command: hangup\n\n"))
		})

		It("omits the uuid line when none is given", func() {
			var b bytes.Buffer
			Expect(protocol.WriteSendMsg(&b, "", map[string]string{
				"call-command": "execute",
			}, nil)).To(Succeed())
			Expect(b.String()).To(Equal("sendmsg\ncall-command: execute\n\n"))
		})

		It("injects content-type: text/plain and content-length when a body is present", func() {
			var b bytes.Buffer
			Expect(protocol.WriteSendMsg(&b, "abc-123", map[string]string{
				"call-command":     "execute",
				"execute-app-name": "playback",
			}, []byte("/tmp/test.wav"))).To(Succeed())

			out := b.String()
			Expect(out).To(ContainSubstring("content-type: text/plain\n"))
			Expect(out).To(ContainSubstring("content-length: 13\n"))
			Expect(out).To(HaveSuffix("/tmp/test.wav"))
		})

		It("skips empty-valued headers", func() {
			var b bytes.Buffer
			Expect(protocol.WriteSendMsg(&b, "abc-123", map[string]string{
				"call-command": "execute",
				"event-lock":   "",
			}, nil)).To(Succeed())
			Expect(b.String()).NotTo(ContainSubstring("event-lock"))
		})
	})
})
