package protocol_test

import (
	"math/rand"
	"strconv"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/eventsocket/protocol"
)

var _ = Describe("round trip", func() {
	It("encoding then parsing a synthesized packet sequence reproduces it", func() {
		for attempt := 0; attempt < 30; attempt++ {
			packets := synthesizePackets(1 + rand.Intn(4))

			var wire []byte
			for _, p := range packets {
				wire = append(wire, protocol.Encode(p)...)
			}

			remainder, decoded := protocol.Parse(wire)

			Expect(remainder).To(BeEmpty())
			Expect(decoded).To(HaveLen(len(packets)))

			for i, want := range packets {
				got := decoded[i]
				Expect(got.Type).To(Equal(want.Type))
				Expect(got.Header("reply-text")).To(Equal(want.Header("reply-text")))
				Expect(got.Body).To(Equal(want.Body))
			}
		}
	})
})

func synthesizePackets(n int) []*protocol.Packet {
	packets := make([]*protocol.Packet, 0, n)

	for i := 0; i < n; i++ {
		switch rand.Intn(2) {
		case 0:
			packets = append(packets, &protocol.Packet{
				Type: protocol.TypeCommandReply,
				Headers: map[string]string{
					"content-type": string(protocol.TypeCommandReply),
					"reply-text":   "+OK accepted",
				},
			})
		default:
			body := []byte("payload-" + strconv.Itoa(i))
			packets = append(packets, &protocol.Packet{
				Type: protocol.TypeAPIResponse,
				Headers: map[string]string{
					"content-type": string(protocol.TypeAPIResponse),
				},
				Body: body,
			})
		}
	}

	return packets
}
