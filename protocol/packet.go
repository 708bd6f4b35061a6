package protocol

import "strings"

// Type identifies the Content-Type of a decoded packet.
type Type string

const (
	TypeAuthRequest      Type = "auth/request"
	TypeCommandReply     Type = "command/reply"
	TypeAPIResponse      Type = "api/response"
	TypeEventPlain       Type = "text/event-plain"
	TypeEventJSON        Type = "text/event-json"
	TypeDisconnectNotice Type = "text/disconnect-notice"
)

// JobUUIDHeader is the header FreeSWITCH uses to correlate a background
// job result back to the bgapi command that started it.
const JobUUIDHeader = "job-uuid"

// Packet is a single decoded message from the event socket: a header
// block plus an optional body.
//
// Headers are keyed by their lower-cased name. For event packets,
// Parsed holds the URL-decoded event fields carried in the body; Body
// then holds whatever free-form payload followed the event's own
// header block (e.g. the text of a LOG event), which may be empty.
type Packet struct {
	Type    Type
	Headers map[string]string
	Body    []byte
	Parsed  map[string]string
	Success bool
	JobID   string
	Rest    string
}

// Header returns the value of the named header (case-insensitive), or
// "" if it isn't present.
func (p *Packet) Header(name string) string {
	return p.Headers[strings.ToLower(name)]
}

// Field returns the URL-decoded value of the named event field, or ""
// if it isn't present. Only meaningful for event packets.
func (p *Packet) Field(name string) string {
	if p.Parsed == nil {
		return ""
	}
	return p.Parsed[name]
}
