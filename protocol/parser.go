package protocol

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Parse decodes as many complete packets as possible from buf and
// returns them along with the unconsumed remainder. It never discards
// bytes it could not decode: the remainder is always a suffix of the
// original buf, ready to be fed more bytes and parsed again.
//
// Parse is total and side-effect free: a malformed header line is
// skipped rather than treated as fatal, and a malformed Content-Length
// is treated as zero. Callers that want to log these conditions should
// inspect the returned packets; Parse itself never errors.
func Parse(buf []byte) (remainder []byte, packets []*Packet) {
	for {
		sep := bytes.Index(buf, []byte("\n\n"))
		if sep < 0 {
			return buf, packets
		}

		headers := decodeHeaderBlock(buf[:sep], true)
		rest := buf[sep+2:]

		length := contentLength(headers, "content-length")
		if len(rest) < length {
			// The body hasn't fully arrived yet; wait for more bytes
			// before consuming the headers we already found.
			return buf, packets
		}

		body := rest[:length]
		buf = rest[length:]

		packets = append(packets, buildPacket(headers, body))
	}
}

// decodeHeaderBlock splits a "Name: Value\n"-delimited block into a
// map. Header values may contain ':' themselves, so only the first
// colon is significant; a single leading space is trimmed from the
// value. Lines with no colon are malformed and are skipped rather than
// aborting the whole block.
func decodeHeaderBlock(block []byte, lowercase bool) map[string]string {
	headers := make(map[string]string)

	for _, line := range bytes.Split(block, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			continue
		}

		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			continue
		}

		name := strings.TrimSpace(string(line[:idx]))
		if lowercase {
			name = strings.ToLower(name)
		}

		value := string(line[idx+1:])
		value = strings.TrimPrefix(value, " ")

		headers[name] = value
	}

	return headers
}

func contentLength(headers map[string]string, key string) int {
	raw, ok := headers[key]
	if !ok {
		return 0
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}

	return n
}

func buildPacket(headers map[string]string, body []byte) *Packet {
	p := &Packet{
		Type:    Type(headers["content-type"]),
		Headers: headers,
		Body:    body,
		JobID:   headers[JobUUIDHeader],
	}

	switch p.Type {
	case TypeCommandReply:
		replyText := headers["reply-text"]
		p.Success = strings.HasPrefix(replyText, "+OK")
		p.Rest = trimReplyPrefix(replyText)

	case TypeAPIResponse:
		p.Success = bytes.HasPrefix(body, []byte("+OK"))

	case TypeEventPlain:
		p.Parsed, p.Body = parseEventPlainBody(body)
		if jobID := p.Parsed["Job-UUID"]; jobID != "" {
			p.JobID = jobID
		}

	case TypeEventJSON:
		p.Parsed, p.Body = parseEventJSONBody(body)
		if jobID := p.Parsed["Job-UUID"]; jobID != "" {
			p.JobID = jobID
		}
	}

	return p
}

func trimReplyPrefix(replyText string) string {
	for _, prefix := range []string{"+OK ", "-ERR "} {
		if strings.HasPrefix(replyText, prefix) {
			return replyText[len(prefix):]
		}
	}
	return replyText
}

// parseEventPlainBody decodes the nested header block carried inside a
// text/event-plain packet's body. Event field names and values are
// URL-encoded and are decoded here; the outer Content-Length (already
// applied by Parse) is authoritative for framing, so an inner
// Content-Length only ever trims within bytes we already have.
func parseEventPlainBody(body []byte) (parsed map[string]string, inner []byte) {
	sep := bytes.Index(body, []byte("\n\n"))

	headerBlock := body
	var rest []byte
	if sep >= 0 {
		headerBlock = body[:sep]
		rest = body[sep+2:]
	}

	raw := decodeHeaderBlock(headerBlock, false)
	parsed = make(map[string]string, len(raw))
	for name, value := range raw {
		parsed[unescapeField(name)] = unescapeField(value)
	}

	if rest == nil {
		return parsed, nil
	}

	if length := contentLength(raw, "Content-Length"); length > 0 && length <= len(rest) {
		return parsed, rest[:length]
	}

	return parsed, rest
}

// parseEventJSONBody decodes a text/event-json packet's body. Event
// fields arrive as a flat JSON object; a "_body" key (if present) is
// promoted to the packet's free-form body, mirroring the plain
// encoding's trailing payload.
func parseEventJSONBody(body []byte) (parsed map[string]string, inner []byte) {
	parsed = make(map[string]string)

	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		if key.String() == "_body" {
			inner = []byte(value.String())
			return true
		}
		parsed[key.String()] = value.String()
		return true
	})

	return parsed, inner
}

// unescapeField URL-decodes a single event field name or value. It
// uses PathUnescape rather than QueryUnescape because the protocol
// always escapes a literal space as %20 and never means for '+' to be
// read back as one.
func unescapeField(s string) string {
	if decoded, err := url.PathUnescape(s); err == nil {
		return decoded
	}
	return s
}
