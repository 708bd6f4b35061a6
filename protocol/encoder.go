package protocol

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// WriteCommand writes a single-line command: "<verb> <args>\n\n". args
// may be empty.
func WriteCommand(w io.Writer, verb, args string) error {
	var b bytes.Buffer
	b.WriteString(verb)
	if args != "" {
		b.WriteByte(' ')
		b.WriteString(args)
	}
	b.WriteString("\n\n")

	_, err := w.Write(b.Bytes())
	return err
}

// WriteBgapi writes a background command with a client-assigned
// Job-UUID header, so the result can later be correlated by job id.
func WriteBgapi(w io.Writer, cmd, args, jobID string) error {
	var b bytes.Buffer
	b.WriteString("bgapi ")
	b.WriteString(cmd)
	if args != "" {
		b.WriteByte(' ')
		b.WriteString(args)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Job-UUID: %s\n\n", jobID)

	_, err := w.Write(b.Bytes())
	return err
}

// WriteSendEvent writes a "sendevent <name>" command with its headers
// and optional body, injecting Content-Length from the body's length.
func WriteSendEvent(w io.Writer, name string, headers map[string]string, body []byte) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "sendevent %s\n", name)
	writeHeaderLines(&b, headers, body)

	_, err := w.Write(b.Bytes())
	return err
}

// WriteSendMsg writes a "sendmsg [uuid]" command with its headers and
// optional body, injecting Content-Length and Content-Type: text/plain
// from the body's length.
func WriteSendMsg(w io.Writer, uuid string, headers map[string]string, body []byte) error {
	var b bytes.Buffer
	b.WriteString("sendmsg")
	if uuid != "" {
		b.WriteByte(' ')
		b.WriteString(uuid)
	}
	b.WriteByte('\n')

	full := headers
	if len(body) > 0 {
		full = make(map[string]string, len(headers)+1)
		for k, v := range headers {
			full[k] = v
		}
		if _, ok := full["content-type"]; !ok {
			full["content-type"] = "text/plain"
		}
	}
	writeHeaderLines(&b, full, body)

	_, err := w.Write(b.Bytes())
	return err
}

// Encode serializes a non-event Packet's headers and body back to wire
// bytes, injecting Content-Length from len(Body) when it isn't already
// present. FreeSWITCH is always the one producing command/reply,
// api/response and event packets in this protocol; Encode exists as
// the inverse of Parse for testing and for tools that need to replay
// or synthesize wire traffic.
func Encode(p *Packet) []byte {
	headers := p.Headers
	if _, ok := headers["content-length"]; !ok && len(p.Body) > 0 {
		headers = make(map[string]string, len(p.Headers)+1)
		for k, v := range p.Headers {
			headers[k] = v
		}
		headers["content-length"] = strconv.Itoa(len(p.Body))
	}

	var b bytes.Buffer
	writeHeaderLines(&b, headers, nil)
	b.Write(p.Body)
	return b.Bytes()
}

// writeHeaderLines appends "Name: Value\n" lines (sorted for
// deterministic output) followed by a blank line and, if present, the
// body. Content-Length is injected automatically from len(body).
func writeHeaderLines(b *bytes.Buffer, headers map[string]string, body []byte) {
	names := make([]string, 0, len(headers)+1)
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if value := headers[name]; value != "" {
			fmt.Fprintf(b, "%s: %s\n", name, value)
		}
	}

	if len(body) > 0 {
		fmt.Fprintf(b, "content-length: %s\n\n", strconv.Itoa(len(body)))
		b.Write(body)
	} else {
		b.WriteByte('\n')
	}
}
