// Package protocol implements the framing used by FreeSWITCH's Event
// Socket: https://wiki.freeswitch.org/wiki/Event_Socket
//
// A packet is a sequence of "Name: Value" header lines terminated by a
// blank line, followed by exactly Content-Length bytes of body (if a
// Content-Length header is present).
//
//	Content-Type: command/reply
//	Reply-Text: +OK accepted
//	<blank line>
//
// When Content-Type is text/event-plain, the body is itself a second
// header block, URL-encoded, optionally followed by a free-form payload
// named by an inner Content-Length:
//
//	Content-Type: text/event-plain
//	Content-Length: 67
//	<blank line>
//	Event-Name: HEARTBEAT
//	Event-Date-Local: 2021-09-01%2012%3A00%3A00
//
// This package only knows how to decode and encode this framing. It has
// no opinion about what any particular command or event means.
package protocol
