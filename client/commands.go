package client

import (
	"context"
	"io"
	"strings"

	"github.com/luma/eventsocket/protocol"
)

func (c *Conn) command(ctx context.Context, verb, args string) (*protocol.Packet, error) {
	return c.sendSync(ctx, func(w io.Writer) error {
		return protocol.WriteCommand(w, verb, args)
	})
}

// Event subscribes to event classes in the given format ("plain" or
// "json"), e.g. Event(ctx, "plain", "ALL") or
// Event(ctx, "plain", "CHANNEL_CREATE", "HEARTBEAT").
func (c *Conn) Event(ctx context.Context, format string, names ...string) (*protocol.Packet, error) {
	return c.command(ctx, "event", strings.Join(append([]string{format}, names...), " "))
}

// MyEvents restricts delivery to events belonging to a single channel
// uuid, in the given format.
func (c *Conn) MyEvents(ctx context.Context, format, uuid string) (*protocol.Packet, error) {
	return c.command(ctx, "myevents", format+" "+uuid)
}

// DivertEvents toggles whether events matching an active "myevents"
// registration are diverted to this socket instead of the dialplan.
func (c *Conn) DivertEvents(ctx context.Context, on bool) (*protocol.Packet, error) {
	state := "off"
	if on {
		state = "on"
	}
	return c.command(ctx, "divert_events", state)
}

// Filter narrows event delivery to those whose named header matches
// value exactly.
func (c *Conn) Filter(ctx context.Context, key, value string) (*protocol.Packet, error) {
	return c.command(ctx, "filter", key+" "+value)
}

// FilterDelete removes a previously installed filter.
func (c *Conn) FilterDelete(ctx context.Context, key, value string) (*protocol.Packet, error) {
	return c.command(ctx, "filter delete", key+" "+value)
}

// NixEvent unsubscribes from the named event classes.
func (c *Conn) NixEvent(ctx context.Context, names ...string) (*protocol.Packet, error) {
	return c.command(ctx, "nixevent", strings.Join(names, " "))
}

// NoEvents cancels every event subscription on this socket.
func (c *Conn) NoEvents(ctx context.Context) (*protocol.Packet, error) {
	return c.command(ctx, "noevents", "")
}

// Linger tells FreeSWITCH to keep an outbound socket open briefly
// after the channel it controls hangs up, so trailing events are not
// lost.
func (c *Conn) Linger(ctx context.Context) (*protocol.Packet, error) {
	return c.command(ctx, "linger", "")
}

// NoLinger reverses Linger.
func (c *Conn) NoLinger(ctx context.Context) (*protocol.Packet, error) {
	return c.command(ctx, "nolinger", "")
}

// Log enables console log lines of the given level on this socket.
func (c *Conn) Log(ctx context.Context, level string) (*protocol.Packet, error) {
	return c.command(ctx, "log", level)
}

// NoLog disables console log delivery previously enabled with Log.
func (c *Conn) NoLog(ctx context.Context) (*protocol.Packet, error) {
	return c.command(ctx, "nolog", "")
}

// Exit closes the command channel; FreeSWITCH sends a
// text/disconnect-notice and closes the socket.
func (c *Conn) Exit(ctx context.Context) (*protocol.Packet, error) {
	return c.command(ctx, "exit", "")
}

// Api issues a synchronous API command and waits for its api/response.
//
// Api is defined in conn.go alongside Bgapi, since both share the
// synchronous command plumbing the other wrappers here build on.

// SendEvent fires a synthetic event into FreeSWITCH.
func (c *Conn) SendEvent(ctx context.Context, name string, headers map[string]string, body []byte) (*protocol.Packet, error) {
	return c.sendSync(ctx, func(w io.Writer) error {
		return protocol.WriteSendEvent(w, name, headers, body)
	})
}

// SendMsg sends call-control directives to the channel named by uuid,
// or, on an outbound socket, to the channel that dialed in when uuid
// is empty.
func (c *Conn) SendMsg(ctx context.Context, uuid string, headers map[string]string, body []byte) (*protocol.Packet, error) {
	return c.sendSync(ctx, func(w io.Writer) error {
		return protocol.WriteSendMsg(w, uuid, headers, body)
	})
}

// ExecuteUUID is a sendmsg shortcut for call-command: execute against
// an explicit channel uuid, for inbound sockets controlling a call by
// id.
func (c *Conn) ExecuteUUID(ctx context.Context, uuid, appName, appArg string, lock bool) (*protocol.Packet, error) {
	headers := map[string]string{
		"call-command":     "execute",
		"execute-app-name": appName,
		"execute-app-arg":  appArg,
	}
	if lock {
		headers["event-lock"] = "true"
	}
	return c.SendMsg(ctx, uuid, headers, nil)
}

// Execute is ExecuteUUID with an empty uuid, for outbound sockets
// where the channel is implicit.
func (c *Conn) Execute(ctx context.Context, appName, appArg string, lock bool) (*protocol.Packet, error) {
	return c.ExecuteUUID(ctx, "", appName, appArg, lock)
}
