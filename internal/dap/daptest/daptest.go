// Package daptest is a minimal in-process stub debug adapter used by
// internal/dap/session's end-to-end tests. It plays the server side of the
// protocol the way the daptest.Client in the pack's example repo plays the
// client side: read one decoded message at a
// time, reply by hand, no real debuggee behind it.
package daptest

import (
	"bufio"
	"fmt"
	"net"

	"github.com/google/go-dap"
)

// Server accepts a single connection and lets a test script drive it.
type Server struct {
	ln net.Listener
}

// Listen opens a loopback listener on an OS-assigned port.
func Listen() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{ln: ln}, nil
}

// Addr is the "host:port" a session.Params.Endpoint should dial.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Accept blocks for the next incoming connection and wraps it.
func (s *Server) Accept() (*Conn, error) {
	nc, err := s.ln.Accept()
	if err != nil {
		return nil, err
	}
	return &Conn{nc: nc, r: bufio.NewReader(nc)}, nil
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

// Conn is one accepted connection, playing the adapter side of the wire
// protocol: read a request, reply with typed responses/events.
type Conn struct {
	nc  net.Conn
	r   *bufio.Reader
	seq int
}

// Recv reads and decodes the next inbound message; callers type-assert it
// to the request type they expect.
func (c *Conn) Recv() (dap.Message, error) {
	return dap.ReadProtocolMessage(c.r)
}

// nextSeq returns the adapter's own outbound sequence counter.
func (c *Conn) nextSeq() int {
	c.seq++
	return c.seq
}

// Send writes message to the wire.
func (c *Conn) Send(message dap.Message) error {
	return dap.WriteProtocolMessage(c.nc, message)
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// RespondOK builds a successful response base for requestSeq/command.
func (c *Conn) RespondOK(requestSeq int, command string) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: "response"},
		RequestSeq:      requestSeq,
		Success:         true,
		Command:         command,
	}
}

// RespondFail builds a failed response base for requestSeq/command.
func (c *Conn) RespondFail(requestSeq int, command, message string) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: "response"},
		RequestSeq:      requestSeq,
		Success:         false,
		Command:         command,
		Message:         message,
	}
}

// Event builds an event base for the given event name.
func (c *Conn) Event(event string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: c.nextSeq(), Type: "event"},
		Event:           event,
	}
}
