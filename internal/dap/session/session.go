// Package session is the synchronous façade (component E, spec §4.5): the
// only part of this module most callers ever touch. It hides the
// transport/engine goroutine split behind a blocking Resume/StepOver API
// and caches the terminal result so a session is safe to keep calling after
// the debuggee has exited.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dapgui/dapgui/internal/dap/dapterr"
	"github.com/dapgui/dapgui/internal/dap/engine"
	"github.com/dapgui/dapgui/internal/dap/transport"
	"github.com/dapgui/dapgui/internal/launchconfig"
)

// Re-exported so callers never need to import internal/dap/engine directly.
type (
	PausedState = engine.PausedState
	StackFrame  = engine.StackFrame
	Scope       = engine.Scope
	Variable    = engine.Variable
)

// OutputSink receives `output` events as they arrive. See internal/sink for
// the ring-buffered, fan-out implementation used by cmd/dapgui.
type OutputSink = engine.OutputSink

// Params configures a new Session.
type Params struct {
	// Endpoint is the adapter's "host:port". Defaults to "127.0.0.1:5678".
	Endpoint string
	// Dialer overrides how the TCP byte stream to Endpoint is established.
	// internal/sshtunnel supplies one that tunnels through a jump host.
	Dialer transport.Dialer

	// Config is the already-selected launch configuration (see
	// internal/launchconfig). Program, if set, overrides Config.Program.
	Config  launchconfig.Configuration
	Program string

	// Breakpoints maps a source file path to line numbers to break on.
	Breakpoints         map[string][]int
	FunctionBreakpoints []string

	HandshakeTimeout       time.Duration
	MaxVariableExpandDepth int

	Sink   OutputSink
	Logger *slog.Logger
}

// Session is a single debug session, driven to the caller's pace by Resume
// and StepOver. Not safe for concurrent use — callers serialize their own
// calls, matching the one-caller-at-a-time model of spec §4.5.
type Session struct {
	eng  *engine.Engine
	conn *transport.Transport

	done  bool
	final Result
}

// Result is what Resume/StepOver/New return: either a fresh paused snapshot
// or a terminal outcome.
type Result struct {
	Snapshot   *PausedState
	Terminated bool
	Err        error
}

func fromEngine(r engine.Result) Result {
	return Result{Snapshot: r.Snapshot, Terminated: r.Terminated, Err: r.Err}
}

// New dials the adapter, drives the handshake, and blocks until the session
// reaches its first Stopped or Terminated state. Fails with a *dapterr.ConnectErr,
// *dapterr.HandshakeErr, *dapterr.HandshakeTimeoutErr, or *dapterr.ConfigInvalidErr;
// a socket closed or a protocol violation during the handshake surfaces as
// *dapterr.TransportClosedErr or *dapterr.ProtocolErr.
func New(p Params) (*Session, Result, error) {
	cfg, err := buildConfig(p)
	if err != nil {
		return nil, Result{}, err
	}

	addr := p.Endpoint
	if addr == "" {
		addr = "127.0.0.1:5678"
	}
	conn, err := transport.Dial(addr, p.Dialer, p.Logger)
	if err != nil {
		return nil, Result{}, &dapterr.ConnectErr{Addr: addr, Err: err}
	}

	eng := engine.New(conn, cfg, p.Sink, p.Logger)
	go eng.Run()

	s := &Session{eng: eng, conn: conn}
	res := s.await()
	if res.Err != nil {
		return nil, res, res.Err
	}
	return s, res, nil
}

func buildConfig(p Params) (engine.Config, error) {
	c := p.Config
	requestKind := c.Request
	if requestKind != "launch" && requestKind != "attach" {
		return engine.Config{}, &dapterr.ConfigInvalidErr{Reason: fmt.Sprintf("unsupported request kind %q", requestKind)}
	}

	args := map[string]interface{}{}
	program := p.Program
	if program == "" {
		program = c.Program
	}
	if program != "" {
		args["program"] = program
	}
	if c.JustMyCode != nil {
		args["justMyCode"] = *c.JustMyCode
	}
	if len(c.PathMappings) > 0 {
		args["pathMappings"] = c.PathMappings
	}
	if c.Connect != nil {
		args["connect"] = map[string]interface{}{"host": c.Connect.Host, "port": c.Connect.Port}
	}

	cfg := engine.Config{
		RequestKind:            requestKind,
		Breakpoints:            p.Breakpoints,
		FunctionBreakpoints:    p.FunctionBreakpoints,
		HandshakeTimeout:       p.HandshakeTimeout,
		MaxVariableExpandDepth: p.MaxVariableExpandDepth,
	}
	if requestKind == "attach" {
		cfg.AttachArgs = args
	} else {
		cfg.LaunchArgs = args
	}
	return cfg, nil
}

// Resume continues the paused thread until the next stop or termination.
// Once a Terminated result has been observed, Resume returns the same
// result again without talking to the adapter (spec property P6).
func (s *Session) Resume() Result { return s.drive(engine.CmdResume) }

// StepOver steps the paused thread over one line.
func (s *Session) StepOver() Result { return s.drive(engine.CmdStepOver) }

func (s *Session) drive(cmd engine.Command) Result {
	if s.done {
		return s.final
	}
	s.eng.Send(cmd)
	return s.await()
}

func (s *Session) await() Result {
	r := fromEngine(<-s.eng.Results())
	if r.Terminated {
		s.done = true
		s.final = r
	}
	return r
}

// Close issues a graceful disconnect and tears down the connection. It does
// not wait for the adapter's response — the engine goroutine may still be
// in flight processing it when the TCP connection closes underneath it,
// which simply fails its write and unwinds the goroutine via
// terminateWithErr. If the session already observed a Terminated result,
// the engine goroutine has already exited, so there's nothing left to signal.
func (s *Session) Close() error {
	if !s.done {
		s.eng.Send(engine.CmdDisconnect)
	}
	return s.conn.Close()
}
