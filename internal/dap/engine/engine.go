// Package engine implements the client-side DAP protocol state machine
// (component D, spec §4.4): the handshake, the stopped-state fan-out, and
// event handling. It owns all protocol state exclusively from a single
// goroutine; the only things that cross into or out of that goroutine are
// messages, commands, and published results (spec §5).
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-dap"

	"github.com/dapgui/dapgui/internal/dap/correlate"
	"github.com/dapgui/dapgui/internal/dap/dapterr"
	"github.com/dapgui/dapgui/internal/dap/transport"
	"github.com/dapgui/dapgui/internal/sink"
)

// OutputSink receives `output` events as they arrive.
type OutputSink interface {
	Write(category, text string)
}

// fetch-kind argument payloads, stashed on the correlator's PendingRequest
// so a response handler knows what it's completing without re-deriving it.
type stackTraceFetch struct{ ThreadID int }
type scopesFetch struct{ FrameID int }
type variablesFetch struct {
	Ref   int
	Depth int
}

type stopFanout struct {
	epoch           int
	pausedThreadID  int
	stackPerThread  map[int][]StackFrame
	scopesPerFrame  map[int][]Scope
	variablesPerRef map[int][]Variable
	visitedRefs     map[int]bool
	inFlight        int
}

// Engine is the single-threaded protocol state machine.
type Engine struct {
	conn *transport.Transport
	corr *correlate.Correlator
	cfg  Config
	sink OutputSink
	log  *slog.Logger

	cmds    chan Command
	results chan Result

	state                State
	capabilities         dap.Capabilities
	epoch                int
	fanout               *stopFanout
	threadStatus         map[int]ThreadStatus
	exitCode             *int
	configuringRemaining int
}

// New constructs an Engine bound to an already-dialed transport. Call Run
// in its own goroutine to start the handshake.
func New(conn *transport.Transport, cfg Config, out OutputSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = sink.Std{}
	}
	return &Engine{
		conn:         conn,
		corr:         correlate.New(),
		cfg:          cfg.withDefaults(),
		sink:         out,
		log:          logger,
		cmds:         make(chan Command, 1),
		results:      make(chan Result, 1),
		state:        Connecting,
		threadStatus: make(map[int]ThreadStatus),
	}
}

// Results is where the façade receives the handshake outcome and every
// subsequent resume()/step_over() outcome. Exactly one value is published
// per driven transition.
func (e *Engine) Results() <-chan Result { return e.results }

// Send enqueues a caller command (resume/step over) for the engine loop.
// The façade must not call this after a Terminated result without first
// checking — once terminated the engine loop has exited, so commands are
// never processed and a Send beyond the one-slot buffer blocks.
func (e *Engine) Send(cmd Command) { e.cmds <- cmd }

// Run drives the handshake and then services commands and inbound messages
// until the session terminates. Intended to run in its own goroutine.
func (e *Engine) Run() {
	if err := e.issueInitialize(); err != nil {
		e.terminateWithErr(err)
		return
	}
	e.state = Initializing

	var timeoutC <-chan time.Time
	if e.cfg.HandshakeTimeout > 0 {
		timer := time.NewTimer(e.cfg.HandshakeTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	for {
		select {
		case msg, ok := <-e.conn.Messages():
			if !ok {
				if e.state != Terminated {
					e.terminateWithErr(e.transportClosedErr())
				}
				return
			}
			e.onMessage(msg)
			if e.state == Terminated {
				return
			}
			if e.state == Stopped || e.state == Running {
				timeoutC = nil // handshake is over
			}

		case cmd := <-e.cmds:
			e.onCommand(cmd)
			if e.state == Terminated {
				return
			}

		case <-timeoutC:
			e.terminateWithErr(&dapterr.HandshakeTimeoutErr{Timeout: e.cfg.HandshakeTimeout.String()})
			return
		}
	}
}

func (e *Engine) transportClosedErr() error {
	return &dapterr.TransportClosedErr{}
}

func (e *Engine) onCommand(cmd Command) {
	if cmd == CmdDisconnect {
		// Unlike Resume/StepOver, disconnect is valid from any live state —
		// a caller may give up on a session mid-stop or mid-run.
		if err := e.issueDisconnect(); err != nil {
			e.terminateWithErr(fmt.Errorf("issue disconnect: %w", err))
		}
		return
	}

	if e.state != Stopped {
		e.log.Warn("command issued outside Stopped state, ignoring", "state", e.state.String())
		return
	}
	threadID := e.fanout.pausedThreadID
	var err error
	switch cmd {
	case CmdResume:
		err = e.issueContinue(threadID)
	case CmdStepOver:
		err = e.issueNext(threadID)
	}
	if err != nil {
		e.terminateWithErr(fmt.Errorf("issue resume command: %w", err))
		return
	}
	e.fanout = nil
	e.state = Running
}

func (e *Engine) publish(res Result) {
	e.results <- res
}

func (e *Engine) terminateWithErr(err error) {
	e.state = Terminated
	_ = e.conn.Close()
	e.publish(Result{Terminated: true, Err: err})
}

func (e *Engine) terminateClean() {
	e.state = Terminated
	_ = e.conn.Close()
	e.publish(Result{Terminated: true})
}
