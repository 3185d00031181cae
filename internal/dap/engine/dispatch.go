package engine

import (
	"fmt"

	"github.com/google/go-dap"

	"github.com/dapgui/dapgui/internal/dap/dapterr"
)

// onMessage is the sole entry point for inbound decoded messages. It is
// only ever called from the engine's own goroutine (spec §5).
func (e *Engine) onMessage(msg dap.Message) {
	switch m := msg.(type) {
	case *dap.InitializeResponse:
		e.onInitializeResponse(m.Response, m.Body)
	case *dap.LaunchResponse:
		e.onHandshakeResponse(m.Response)
	case *dap.AttachResponse:
		e.onHandshakeResponse(m.Response)
	case *dap.SetBreakpointsResponse:
		e.onSetBreakpointsResponse(m.Response)
	case *dap.SetFunctionBreakpointsResponse:
		e.onSetFunctionBreakpointsResponse(m.Response)
	case *dap.ConfigurationDoneResponse:
		e.onHandshakeResponse(m.Response)
	case *dap.ThreadsResponse:
		e.onThreadsResponse(m.Response, m.Body)
	case *dap.StackTraceResponse:
		e.onStackTraceResponse(m.Response, m.Body)
	case *dap.ScopesResponse:
		e.onScopesResponse(m.Response, m.Body)
	case *dap.VariablesResponse:
		e.onVariablesResponse(m.Response, m.Body)
	case *dap.ContinueResponse:
		e.onNonFatalResponse(m.Response)
	case *dap.NextResponse:
		e.onNonFatalResponse(m.Response)
	case *dap.StepInResponse:
		e.onNonFatalResponse(m.Response)
	case *dap.StepOutResponse:
		e.onNonFatalResponse(m.Response)
	case *dap.PauseResponse:
		e.onNonFatalResponse(m.Response)
	case *dap.DisconnectResponse:
		e.onDisconnectResponse(m.Response)
	case *dap.EvaluateResponse:
		e.onNonFatalResponse(m.Response)

	case *dap.InitializedEvent:
		e.onInitializedEvent()
	case *dap.StoppedEvent:
		e.onStoppedEvent(m.Body)
	case *dap.ContinuedEvent:
		e.log.Debug("continued event received")
	case *dap.ThreadEvent:
		e.onThreadEvent(m.Body)
	case *dap.OutputEvent:
		e.onOutputEvent(m.Body)
	case *dap.TerminatedEvent:
		e.terminateClean()
	case *dap.ExitedEvent:
		e.onExitedEvent(m.Body)
	case *dap.BreakpointEvent, *dap.ModuleEvent, *dap.LoadedSourceEvent:
		e.log.Debug("tolerated event", "type", fmt.Sprintf("%T", msg))

	default:
		e.terminateWithErr(&dapterr.ProtocolErr{Reason: fmt.Sprintf("unknown message type %T", msg)})
	}
}

// resolve looks up the pending request for resp and reports whether it
// should be processed further: false means either the request was unknown
// (logged and discarded per I2) or it belongs to a stale stop epoch and
// must be silently dropped.
func (e *Engine) resolve(resp dap.Response) (pr pendingOrZero, proceed bool) {
	p, ok := e.corr.Resolve(resp.RequestSeq)
	if !ok {
		e.log.Warn("response with no matching request, discarding", "request_seq", resp.RequestSeq, "command", resp.Command)
		return pendingOrZero{}, false
	}
	if isFetchCommand(p.Command) && p.Epoch != e.epoch {
		e.log.Debug("dropping stale fetch response", "command", p.Command, "epoch", p.Epoch, "current_epoch", e.epoch)
		return pendingOrZero{}, false
	}
	return pendingOrZero{valid: true, command: p.Command, args: p.Arguments}, true
}

type pendingOrZero struct {
	valid   bool
	command string
	args    interface{}
}

func isFetchCommand(command string) bool {
	switch command {
	case "threads", "stackTrace", "scopes", "variables":
		return true
	default:
		return false
	}
}

func (e *Engine) onNonFatalResponse(resp dap.Response) {
	_, ok := e.resolve(resp)
	if !ok {
		return
	}
	if !resp.Success {
		e.log.Warn("request failed", "command", resp.Command, "message", resp.Message)
	}
}

// onDisconnectResponse terminates the engine once the adapter acknowledges
// our disconnect, success or not — there's no state left worth preserving
// either way.
func (e *Engine) onDisconnectResponse(resp dap.Response) {
	_, ok := e.resolve(resp)
	if !ok {
		return
	}
	if !resp.Success {
		e.log.Warn("disconnect failed", "message", resp.Message)
	}
	e.terminateClean()
}

func (e *Engine) onHandshakeResponse(resp dap.Response) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	if !resp.Success {
		e.terminateWithErr(&dapterr.HandshakeErr{Command: p.command, Message: resp.Message})
		return
	}
	switch p.command {
	case "attach", "launch":
		e.state = Configuring
	case "configurationDone":
		e.state = Running
	}
}

func (e *Engine) onInitializeResponse(resp dap.Response, body dap.Capabilities) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	if !resp.Success {
		e.terminateWithErr(&dapterr.HandshakeErr{Command: p.command, Message: resp.Message})
		return
	}
	e.capabilities = body
	if err := e.issueAttachOrLaunch(); err != nil {
		e.terminateWithErr(fmt.Errorf("issue %s: %w", e.cfg.RequestKind, err))
	}
}

func (e *Engine) onInitializedEvent() {
	sources := make([]string, 0, len(e.cfg.Breakpoints))
	for source := range e.cfg.Breakpoints {
		sources = append(sources, source)
	}
	if len(sources) == 0 {
		if err := e.issueSetFunctionBreakpoints(); err != nil {
			e.terminateWithErr(fmt.Errorf("issue setFunctionBreakpoints: %w", err))
		}
		return
	}
	e.configuringRemaining = len(sources)
	for _, source := range sources {
		if err := e.issueSetBreakpoints(source, e.cfg.Breakpoints[source]); err != nil {
			e.terminateWithErr(fmt.Errorf("issue setBreakpoints: %w", err))
			return
		}
	}
}

func (e *Engine) onSetBreakpointsResponse(resp dap.Response) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	if !resp.Success {
		e.terminateWithErr(&dapterr.HandshakeErr{Command: p.command, Message: resp.Message})
		return
	}
	e.configuringRemaining--
	if e.configuringRemaining <= 0 {
		if err := e.issueSetFunctionBreakpoints(); err != nil {
			e.terminateWithErr(fmt.Errorf("issue setFunctionBreakpoints: %w", err))
		}
	}
}

func (e *Engine) onSetFunctionBreakpointsResponse(resp dap.Response) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	if !resp.Success {
		e.terminateWithErr(&dapterr.HandshakeErr{Command: p.command, Message: resp.Message})
		return
	}
	if err := e.issueConfigurationDone(); err != nil {
		e.terminateWithErr(fmt.Errorf("issue configurationDone: %w", err))
	}
}

func (e *Engine) onThreadEvent(body dap.ThreadEventBody) {
	switch body.Reason {
	case "started":
		e.threadStatus[body.ThreadId] = ThreadStarted
	case "exited":
		e.threadStatus[body.ThreadId] = ThreadExited
	}
}

func (e *Engine) onOutputEvent(body dap.OutputEventBody) {
	category := body.Category
	if category != "stdout" && category != "stderr" {
		category = "stderr"
	}
	e.sink.Write(category, body.Output)
}

func (e *Engine) onExitedEvent(body dap.ExitedEventBody) {
	code := body.ExitCode
	e.exitCode = &code
}
