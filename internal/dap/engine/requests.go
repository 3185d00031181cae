package engine

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"
)

func (e *Engine) newRequest(seq int, command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
	}
}

func (e *Engine) issueInitialize() error {
	pr := e.corr.Issue("initialize", nil, 0)
	req := &dap.InitializeRequest{
		Request: e.newRequest(pr.Seq, "initialize"),
		Arguments: dap.InitializeRequestArguments{
			ClientID:                     e.cfg.AdapterID,
			ClientName:                   e.cfg.ClientName,
			AdapterID:                    e.cfg.AdapterID,
			PathFormat:                   "path",
			LinesStartAt1:                true,
			ColumnsStartAt1:              true,
			SupportsVariableType:         true,
			SupportsRunInTerminalRequest: false,
		},
	}
	return e.conn.Send(req)
}

func (e *Engine) issueAttachOrLaunch() error {
	if e.cfg.RequestKind == "attach" {
		return e.issueAttach()
	}
	return e.issueLaunch()
}

func (e *Engine) issueLaunch() error {
	argsJSON, err := json.Marshal(e.cfg.LaunchArgs)
	if err != nil {
		return fmt.Errorf("marshal launch arguments: %w", err)
	}
	pr := e.corr.Issue("launch", nil, 0)
	req := &dap.LaunchRequest{
		Request:   e.newRequest(pr.Seq, "launch"),
		Arguments: argsJSON,
	}
	return e.conn.Send(req)
}

func (e *Engine) issueAttach() error {
	argsJSON, err := json.Marshal(e.cfg.AttachArgs)
	if err != nil {
		return fmt.Errorf("marshal attach arguments: %w", err)
	}
	pr := e.corr.Issue("attach", nil, 0)
	req := &dap.AttachRequest{
		Request:   e.newRequest(pr.Seq, "attach"),
		Arguments: argsJSON,
	}
	return e.conn.Send(req)
}

func (e *Engine) issueSetBreakpoints(source string, lines []int) error {
	breakpoints := make([]dap.SourceBreakpoint, len(lines))
	for i, line := range lines {
		breakpoints[i] = dap.SourceBreakpoint{Line: line}
	}
	pr := e.corr.Issue("setBreakpoints", source, 0)
	req := &dap.SetBreakpointsRequest{
		Request: e.newRequest(pr.Seq, "setBreakpoints"),
		Arguments: dap.SetBreakpointsArguments{
			Source:      dap.Source{Path: source},
			Breakpoints: breakpoints,
		},
	}
	return e.conn.Send(req)
}

func (e *Engine) issueSetFunctionBreakpoints() error {
	breakpoints := make([]dap.FunctionBreakpoint, len(e.cfg.FunctionBreakpoints))
	for i, name := range e.cfg.FunctionBreakpoints {
		breakpoints[i] = dap.FunctionBreakpoint{Name: name}
	}
	pr := e.corr.Issue("setFunctionBreakpoints", nil, 0)
	req := &dap.SetFunctionBreakpointsRequest{
		Request: e.newRequest(pr.Seq, "setFunctionBreakpoints"),
		Arguments: dap.SetFunctionBreakpointsArguments{
			Breakpoints: breakpoints,
		},
	}
	return e.conn.Send(req)
}

func (e *Engine) issueConfigurationDone() error {
	pr := e.corr.Issue("configurationDone", nil, 0)
	req := &dap.ConfigurationDoneRequest{
		Request: e.newRequest(pr.Seq, "configurationDone"),
	}
	return e.conn.Send(req)
}

func (e *Engine) issueThreads() error {
	pr := e.corr.Issue("threads", nil, e.epoch)
	req := &dap.ThreadsRequest{Request: e.newRequest(pr.Seq, "threads")}
	e.fanout.inFlight++
	return e.conn.Send(req)
}

func (e *Engine) issueStackTrace(threadID int) error {
	pr := e.corr.Issue("stackTrace", stackTraceFetch{ThreadID: threadID}, e.epoch)
	req := &dap.StackTraceRequest{
		Request:   e.newRequest(pr.Seq, "stackTrace"),
		Arguments: dap.StackTraceArguments{ThreadId: threadID},
	}
	e.fanout.inFlight++
	return e.conn.Send(req)
}

func (e *Engine) issueScopes(frameID int) error {
	pr := e.corr.Issue("scopes", scopesFetch{FrameID: frameID}, e.epoch)
	req := &dap.ScopesRequest{
		Request:   e.newRequest(pr.Seq, "scopes"),
		Arguments: dap.ScopesArguments{FrameId: frameID},
	}
	e.fanout.inFlight++
	return e.conn.Send(req)
}

func (e *Engine) issueVariables(ref, depth int) error {
	pr := e.corr.Issue("variables", variablesFetch{Ref: ref, Depth: depth}, e.epoch)
	req := &dap.VariablesRequest{
		Request:   e.newRequest(pr.Seq, "variables"),
		Arguments: dap.VariablesArguments{VariablesReference: ref},
	}
	e.fanout.inFlight++
	return e.conn.Send(req)
}

func (e *Engine) issueContinue(threadID int) error {
	pr := e.corr.Issue("continue", nil, e.epoch)
	req := &dap.ContinueRequest{
		Request:   e.newRequest(pr.Seq, "continue"),
		Arguments: dap.ContinueArguments{ThreadId: threadID},
	}
	return e.conn.Send(req)
}

func (e *Engine) issueNext(threadID int) error {
	pr := e.corr.Issue("next", nil, e.epoch)
	req := &dap.NextRequest{
		Request:   e.newRequest(pr.Seq, "next"),
		Arguments: dap.NextArguments{ThreadId: threadID},
	}
	return e.conn.Send(req)
}

func (e *Engine) issueDisconnect() error {
	pr := e.corr.Issue("disconnect", nil, 0)
	req := &dap.DisconnectRequest{
		Request:   e.newRequest(pr.Seq, "disconnect"),
		Arguments: &dap.DisconnectArguments{TerminateDebuggee: true},
	}
	return e.conn.Send(req)
}
