package engine

import (
	"fmt"

	"github.com/google/go-dap"
)

func (e *Engine) onStoppedEvent(body dap.StoppedEventBody) {
	e.epoch++
	e.fanout = &stopFanout{
		epoch:           e.epoch,
		pausedThreadID:  body.ThreadId,
		stackPerThread:  make(map[int][]StackFrame),
		scopesPerFrame:  make(map[int][]Scope),
		variablesPerRef: make(map[int][]Variable),
		visitedRefs:     make(map[int]bool),
	}
	e.state = Stopping
	if err := e.issueThreads(); err != nil {
		e.terminateWithErr(fmt.Errorf("issue threads: %w", err))
	}
}

func (e *Engine) onThreadsResponse(resp dap.Response, body dap.ThreadsResponseBody) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	_ = p
	if e.fanout == nil {
		e.log.Debug("threads response with no active fan-out, discarding")
		return
	}
	e.fanout.inFlight--
	if !resp.Success {
		e.log.Warn("threads fetch failed", "message", resp.Message)
		e.checkStopComplete()
		return
	}
	for _, th := range body.Threads {
		if err := e.issueStackTrace(th.Id); err != nil {
			e.terminateWithErr(fmt.Errorf("issue stackTrace: %w", err))
			return
		}
	}
	e.checkStopComplete()
}

func (e *Engine) onStackTraceResponse(resp dap.Response, body dap.StackTraceResponseBody) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	args, _ := p.args.(stackTraceFetch)
	if e.fanout == nil {
		e.log.Debug("stackTrace response with no active fan-out, discarding")
		return
	}
	e.fanout.inFlight--

	if !resp.Success {
		e.log.Warn("stackTrace fetch failed", "thread", args.ThreadID, "message", resp.Message)
		e.fanout.stackPerThread[args.ThreadID] = nil
		e.checkStopComplete()
		return
	}

	frames := make([]StackFrame, len(body.StackFrames))
	for i, f := range body.StackFrames {
		frames[i] = StackFrame{
			ID:         f.Id,
			Name:       f.Name,
			Line:       f.Line,
			Column:     f.Column,
			SourcePath: f.Source.Path,
		}
	}
	e.fanout.stackPerThread[args.ThreadID] = frames

	for _, f := range frames {
		if err := e.issueScopes(f.ID); err != nil {
			e.terminateWithErr(fmt.Errorf("issue scopes: %w", err))
			return
		}
	}
	e.checkStopComplete()
}

func (e *Engine) onScopesResponse(resp dap.Response, body dap.ScopesResponseBody) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	args, _ := p.args.(scopesFetch)
	if e.fanout == nil {
		e.log.Debug("scopes response with no active fan-out, discarding")
		return
	}
	e.fanout.inFlight--

	if !resp.Success {
		e.log.Warn("scopes fetch failed", "frame", args.FrameID, "message", resp.Message)
		e.fanout.scopesPerFrame[args.FrameID] = nil
		e.checkStopComplete()
		return
	}

	scopes := make([]Scope, len(body.Scopes))
	for i, s := range body.Scopes {
		scopes[i] = Scope{
			VariablesReference: s.VariablesReference,
			Name:               s.Name,
			Expensive:          s.Expensive,
		}
	}
	e.fanout.scopesPerFrame[args.FrameID] = scopes

	for _, s := range scopes {
		if s.VariablesReference > 0 && !s.Expensive && !e.fanout.visitedRefs[s.VariablesReference] {
			e.fanout.visitedRefs[s.VariablesReference] = true
			if err := e.issueVariables(s.VariablesReference, 0); err != nil {
				e.terminateWithErr(fmt.Errorf("issue variables: %w", err))
				return
			}
		}
	}
	e.checkStopComplete()
}

func (e *Engine) onVariablesResponse(resp dap.Response, body dap.VariablesResponseBody) {
	p, ok := e.resolve(resp)
	if !ok {
		return
	}
	args, _ := p.args.(variablesFetch)
	if e.fanout == nil {
		e.log.Debug("variables response with no active fan-out, discarding")
		return
	}
	e.fanout.inFlight--

	if !resp.Success {
		e.log.Warn("variables fetch failed", "ref", args.Ref, "message", resp.Message)
		e.fanout.variablesPerRef[args.Ref] = nil
		e.checkStopComplete()
		return
	}

	vars := make([]Variable, len(body.Variables))
	for i, v := range body.Variables {
		vars[i] = Variable{
			Name:               v.Name,
			Value:              v.Value,
			Type:               v.Type,
			VariablesReference: v.VariablesReference,
		}
	}
	e.fanout.variablesPerRef[args.Ref] = vars

	if args.Depth < e.cfg.MaxVariableExpandDepth {
		for _, v := range vars {
			if v.VariablesReference > 0 && !e.fanout.visitedRefs[v.VariablesReference] {
				e.fanout.visitedRefs[v.VariablesReference] = true
				if err := e.issueVariables(v.VariablesReference, args.Depth+1); err != nil {
					e.terminateWithErr(fmt.Errorf("issue nested variables: %w", err))
					return
				}
			}
		}
	}
	e.checkStopComplete()
}

// checkStopComplete transitions to Stopped and publishes the snapshot once
// every fetch initiated by the current stop has completed (invariant I4).
func (e *Engine) checkStopComplete() {
	if e.fanout == nil || e.fanout.inFlight > 0 {
		return
	}
	if e.state != Stopping {
		return
	}
	snapshot := &PausedState{
		PausedThreadID:  e.fanout.pausedThreadID,
		StackPerThread:  e.fanout.stackPerThread,
		ScopesPerFrame:  e.fanout.scopesPerFrame,
		VariablesPerRef: e.fanout.variablesPerRef,
	}
	e.state = Stopped
	e.publish(Result{Snapshot: snapshot.clone()})
}
