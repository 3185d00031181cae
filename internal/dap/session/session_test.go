package session

import (
	"testing"
	"time"

	"github.com/google/go-dap"

	"github.com/dapgui/dapgui/internal/dap/daptest"
	"github.com/dapgui/dapgui/internal/launchconfig"
)

// driveHandshake plays the adapter side of a stock initialize -> launch ->
// initialized -> setFunctionBreakpoints -> configurationDone exchange,
// ending with a single stopped event on threadID.
func driveHandshake(t *testing.T, conn *daptest.Conn, threadID int) {
	t.Helper()

	// initialize
	msg, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv initialize: %v", err)
	}
	initReq, ok := msg.(*dap.InitializeRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.InitializeRequest", msg)
	}
	if err := conn.Send(&dap.InitializeResponse{
		Response: conn.RespondOK(initReq.Seq, "initialize"),
		Body:     dap.Capabilities{SupportsFunctionBreakpoints: true},
	}); err != nil {
		t.Fatalf("send initialize response: %v", err)
	}

	// launch
	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv launch: %v", err)
	}
	launchReq, ok := msg.(*dap.LaunchRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.LaunchRequest", msg)
	}
	if err := conn.Send(&dap.LaunchResponse{Response: conn.RespondOK(launchReq.Seq, "launch")}); err != nil {
		t.Fatalf("send launch response: %v", err)
	}
	if err := conn.Send(&dap.InitializedEvent{Event: conn.Event("initialized")}); err != nil {
		t.Fatalf("send initialized event: %v", err)
	}

	// setFunctionBreakpoints (no source breakpoints configured in these tests)
	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv setFunctionBreakpoints: %v", err)
	}
	fbReq, ok := msg.(*dap.SetFunctionBreakpointsRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.SetFunctionBreakpointsRequest", msg)
	}
	if err := conn.Send(&dap.SetFunctionBreakpointsResponse{Response: conn.RespondOK(fbReq.Seq, "setFunctionBreakpoints")}); err != nil {
		t.Fatalf("send setFunctionBreakpoints response: %v", err)
	}

	// configurationDone
	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv configurationDone: %v", err)
	}
	cdReq, ok := msg.(*dap.ConfigurationDoneRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.ConfigurationDoneRequest", msg)
	}
	if err := conn.Send(&dap.ConfigurationDoneResponse{Response: conn.RespondOK(cdReq.Seq, "configurationDone")}); err != nil {
		t.Fatalf("send configurationDone response: %v", err)
	}

	// stop immediately at entry
	if err := conn.Send(&dap.StoppedEvent{
		Event: conn.Event("stopped"),
		Body:  dap.StoppedEventBody{Reason: "breakpoint", ThreadId: threadID},
	}); err != nil {
		t.Fatalf("send stopped event: %v", err)
	}
}

// driveStopFanout replies to the threads/stackTrace/scopes fetches the
// engine issues after a stopped event, with one frame and one empty scope.
func driveStopFanout(t *testing.T, conn *daptest.Conn, threadID, frameID int) {
	t.Helper()

	msg, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv threads: %v", err)
	}
	threadsReq, ok := msg.(*dap.ThreadsRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.ThreadsRequest", msg)
	}
	if err := conn.Send(&dap.ThreadsResponse{
		Response: conn.RespondOK(threadsReq.Seq, "threads"),
		Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: threadID, Name: "main"}}},
	}); err != nil {
		t.Fatalf("send threads response: %v", err)
	}

	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv stackTrace: %v", err)
	}
	stReq, ok := msg.(*dap.StackTraceRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.StackTraceRequest", msg)
	}
	if err := conn.Send(&dap.StackTraceResponse{
		Response: conn.RespondOK(stReq.Seq, "stackTrace"),
		Body: dap.StackTraceResponseBody{StackFrames: []dap.StackFrame{
			{Id: frameID, Name: "main", Line: 10, Column: 1, Source: dap.Source{Path: "/tmp/main.go"}},
		}},
	}); err != nil {
		t.Fatalf("send stackTrace response: %v", err)
	}

	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv scopes: %v", err)
	}
	scReq, ok := msg.(*dap.ScopesRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.ScopesRequest", msg)
	}
	if err := conn.Send(&dap.ScopesResponse{
		Response: conn.RespondOK(scReq.Seq, "scopes"),
		Body:     dap.ScopesResponseBody{Scopes: []dap.Scope{{Name: "Locals", VariablesReference: 0}}},
	}); err != nil {
		t.Fatalf("send scopes response: %v", err)
	}
}

// driveStopFanoutWithVariables is driveStopFanout's sibling for scenario 2
// (spec P5): the scope carries a nonzero VariablesReference, so the engine
// must follow it with a variables fetch before the stop is complete.
func driveStopFanoutWithVariables(t *testing.T, conn *daptest.Conn, threadID, frameID, varsRef int) {
	t.Helper()

	msg, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv threads: %v", err)
	}
	threadsReq, ok := msg.(*dap.ThreadsRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.ThreadsRequest", msg)
	}
	if err := conn.Send(&dap.ThreadsResponse{
		Response: conn.RespondOK(threadsReq.Seq, "threads"),
		Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: threadID, Name: "main"}}},
	}); err != nil {
		t.Fatalf("send threads response: %v", err)
	}

	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv stackTrace: %v", err)
	}
	stReq, ok := msg.(*dap.StackTraceRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.StackTraceRequest", msg)
	}
	if err := conn.Send(&dap.StackTraceResponse{
		Response: conn.RespondOK(stReq.Seq, "stackTrace"),
		Body: dap.StackTraceResponseBody{StackFrames: []dap.StackFrame{
			{Id: frameID, Name: "main", Line: 10, Column: 1, Source: dap.Source{Path: "/tmp/main.go"}},
		}},
	}); err != nil {
		t.Fatalf("send stackTrace response: %v", err)
	}

	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv scopes: %v", err)
	}
	scReq, ok := msg.(*dap.ScopesRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.ScopesRequest", msg)
	}
	if err := conn.Send(&dap.ScopesResponse{
		Response: conn.RespondOK(scReq.Seq, "scopes"),
		Body:     dap.ScopesResponseBody{Scopes: []dap.Scope{{Name: "Locals", VariablesReference: varsRef}}},
	}); err != nil {
		t.Fatalf("send scopes response: %v", err)
	}

	msg, err = conn.Recv()
	if err != nil {
		t.Fatalf("recv variables: %v", err)
	}
	varsReq, ok := msg.(*dap.VariablesRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.VariablesRequest", msg)
	}
	if varsReq.Arguments.VariablesReference != varsRef {
		t.Fatalf("variables request ref = %d, want %d", varsReq.Arguments.VariablesReference, varsRef)
	}
	if err := conn.Send(&dap.VariablesResponse{
		Response: conn.RespondOK(varsReq.Seq, "variables"),
		Body:     dap.VariablesResponseBody{Variables: []dap.Variable{{Name: "a", Value: "10", Type: "int"}}},
	}); err != nil {
		t.Fatalf("send variables response: %v", err)
	}
}

func testParams(addr string) Params {
	return Params{
		Endpoint:         addr,
		Config:           launchconfig.Configuration{Name: "test", Type: "go", Request: "launch", Program: "/tmp/main.go"},
		HandshakeTimeout: 5 * time.Second,
	}
}

func TestNewReachesFirstStop(t *testing.T) {
	srv, err := daptest.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	connCh := make(chan *daptest.Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		connCh <- c
	}()

	var sess *Session
	var res Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		sess, res, err = New(testParams(srv.Addr()))
		if err != nil {
			t.Errorf("New: %v", err)
		}
	}()

	conn := <-connCh
	defer conn.Close()

	driveHandshake(t, conn, 1)
	driveStopFanout(t, conn, 1, 100)

	<-done
	if res.Terminated {
		t.Fatalf("expected a paused snapshot, got terminated: %v", res.Err)
	}
	if res.Snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if res.Snapshot.PausedThreadID != 1 {
		t.Errorf("PausedThreadID = %d, want 1", res.Snapshot.PausedThreadID)
	}
	frames := res.Snapshot.StackPerThread[1]
	if len(frames) != 1 || frames[0].Name != "main" {
		t.Errorf("unexpected frames: %+v", frames)
	}
	sess.Close()
}

func TestNewReachesFirstStopWithVariables(t *testing.T) {
	srv, err := daptest.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	connCh := make(chan *daptest.Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		connCh <- c
	}()

	var sess *Session
	var res Result
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		sess, res, err = New(testParams(srv.Addr()))
		if err != nil {
			t.Errorf("New: %v", err)
		}
	}()

	conn := <-connCh
	defer conn.Close()

	const varsRef = 1000
	driveHandshake(t, conn, 1)
	driveStopFanoutWithVariables(t, conn, 1, 100, varsRef)

	<-done
	if res.Terminated {
		t.Fatalf("expected a paused snapshot, got terminated: %v", res.Err)
	}

	vars, ok := res.Snapshot.VariablesPerRef[varsRef]
	if !ok {
		t.Fatalf("no variables recorded for ref %d, got %+v", varsRef, res.Snapshot.VariablesPerRef)
	}
	if len(vars) != 1 || vars[0].Name != "a" || vars[0].Value != "10" {
		t.Fatalf("unexpected variables for ref %d: %+v", varsRef, vars)
	}
	sess.Close()
}

func TestResumeToTermination(t *testing.T) {
	srv, err := daptest.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	connCh := make(chan *daptest.Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		connCh <- c
	}()

	var sess *Session
	done := make(chan struct{})
	go func() {
		defer close(done)
		var err error
		sess, _, err = New(testParams(srv.Addr()))
		if err != nil {
			t.Errorf("New: %v", err)
		}
	}()

	conn := <-connCh
	defer conn.Close()

	driveHandshake(t, conn, 1)
	driveStopFanout(t, conn, 1, 100)
	<-done

	resumeDone := make(chan Result, 1)
	go func() { resumeDone <- sess.Resume() }()

	msg, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv continue: %v", err)
	}
	contReq, ok := msg.(*dap.ContinueRequest)
	if !ok {
		t.Fatalf("got %T, want *dap.ContinueRequest", msg)
	}
	if err := conn.Send(&dap.ContinueResponse{Response: conn.RespondOK(contReq.Seq, "continue")}); err != nil {
		t.Fatalf("send continue response: %v", err)
	}
	if err := conn.Send(&dap.TerminatedEvent{Event: conn.Event("terminated")}); err != nil {
		t.Fatalf("send terminated event: %v", err)
	}

	res := <-resumeDone
	if !res.Terminated {
		t.Fatalf("expected Terminated, got %+v", res)
	}

	// P6: resuming again after termination returns the same marker without
	// talking to the adapter again.
	again := sess.Resume()
	if !again.Terminated {
		t.Fatalf("expected cached Terminated result, got %+v", again)
	}
}

func TestFailedHandshake(t *testing.T) {
	srv, err := daptest.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	connCh := make(chan *daptest.Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		connCh <- c
	}()

	errCh := make(chan error, 1)
	go func() {
		_, _, err := New(testParams(srv.Addr()))
		errCh <- err
	}()

	conn := <-connCh
	defer conn.Close()

	msg, err := conn.Recv()
	if err != nil {
		t.Fatalf("recv initialize: %v", err)
	}
	initReq := msg.(*dap.InitializeRequest)
	if err := conn.Send(&dap.InitializeResponse{
		Response: conn.RespondFail(initReq.Seq, "initialize", "adapter refused"),
	}); err != nil {
		t.Fatalf("send failed initialize response: %v", err)
	}

	if err := <-errCh; err == nil {
		t.Fatal("expected New to fail")
	}
}
