package transport

import (
	"testing"
	"time"

	"github.com/google/go-dap"

	"github.com/dapgui/dapgui/internal/dap/daptest"
)

func TestSendAndReceiveRoundTrip(t *testing.T) {
	srv, err := daptest.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	connCh := make(chan *daptest.Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			return
		}
		connCh <- c
	}()

	tr, err := Dial(srv.Addr(), nil, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	serverConn := <-connCh
	defer serverConn.Close()

	req := &dap.ThreadsRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
			Command:         "threads",
		},
	}
	if err := tr.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := serverConn.Recv()
	if err != nil {
		t.Fatalf("server recv: %v", err)
	}
	threadsReq, ok := got.(*dap.ThreadsRequest)
	if !ok || threadsReq.Seq != 1 {
		t.Fatalf("got %+v, want seq=1 threads request", got)
	}

	if err := serverConn.Send(&dap.ThreadsResponse{
		Response: serverConn.RespondOK(1, "threads"),
		Body:     dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: 1, Name: "main"}}},
	}); err != nil {
		t.Fatalf("server send: %v", err)
	}

	select {
	case msg := <-tr.Messages():
		resp, ok := msg.(*dap.ThreadsResponse)
		if !ok || len(resp.Body.Threads) != 1 {
			t.Fatalf("got %+v, want a threads response with one thread", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

func TestMessagesClosesOnPeerDisconnect(t *testing.T) {
	srv, err := daptest.Listen()
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Close()

	connCh := make(chan *daptest.Conn, 1)
	go func() {
		c, err := srv.Accept()
		if err != nil {
			return
		}
		connCh <- c
	}()

	tr, err := Dial(srv.Addr(), nil, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	serverConn := <-connCh
	serverConn.Close()

	select {
	case _, ok := <-tr.Messages():
		if ok {
			t.Fatal("expected channel to close on peer disconnect")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
	if tr.Err() != nil {
		t.Fatalf("expected a clean EOF close, got %v", tr.Err())
	}
}
