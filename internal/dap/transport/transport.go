// Package transport owns the TCP connection to the debug adapter: a
// half-duplex send path guarded by a mutex and a background reader that
// feeds decoded messages to a channel consumed by the protocol engine. The
// channel is bounded (64 messages); when it is full the reader blocks until
// the engine drains it, so no message is dropped.
package transport

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/go-dap"

	"github.com/dapgui/dapgui/internal/dap/frame"
)

// Dialer opens the byte-stream connection to the adapter. The default is a
// plain net.Dial("tcp", addr); internal/sshtunnel supplies an alternative
// that tunnels through an SSH jump host.
type Dialer func(addr string) (net.Conn, error)

// DialTCP is the default Dialer.
func DialTCP(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

// Transport is a single connection to a debug adapter.
type Transport struct {
	conn net.Conn
	log  *slog.Logger

	sendMu sync.Mutex

	messages chan dap.Message
	closeErr error
	closeMu  sync.Mutex
	once     sync.Once
}

// Dial connects to addr using dial and starts the background reader.
func Dial(addr string, dial Dialer, logger *slog.Logger) (*Transport, error) {
	if dial == nil {
		dial = DialTCP
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	t := &Transport{
		conn:     conn,
		log:      logger,
		messages: make(chan dap.Message, 64),
	}
	go t.readLoop()
	return t, nil
}

// Send blocks until the full encoded frame has been written. Safe to call
// concurrently; writes are serialized.
func (t *Transport) Send(message dap.Message) error {
	encoded, err := frame.Encode(message)
	if err != nil {
		return fmt.Errorf("encode outgoing message: %w", err)
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if _, err := t.conn.Write(encoded); err != nil {
		return fmt.Errorf("write to adapter: %w", err)
	}
	return nil
}

// Messages returns the channel of decoded inbound messages. It is closed
// when the peer disconnects or a hard socket/protocol error occurs; Err
// then reports the reason (nil on a clean EOF).
func (t *Transport) Messages() <-chan dap.Message {
	return t.messages
}

// Err reports the reason the message channel closed. Only meaningful after
// a receive on Messages() has returned !ok.
func (t *Transport) Err() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closeErr
}

// Close closes the underlying connection, unblocking the reader.
func (t *Transport) Close() error {
	return t.conn.Close()
}

func (t *Transport) readLoop() {
	defer t.once.Do(func() { close(t.messages) })

	var dec frame.Decoder
	buf := make([]byte, 32*1024)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			msgs, decErr := dec.Feed(buf[:n])
			for _, m := range msgs {
				t.messages <- m
			}
			if decErr != nil {
				t.setErr(fmt.Errorf("framing error: %w", decErr))
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				t.setErr(fmt.Errorf("read from adapter: %w", err))
			}
			return
		}
	}
}

func (t *Transport) setErr(err error) {
	t.closeMu.Lock()
	t.closeErr = err
	t.closeMu.Unlock()
	t.log.Debug("transport reader stopping", "error", err)
}
