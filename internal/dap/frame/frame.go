// Package frame implements the DAP wire framing: an HTTP-style
// "Content-Length: N\r\n\r\n" header followed by N bytes of UTF-8 JSON.
//
// Decoding is pull-based and resumable: Feed accepts whatever bytes a read
// produced, however short, and returns every complete message it can extract
// plus keeps the remainder buffered for the next Feed call. This is what
// lets the transport hand it raw socket reads of arbitrary size without
// losing state across reads.
package frame

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-dap"
)

const contentLengthHeader = "Content-Length:"

// Encode serializes a message as a complete framed wire message.
func Encode(message dap.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := dap.WriteProtocolMessage(&buf, message); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// Decoder accumulates bytes across reads and extracts complete frames.
// The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// Feed appends chunk to the internal buffer and extracts every complete
// frame now available. Bytes belonging to an incomplete trailing frame are
// retained for the next call. Returns an error (and stops extracting
// further frames) on a malformed header or body.
func (d *Decoder) Feed(chunk []byte) ([]dap.Message, error) {
	if len(chunk) > 0 {
		d.buf = append(d.buf, chunk...)
	}

	var messages []dap.Message
	for {
		frameLen, headerLen, contentLen, ok, err := scanFrame(d.buf)
		if err != nil {
			return messages, err
		}
		if !ok {
			return messages, nil
		}

		body := d.buf[headerLen : headerLen+contentLen]
		msg, err := decodeFrame(d.buf[:frameLen], body)
		if err != nil {
			return messages, err
		}
		messages = append(messages, msg)
		d.buf = d.buf[frameLen:]
	}
}

// Buffered returns the number of residual bytes held for the next frame.
func (d *Decoder) Buffered() int { return len(d.buf) }

// scanFrame looks for one complete header+body frame at the start of buf.
// ok is false when more bytes are needed; this never consumes buf, so a
// caller can retry after feeding more data without losing state.
func scanFrame(buf []byte) (frameLen, headerLen, contentLen int, ok bool, err error) {
	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return 0, 0, 0, false, nil
	}
	headerLen = headerEnd + 4

	contentLen = -1
	for _, line := range strings.Split(string(buf[:headerEnd]), "\r\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, contentLengthHeader) {
			// Additional headers are tolerated on decode.
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, contentLengthHeader))
		n, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, 0, 0, false, fmt.Errorf("malformed Content-Length %q: %w", value, convErr)
		}
		contentLen = n
	}
	if contentLen < 0 {
		return 0, 0, 0, false, fmt.Errorf("missing Content-Length header")
	}
	if contentLen == 0 {
		return 0, 0, 0, false, fmt.Errorf("zero-length body")
	}

	if len(buf) < headerLen+contentLen {
		return 0, 0, 0, false, nil
	}

	return headerLen + contentLen, headerLen, contentLen, true, nil
}

// decodeFrame re-presents an already-extracted, complete frame to go-dap's
// own reader so the JSON body is dispatched to the correct concrete message
// type. The frame is known-complete (scanFrame already validated it), so
// this never blocks on I/O.
func decodeFrame(frame, body []byte) (dap.Message, error) {
	if !bytes.Contains(body, []byte("{")) && !bytes.Contains(body, []byte("[")) {
		return nil, fmt.Errorf("body is not a JSON object")
	}
	msg, err := dap.ReadProtocolMessage(bufio.NewReader(bytes.NewReader(frame)))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return msg, nil
}
