// Package sink collects `output` events from a debug session into a ring
// buffer and fans them out to live subscribers, the way internal/core/log's
// Streamer collects process log lines in the teacher repo.
package sink

import (
	"sync"

	"github.com/google/uuid"
)

// Line is one `output` event: its category ("stdout"/"stderr"/"console"/
// telemetry categories the adapter may emit) and text.
type Line struct {
	Category string
	Text     string
}

// Sink is an engine.OutputSink that retains the last N lines and fans each
// new one out to subscribers.
type Sink struct {
	mu         sync.RWMutex
	buffer     []Line
	bufferSize int
	head       int
	count      int

	subMu       sync.RWMutex
	subscribers map[string]chan Line
}

// New creates a Sink retaining up to bufferSize lines (0 means 1000).
func New(bufferSize int) *Sink {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Sink{
		buffer:      make([]Line, bufferSize),
		bufferSize:  bufferSize,
		subscribers: make(map[string]chan Line),
	}
}

// Write implements engine.OutputSink.
func (s *Sink) Write(category, text string) {
	line := Line{Category: category, Text: text}

	s.mu.Lock()
	s.buffer[s.head] = line
	s.head = (s.head + 1) % s.bufferSize
	if s.count < s.bufferSize {
		s.count++
	}
	s.mu.Unlock()

	s.notify(line)
}

// History returns every retained line, oldest first.
func (s *Sink) History() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Line, 0, s.count)
	start := 0
	if s.count == s.bufferSize {
		start = s.head
	}
	for i := 0; i < s.count; i++ {
		out = append(out, s.buffer[(start+i)%s.bufferSize])
	}
	return out
}

// Subscribe registers a new live listener, returning its ID (for
// Unsubscribe) and a channel of lines written from this point on. The
// channel is buffered; a slow subscriber drops lines rather than blocking
// the engine goroutine that calls Write.
func (s *Sink) Subscribe() (string, <-chan Line) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := uuid.New().String()
	ch := make(chan Line, 256)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (s *Sink) Unsubscribe(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

func (s *Sink) notify(line Line) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			// subscriber too slow, drop rather than block the engine
		}
	}
}
