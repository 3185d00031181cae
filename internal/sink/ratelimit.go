package sink

import (
	"golang.org/x/time/rate"
)

// RateLimited wraps a Sink so bursts of `output` events (a debuggee in a
// tight print loop) can't monopolize whatever is consuming subscriber
// channels downstream.
type RateLimited struct {
	inner   *Sink
	limiter *rate.Limiter
}

// NewRateLimited wraps sink with a limiter allowing linesPerSecond sustained
// with the given burst.
func NewRateLimited(sink *Sink, linesPerSecond float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   sink,
		limiter: rate.NewLimiter(rate.Limit(linesPerSecond), burst),
	}
}

// Write implements engine.OutputSink. Lines exceeding the rate are dropped
// rather than buffered, since the debuggee's output cadence is outside our
// control and blocking here would stall the engine goroutine.
func (r *RateLimited) Write(category, text string) {
	if !r.limiter.Allow() {
		return
	}
	r.inner.Write(category, text)
}

// History and Subscribe pass through to the wrapped Sink.
func (r *RateLimited) History() []Line                 { return r.inner.History() }
func (r *RateLimited) Subscribe() (string, <-chan Line) { return r.inner.Subscribe() }
func (r *RateLimited) Unsubscribe(id string)            { r.inner.Unsubscribe(id) }
