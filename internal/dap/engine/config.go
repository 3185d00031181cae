package engine

import "time"

// Config carries everything the engine needs to drive the handshake. It is
// built by the session façade from the caller's parameters and the parsed
// launch configuration.
type Config struct {
	AdapterID  string
	ClientName string

	// RequestKind is "launch" or "attach", taken from the selected launch
	// configuration's `request` field.
	RequestKind string
	// LaunchArgs/AttachArgs are forwarded to the adapter verbatim as the
	// `arguments` of the launch/attach request (opaque JSON passthrough —
	// spec design note on dynamic JSON bodies).
	LaunchArgs map[string]interface{}
	AttachArgs map[string]interface{}

	// Breakpoints maps a source file path to the line numbers to set in it.
	Breakpoints map[string][]int
	// FunctionBreakpoints names functions to break on entry to.
	FunctionBreakpoints []string

	// HandshakeTimeout, if non-zero, bounds how long the engine waits for
	// the handshake to reach Running (configurationDone acknowledged) or
	// Stopped before failing with HandshakeTimeoutErr (spec §5, recommended
	// default 30s). The wait for the first stop after Running is unbounded.
	HandshakeTimeout time.Duration

	// MaxVariableExpandDepth bounds recursive expansion of nested
	// structured variables beyond the scope-triggered first level. 0 means
	// the first level only (no further eager expansion); deeper values are
	// not fetched, and only their VariablesReference appears in the snapshot.
	MaxVariableExpandDepth int
}

func (c Config) withDefaults() Config {
	if c.AdapterID == "" {
		c.AdapterID = "dap-gui"
	}
	if c.ClientName == "" {
		c.ClientName = "DAP GUI"
	}
	if c.RequestKind == "" {
		c.RequestKind = "launch"
	}
	return c
}
