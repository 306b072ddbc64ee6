package types

// StreamEventType discriminates streamed routing/execution events.
type StreamEventType string

const (
	EventRouting  StreamEventType = "routing"
	EventDelta    StreamEventType = "delta"
	EventFallback StreamEventType = "fallback"
	EventDone     StreamEventType = "done"
	EventError    StreamEventType = "error"
)

// StreamEvent is one element of the ordered event sequence produced by a
// streaming execution: exactly one routing event first, then zero or more
// deltas, optionally interleaved with fallback events, terminated by exactly
// one done or error event.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// routing
	Routing       *RoutingInfo `json:"routing,omitempty"`
	FallbackChain []string     `json:"fallbackChain,omitempty"`

	// delta and done
	Content string `json:"content,omitempty"`

	// fallback
	From   string        `json:"from,omitempty"`
	Reason FailureReason `json:"reason,omitempty"`

	// done
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// IsTerminal reports whether the event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
