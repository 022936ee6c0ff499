// Package envelope holds the JSON shapes shared by every route's responses.
package envelope

import (
	"runtime/debug"
	"time"
)

// Error is the body of every failed request.
type Error struct {
	Error     string `json:"error"`
	Stack     string `json:"stack,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Completion is the body of a buffered chat response.
type Completion struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Echo is returned by routes that acknowledge a conversation without calling
// the provider.
type Echo struct {
	Message          string `json:"message"`
	ReceivedMessages int    `json:"receivedMessages"`
	Timestamp        string `json:"timestamp"`
}

// StreamFallback reports a stream that could not be started, as a 200.
type StreamFallback struct {
	Message        string `json:"message"`
	StreamingError string `json:"streamingError"`
	Timestamp      string `json:"timestamp"`
}

// Timestamp renders now in the ISO-8601 form the browser UI expects.
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func NewError(msg string) Error {
	return Error{Error: msg, Timestamp: Timestamp()}
}

// WithStack attaches the current goroutine's stack. It exposes internals to the
// client and is only used on routes configured for verbose errors.
func (e Error) WithStack() Error {
	e.Stack = string(debug.Stack())
	return e
}

func (e Error) WithPhase(phase string) Error {
	e.Phase = phase
	return e
}
