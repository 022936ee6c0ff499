// Package tokens estimates token counts for usage metrics.
package tokens

import (
	"errors"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/chat-proxy/internal/chat"
)

// Counter counts tokens with the model's BPE encoding. When no encoding can be
// loaded (unknown model, offline host) it falls back to len/4.
type Counter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	load      func(model string) (*tiktoken.Tiktoken, error)
}

func NewCounter() *Counter {
	return &Counter{
		encodings: make(map[string]*tiktoken.Tiktoken),
		load:      tiktoken.EncodingForModel,
	}
}

// NewEstimator returns a Counter that never loads encodings and always uses
// the len/4 estimate.
func NewEstimator() *Counter {
	c := NewCounter()
	c.load = func(string) (*tiktoken.Tiktoken, error) {
		return nil, errors.New("tokens: encodings disabled")
	}
	return c
}

// Warm loads the encoding for model ahead of the first request and reports
// whether a real encoding is available.
func (c *Counter) Warm(model string) bool {
	return c.encoding(model) != nil
}

func (c *Counter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[model]; ok {
		return enc
	}
	enc, err := c.load(model)
	if err != nil {
		enc = nil
	}
	// nil is cached too so a failing model is not retried per request.
	c.encodings[model] = enc
	return enc
}

func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return Estimate(text)
}

// CountMessages counts message contents only; per-message framing overhead is
// ignored.
func (c *Counter) CountMessages(model string, messages []chat.Message) int {
	total := 0
	for _, m := range messages {
		total += c.Count(model, m.Content)
	}
	return total
}

// Estimate is the rough four-bytes-per-token heuristic.
func Estimate(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		return 1
	}
	return n
}
