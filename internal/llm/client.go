// Package llm is the boundary to the chat-completion provider.
package llm

import (
	"context"
	"errors"

	"github.com/user/chat-proxy/internal/chat"
)

// Client runs completions against a single model provider with one credential.
type Client interface {
	// Complete waits for the whole answer.
	Complete(ctx context.Context, model string, messages []chat.Message) (string, error)
	// Stream starts an incremental completion. Errors returned here happened
	// before any output was produced.
	Stream(ctx context.Context, model string, messages []chat.Message) (Stream, error)
}

// Stream yields text chunks. Recv returns io.EOF once the provider is done.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Factory builds a Client scoped to apiKey.
type Factory func(apiKey string) (Client, error)

var ErrMissingAPIKey = errors.New("OpenAI API key is missing. Set OPENAI_API_KEY or configure a secret store for this route")
