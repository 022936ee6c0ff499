// Package chat holds the conversation types exchanged between the browser UI,
// the request handlers and the completion provider.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is the POST body accepted by every chat route.
type Request struct {
	Messages []Message `json:"messages"`
}

var (
	ErrInvalidJSON     = errors.New("chat: request body is not valid JSON")
	ErrMissingMessages = errors.New("chat: messages field is required")
)

// InvalidMessageError reports the first message that failed validation.
type InvalidMessageError struct {
	Index  int
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("chat: message %d: %s", e.Index, e.Reason)
}

// DecodeRequest parses and validates a chat request body. Message order and
// content are returned untouched.
func DecodeRequest(body []byte) (*Request, error) {
	var raw struct {
		Messages *[]Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if raw.Messages == nil {
		return nil, ErrMissingMessages
	}

	req := &Request{Messages: *raw.Messages}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *Request) Validate() error {
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return &InvalidMessageError{Index: i, Reason: fmt.Sprintf("unknown role %q", m.Role)}
		}
	}
	return nil
}

// Preview renders messages as JSON cut to limit characters, for logs.
func Preview(messages []Message, limit int) string {
	b, err := json.Marshal(messages)
	if err != nil {
		return "<unprintable>"
	}
	s := string(b)
	if len(s) <= limit {
		return s
	}
	return strings.ToValidUTF8(s[:limit], "") + "..."
}
