package llm

import (
	"context"
	"io"
	"sync"

	"github.com/user/chat-proxy/internal/chat"
)

// MockClient is a scripted Client for tests.
type MockClient struct {
	mu sync.Mutex

	Response string
	Chunks   []string
	// CompleteErr fails Complete; StreamErr fails stream start; RecvErr is
	// returned after Chunks are drained instead of io.EOF.
	CompleteErr error
	StreamErr   error
	RecvErr     error

	Calls    int
	Model    string
	Messages []chat.Message
}

func (m *MockClient) record(model string, messages []chat.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Model = model
	m.Messages = messages
}

func (m *MockClient) Complete(ctx context.Context, model string, messages []chat.Message) (string, error) {
	m.record(model, messages)
	if m.CompleteErr != nil {
		return "", m.CompleteErr
	}
	return m.Response, nil
}

func (m *MockClient) Stream(ctx context.Context, model string, messages []chat.Message) (Stream, error) {
	m.record(model, messages)
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	return &mockStream{chunks: append([]string(nil), m.Chunks...), err: m.RecvErr}, nil
}

type mockStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *mockStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

// MockFactory hands out Client and records the keys it was asked for. Err, when
// set, fails client construction.
type MockFactory struct {
	mu     sync.Mutex
	Client Client
	Err    error
	Keys   []string
}

func (f *MockFactory) Build(apiKey string) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Keys = append(f.Keys, apiKey)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Client, nil
}
