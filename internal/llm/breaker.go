package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/user/chat-proxy/internal/chat"
)

// NewBreaker returns the circuit breaker shared by every client a breaker
// factory builds. It trips after 60% failures over at least 10 requests.
// Build one per route: a route with a bad credential must not open the
// breaker for the others.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		IsSuccessful: providerHealthy,
	})
}

// providerHealthy reports whether err says nothing about the provider's
// health. Caller-side 4xx answers (bad key, bad request) and cancelled
// requests do not count against the breaker; 408 and 429 do.
func providerHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch code := StatusCode(err); {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return false
	case code >= 400 && code < 500:
		return true
	}
	return false
}

// WithBreaker wraps every client built by next so that completions and stream
// starts go through cb. An open breaker fails the call immediately; nothing is
// retried.
func WithBreaker(next Factory, cb *gobreaker.CircuitBreaker) Factory {
	return func(apiKey string) (Client, error) {
		client, err := next(apiKey)
		if err != nil {
			return nil, err
		}
		return &breakerClient{next: client, cb: cb}, nil
	}
}

type breakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

func (b *breakerClient) Complete(ctx context.Context, model string, messages []chat.Message) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, model, messages)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (b *breakerClient) Stream(ctx context.Context, model string, messages []chat.Message) (Stream, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Stream(ctx, model, messages)
	})
	if err != nil {
		return nil, err
	}
	return out.(Stream), nil
}
