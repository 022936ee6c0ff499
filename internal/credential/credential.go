// Package credential decides where the OpenAI API key for a request comes
// from. A route is built with exactly one Resolver; resolution happens once per
// request and is never cached or retried.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/chat-proxy/internal/secrets"
)

type Strategy string

const (
	StrategyEnv            Strategy = "env"
	StrategySecretsManager Strategy = "secrets-manager"
	StrategyParameterStore Strategy = "parameter-store"
	StrategyLiteral        Strategy = "literal"
)

// Resolver yields the API key for one request.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
	Strategy() Strategy
}

// ErrUnavailable is matched by every resolution failure.
var ErrUnavailable = errors.New("credential unavailable")

// Error wraps a resolution failure with the strategy that produced it.
type Error struct {
	Strategy Strategy
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("credential: %s: %v", e.Strategy, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// IAMHint replaces credentials-provider failures so the operator knows which
// permissions or variables are missing.
const IAMHint = "AWS credentials not found. When deployed, ensure the function has an IAM role with " +
	"secretsmanager:GetSecretValue permissions. For local development, set AWS_ACCESS_KEY_ID and " +
	"AWS_SECRET_ACCESS_KEY environment variables."

// Message renders err for the client. Credentials-provider failures become
// IAMHint; everything else is the error text.
func Message(err error) string {
	if errors.Is(err, secrets.ErrCredentialsProvider) {
		return IAMHint
	}
	return err.Error()
}

// Env returns the key captured from configuration at startup. An empty key is
// returned as is; the provider reports it as missing.
type Env struct {
	key string
}

func NewEnv(key string) *Env { return &Env{key: key} }

func (e *Env) Resolve(context.Context) (string, error) { return e.key, nil }

func (e *Env) Strategy() Strategy { return StrategyEnv }

// HardcodedAPIKey is the placeholder used by the literal strategy. It can be
// replaced at link time with -ldflags "-X ...credential.HardcodedAPIKey=sk-...".
var HardcodedAPIKey = "YOUR_OPENAI_API_KEY_HERE"

// Literal returns a key compiled into the binary. Diagnostics only.
type Literal struct {
	key string
}

func NewLiteral(key string) *Literal { return &Literal{key: key} }

func (l *Literal) Resolve(context.Context) (string, error) { return l.key, nil }

func (l *Literal) Strategy() Strategy { return StrategyLiteral }

type Format string

const (
	// FormatJSON payloads are objects keyed by the secret identifier, the
	// layout the Secrets Manager console produces for key/value secrets.
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// Store resolves the key through a secrets.Store with a fixed identifier.
type Store struct {
	store    secrets.Store
	id       string
	format   Format
	strategy Strategy
}

func NewSecretsManager(store secrets.Store, id string, format Format) *Store {
	return &Store{store: store, id: id, format: format, strategy: StrategySecretsManager}
}

func NewParameterStore(store secrets.Store, id string) *Store {
	return &Store{store: store, id: id, format: FormatPlain, strategy: StrategyParameterStore}
}

func (s *Store) Strategy() Strategy { return s.strategy }

func (s *Store) Resolve(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", &Error{Strategy: s.strategy, Err: errors.New("secret store not configured")}
	}
	payload, err := s.store.GetSecret(ctx, s.id)
	if err != nil {
		return "", &Error{Strategy: s.strategy, Err: err}
	}
	if s.format == FormatPlain {
		return payload, nil
	}
	return extractKey(payload, s.id), nil
}

// extractKey pulls id out of a JSON object payload. Anything that is not an
// object holding a string under id yields "".
func extractKey(payload, id string) string {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return ""
	}
	v, _ := parsed[id].(string)
	return v
}
