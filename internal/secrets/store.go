// Package secrets reads string secrets from AWS-hosted secret stores.
//
// Callers depend on Store; the concrete stores wrap the minimal slice of the
// aws-sdk-go-v2 service clients they need so tests can substitute fakes.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Store resolves a secret identifier to its string payload.
type Store interface {
	GetSecret(ctx context.Context, id string) (string, error)
}

var (
	ErrNotFound     = errors.New("secret not found")
	ErrAccessDenied = errors.New("access denied")
	// ErrCredentialsProvider means the AWS SDK could not find credentials to
	// sign the request with at all.
	ErrCredentialsProvider = errors.New("aws credentials provider error")
)

var notFoundCodes = map[string]bool{
	"ResourceNotFoundException": true,
	"ParameterNotFound":         true,
}

var accessDeniedCodes = map[string]bool{
	"AccessDeniedException":       true,
	"AccessDenied":                true,
	"UnrecognizedClientException": true,
	"ExpiredTokenException":       true,
	"InvalidSignatureException":   true,
}

// classify maps an SDK error onto one of the package sentinels, or returns
// nil when the error fits none of them.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case notFoundCodes[code]:
			return ErrNotFound
		case accessDeniedCodes[code]:
			return ErrAccessDenied
		}
		return nil
	}

	// The SDK exposes no typed error for a broken credential chain. These are
	// the texts aws-sdk-go-v2 produces: "failed to retrieve credentials" from
	// the v4 signer middleware, "failed to refresh cached credentials" from
	// aws.CredentialsCache and "no EC2 IMDS role found" from the ec2rolecreds
	// provider. TestSecretsManagerStore_RealCredentialChainFailure pins them.
	msg := err.Error()
	if strings.Contains(msg, "failed to retrieve credentials") ||
		strings.Contains(msg, "failed to refresh cached credentials") ||
		strings.Contains(msg, "no EC2 IMDS role found") {
		return ErrCredentialsProvider
	}
	return nil
}

func wrap(store, id string, err error) error {
	if kind := classify(err); kind != nil {
		return fmt.Errorf("%s: get %q: %w: %w", store, id, kind, err)
	}
	return fmt.Errorf("%s: get %q: %w", store, id, err)
}

func normalizeID(store, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%s: secret id is required", store)
	}
	return id, nil
}
