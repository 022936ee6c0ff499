package secrets

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsManagerAPI is the part of *secretsmanager.Client used here.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type SecretsManagerStore struct {
	api secretsManagerAPI
}

func NewSecretsManagerStore(api secretsManagerAPI) (*SecretsManagerStore, error) {
	if api == nil {
		return nil, errors.New("secretsmanager: api must not be nil")
	}
	return &SecretsManagerStore{api: api}, nil
}

func (s *SecretsManagerStore) GetSecret(ctx context.Context, id string) (string, error) {
	if s.api == nil {
		return "", errors.New("secretsmanager: store not initialized")
	}
	id, err := normalizeID("secretsmanager", id)
	if err != nil {
		return "", err
	}

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", wrap("secretsmanager", id, err)
	}
	if out == nil || out.SecretString == nil {
		return "", errors.New("secretsmanager: secret value is not a string")
	}
	return *out.SecretString, nil
}
