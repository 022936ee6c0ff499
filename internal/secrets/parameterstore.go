package secrets

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the part of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStore reads SecureString parameters, which is where Amplify keeps
// values declared with secret().
type ParameterStore struct {
	api ssmAPI
}

func NewParameterStore(api ssmAPI) (*ParameterStore, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &ParameterStore{api: api}, nil
}

func (s *ParameterStore) GetSecret(ctx context.Context, id string) (string, error) {
	if s.api == nil {
		return "", errors.New("paramstore: store not initialized")
	}
	id, err := normalizeID("paramstore", id)
	if err != nil {
		return "", err
	}

	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(id),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", wrap("paramstore", id, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}
