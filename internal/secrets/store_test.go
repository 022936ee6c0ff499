package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManager struct {
	out    *secretsmanager.GetSecretValueOutput
	err    error
	lastID string
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.lastID = aws.ToString(in.SecretId)
	return f.out, f.err
}

type fakeSSM struct {
	out           *ssm.GetParameterOutput
	err           error
	lastName      string
	withDecryptOn bool
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.lastName = aws.ToString(in.Name)
	f.withDecryptOn = aws.ToBool(in.WithDecryption)
	return f.out, f.err
}

func TestSecretsManagerStore_HappyPath(t *testing.T) {
	api := &fakeSecretsManager{out: &secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"openai-api-key":"sk-123"}`),
	}}
	store, err := NewSecretsManagerStore(api)
	require.NoError(t, err)

	v, err := store.GetSecret(context.Background(), " openai-api-key ")
	require.NoError(t, err)
	assert.Equal(t, `{"openai-api-key":"sk-123"}`, v)
	assert.Equal(t, "openai-api-key", api.lastID)
}

func TestSecretsManagerStore_BinarySecret(t *testing.T) {
	api := &fakeSecretsManager{out: &secretsmanager.GetSecretValueOutput{SecretBinary: []byte{1, 2}}}
	store, err := NewSecretsManagerStore(api)
	require.NoError(t, err)

	_, err = store.GetSecret(context.Background(), "id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a string")
}

func TestSecretsManagerStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "Not Found",
			err:  &smtypes.ResourceNotFoundException{Message: aws.String("no such secret")},
			want: ErrNotFound,
		},
		{
			name: "Access Denied",
			err:  &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"},
			want: ErrAccessDenied,
		},
		{
			name: "Missing Credentials",
			err:  errors.New("operation error Secrets Manager: GetSecretValue, failed to retrieve credentials: no EC2 IMDS role found"),
			want: ErrCredentialsProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewSecretsManagerStore(&fakeSecretsManager{err: tt.err})
			require.NoError(t, err)

			_, err = store.GetSecret(context.Background(), "openai-api-key")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestSecretsManagerStore_UnclassifiedError(t *testing.T) {
	store, err := NewSecretsManagerStore(&fakeSecretsManager{err: errors.New("boom")})
	require.NoError(t, err)

	_, err = store.GetSecret(context.Background(), "id")
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrCredentialsProvider)
}

func TestSecretsManagerStore_Guards(t *testing.T) {
	_, err := NewSecretsManagerStore(nil)
	require.Error(t, err)

	_, err = (&SecretsManagerStore{}).GetSecret(context.Background(), "id")
	require.ErrorContains(t, err, "not initialized")

	store, _ := NewSecretsManagerStore(&fakeSecretsManager{})
	_, err = store.GetSecret(context.Background(), "   ")
	require.ErrorContains(t, err, "required")
}

func TestParameterStore_HappyPath(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{
		Name:  aws.String("/amplify/shared/OPENAI_API_KEY"),
		Value: aws.String("sk-ssm"),
		Type:  ssmtypes.ParameterTypeSecureString,
	}}}
	store, err := NewParameterStore(api)
	require.NoError(t, err)

	v, err := store.GetSecret(context.Background(), "/amplify/shared/OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-ssm", v)
	assert.True(t, api.withDecryptOn)
}

func TestParameterStore_MissingValue(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Name: aws.String("p")}}}
	store, err := NewParameterStore(api)
	require.NoError(t, err)

	_, err = store.GetSecret(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestParameterStore_NotFound(t *testing.T) {
	api := &fakeSSM{err: &ssmtypes.ParameterNotFound{Message: aws.String("nope")}}
	store, err := NewParameterStore(api)
	require.NoError(t, err)

	_, err = store.GetSecret(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore(t *testing.T) {
	m := NewMockStore()
	m.Secrets["a"] = "b"

	v, err := m.GetSecret(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = m.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, m.Calls)
}

func TestSecretsManagerStore_RealCredentialChainFailure(t *testing.T) {
	var called bool
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer endpoint.Close()

	creds := aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{}, errors.New("no credentials in environment")
	}))
	client := secretsmanager.New(secretsmanager.Options{
		Region:           "us-east-1",
		Credentials:      creds,
		BaseEndpoint:     aws.String(endpoint.URL),
		RetryMaxAttempts: 1,
	})
	store, err := NewSecretsManagerStore(client)
	require.NoError(t, err)

	_, err = store.GetSecret(context.Background(), "openai-api-key")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialsProvider, err.Error())
	assert.False(t, called, "request must fail at signing, before reaching the endpoint")
}
