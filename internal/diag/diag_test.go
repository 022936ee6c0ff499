package diag

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/chat-proxy/internal/credential"
	"github.com/user/chat-proxy/internal/secrets"
)

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/hello", h.HelloGet)
	r.POST("/api/hello", h.HelloPost)
	r.GET("/api/env-test", h.EnvTest)
	return r
}

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestHelloGet(t *testing.T) {
	r := newRouter(NewHandler(fakeEnv(nil), nil))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/hello", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Hello from GET"}`, w.Body.String())
}

func TestHelloPost(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{name: "JSON Object", contentType: "application/json", body: `{"a":1,"b":["x"]}`, want: `{"a":1,"b":["x"]}`},
		{name: "JSON With Charset", contentType: "application/json; charset=utf-8", body: `[1,2]`, want: `[1,2]`},
		{name: "Malformed JSON", contentType: "application/json", body: `{"a":`, want: `{}`},
		{name: "Empty Body", contentType: "application/json", body: ``, want: `{}`},
		{name: "Not JSON", contentType: "text/plain", body: `{"a":1}`, want: `{}`},
	}
	r := newRouter(NewHandler(fakeEnv(nil), nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/hello", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var out map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
			assert.JSONEq(t, `"Hello from POST"`, string(out["message"]))
			assert.JSONEq(t, tt.want, string(out["receivedData"]))
			assert.NotEmpty(t, out["timestamp"])
		})
	}
}

func TestEnvTest(t *testing.T) {
	store := secrets.NewMockStore()
	store.Secrets["openai-api-key"] = `{"openai-api-key":"sk-12345"}`
	failing := secrets.NewMockStore()
	failing.Err = secrets.ErrCredentialsProvider

	h := NewHandler(fakeEnv(map[string]string{
		"OPENAI_API_KEY": "sk-abcdefghij",
		"AWS_REGION":     "eu-west-1",
		"PATH":           "/usr/bin",
		"NODE_ENV":       "",
	}), map[string]credential.Resolver{
		"env":             credential.NewEnv(""),
		"secrets-manager": credential.NewSecretsManager(store, "openai-api-key", credential.FormatJSON),
		"parameter-store": credential.NewParameterStore(failing, "/amplify/shared/OPENAI_API_KEY"),
	})
	r := newRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/env-test?probe=credentials", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out envReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	assert.Equal(t, "[EXISTS - 13 chars]", out.Environment["OPENAI_API_KEY"])
	assert.Equal(t, "eu-west-1", out.Environment["AWS_REGION"])
	assert.Equal(t, "/usr/bin", out.Environment["PATH"])
	assert.Equal(t, "[NOT SET]", out.Environment["NODE_ENV"])
	assert.Equal(t, "[NOT SET]", out.Environment["AWS_LAMBDA_FUNCTION_NAME"])
	assert.Len(t, out.Environment, len(EnvKeys))
	assert.NotContains(t, w.Body.String(), "sk-abcdefghij")
	assert.NotContains(t, w.Body.String(), "sk-12345")

	assert.Equal(t, "[EMPTY]", out.Credentials["env"])
	assert.Equal(t, "[EXISTS - 8 chars]", out.Credentials["secrets-manager"])
	assert.Equal(t, "[ERROR: "+credential.IAMHint+"]", out.Credentials["parameter-store"])

	assert.Equal(t, runtime.GOOS, out.Process.Platform)
	assert.Equal(t, runtime.GOARCH, out.Process.Arch)
	assert.Equal(t, runtime.Version(), out.Process.Version)
	assert.NotZero(t, out.Process.PID)
	assert.NotEmpty(t, out.Process.Cwd)
	assert.NotZero(t, out.Process.MemoryUsage.Sys)
	assert.NotEmpty(t, out.Timestamp)
}

func TestEnvTest_NoProbeByDefault(t *testing.T) {
	store := secrets.NewMockStore()
	h := NewHandler(fakeEnv(nil), map[string]credential.Resolver{
		"secrets-manager": credential.NewSecretsManager(store, "openai-api-key", credential.FormatJSON),
	})
	r := newRouter(h)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/env-test", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotContains(t, out, "credentials")
	assert.Contains(t, out, "environment")
	assert.Equal(t, 0, store.Calls, "secret stores are only called on ?probe=credentials")
}

func TestSensitive(t *testing.T) {
	assert.True(t, Sensitive("OPENAI_API_KEY"))
	assert.True(t, Sensitive("DB_PASSWORD"))
	assert.True(t, Sensitive("SESSION_TOKEN"))
	assert.True(t, Sensitive("CLIENT_SECRET"))
	assert.False(t, Sensitive("AWS_REGION"))
	assert.False(t, Sensitive("PATH"))
}

func TestCredentialNames(t *testing.T) {
	h := NewHandler(nil, map[string]credential.Resolver{
		"literal": credential.NewLiteral("x"),
		"env":     credential.NewEnv("y"),
	})
	assert.Equal(t, []string{"env", "literal"}, h.CredentialNames())
}
