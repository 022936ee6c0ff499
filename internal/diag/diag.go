// Package diag serves the deployment diagnostics routes: a liveness echo and
// an environment report that never reveals secret values.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/user/chat-proxy/internal/credential"
	"github.com/user/chat-proxy/internal/envelope"
	"github.com/user/chat-proxy/internal/middleware"
)

// EnvKeys are the variables reported by EnvTest, in output order.
var EnvKeys = []string{
	"OPENAI_API_KEY",
	"NODE_ENV",
	"VERCEL_ENV",
	"AWS_REGION",
	"AWS_LAMBDA_FUNCTION_NAME",
	"AWS_LAMBDA_FUNCTION_VERSION",
	"AWS_LAMBDA_FUNCTION_MEMORY_SIZE",
	"AWS_EXECUTION_ENV",
	"PATH",
}

const (
	notSet          = "[NOT SET]"
	maxHelloBody    = 1 << 20
	credentialProbe = 5 * time.Second
)

type Handler struct {
	lookup      func(string) (string, bool)
	credentials map[string]credential.Resolver
}

// NewHandler builds the diagnostics handler. lookup defaults to os.LookupEnv;
// credentials are probed by EnvTest with ?probe=credentials and reported by
// length only.
func NewHandler(lookup func(string) (string, bool), credentials map[string]credential.Resolver) *Handler {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Handler{lookup: lookup, credentials: credentials}
}

func (h *Handler) HelloGet(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from GET"})
}

// HelloPost echoes a JSON body back. Anything that is not a parseable JSON
// body is reported as an empty object.
func (h *Handler) HelloPost(c *gin.Context) {
	logger := middleware.Logger(c)
	logger.Info("Hello POST request received")

	var data any = map[string]any{}
	if strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxHelloBody))
		var parsed any
		if err == nil {
			err = json.Unmarshal(body, &parsed)
		}
		if err != nil {
			logger.Info("No JSON body or error parsing body", "error", err)
		} else {
			data = parsed
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Hello from POST",
		"receivedData": data,
		"timestamp":    envelope.Timestamp(),
	})
}

type processInfo struct {
	Platform    string            `json:"platform"`
	Arch        string            `json:"arch"`
	Version     string            `json:"version"`
	Versions    map[string]string `json:"versions"`
	Cwd         string            `json:"cwd"`
	ExecPath    string            `json:"execPath"`
	PID         int               `json:"pid"`
	PPID        int               `json:"ppid"`
	MemoryUsage memoryUsage       `json:"memoryUsage"`
}

type memoryUsage struct {
	Sys        uint64 `json:"sys"`
	HeapAlloc  uint64 `json:"heapAlloc"`
	HeapInuse  uint64 `json:"heapInuse"`
	TotalAlloc uint64 `json:"totalAlloc"`
	NumGC      uint32 `json:"numGC"`
}

type envReport struct {
	Environment map[string]string `json:"environment"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Process     processInfo       `json:"process"`
	Timestamp   string            `json:"timestamp"`
}

func (h *Handler) EnvTest(c *gin.Context) {
	logger := middleware.Logger(c)
	logger.Info("Environment test API request received")

	proc, err := h.process()
	if err != nil {
		logger.Error("Failed to collect process info", "error", err)
		c.JSON(http.StatusInternalServerError, envelope.NewError(err.Error()).WithStack())
		return
	}

	report := envReport{
		Environment: h.environment(),
		Process:     proc,
		Timestamp:   envelope.Timestamp(),
	}
	// Probing calls the secret stores, so it only runs on request.
	if c.Query("probe") == "credentials" {
		report.Credentials = h.probeCredentials(c.Request.Context())
	}
	c.IndentedJSON(http.StatusOK, report)
}

func (h *Handler) environment() map[string]string {
	out := make(map[string]string, len(EnvKeys))
	for _, key := range EnvKeys {
		v, ok := h.lookup(key)
		switch {
		case !ok || v == "":
			out[key] = notSet
		case Sensitive(key):
			out[key] = exists(v)
		default:
			out[key] = v
		}
	}
	return out
}

func (h *Handler) probeCredentials(ctx context.Context) map[string]string {
	var mu sync.Mutex
	out := make(map[string]string, len(h.credentials))
	var g errgroup.Group
	for name, r := range h.credentials {
		name, r := name, r
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, credentialProbe)
			defer cancel()
			key, err := r.Resolve(probeCtx)

			var status string
			switch {
			case err != nil:
				status = "[ERROR: " + credential.Message(err) + "]"
			case key == "":
				status = "[EMPTY]"
			default:
				status = exists(key)
			}
			mu.Lock()
			out[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (h *Handler) process() (processInfo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return processInfo{}, fmt.Errorf("getwd: %w", err)
	}
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return processInfo{
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		Version:  runtime.Version(),
		Versions: moduleVersions(),
		Cwd:      cwd,
		ExecPath: exe,
		PID:      os.Getpid(),
		PPID:     os.Getppid(),
		MemoryUsage: memoryUsage{
			Sys:        ms.Sys,
			HeapAlloc:  ms.HeapAlloc,
			HeapInuse:  ms.HeapInuse,
			TotalAlloc: ms.TotalAlloc,
			NumGC:      ms.NumGC,
		},
	}, nil
}

func moduleVersions() map[string]string {
	out := map[string]string{"go": runtime.Version()}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	for _, dep := range info.Deps {
		out[dep.Path] = dep.Version
	}
	return out
}

// Sensitive reports whether a variable's value must be masked.
func Sensitive(key string) bool {
	for _, marker := range []string{"KEY", "SECRET", "TOKEN", "PASSWORD"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func exists(v string) string {
	return fmt.Sprintf("[EXISTS - %d chars]", len(v))
}

// CredentialNames returns the probed resolver names, sorted.
func (h *Handler) CredentialNames() []string {
	names := make([]string, 0, len(h.credentials))
	for name := range h.credentials {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
