package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/user/chat-proxy/internal/chat"
	"github.com/user/chat-proxy/internal/credential"
	"github.com/user/chat-proxy/internal/envelope"
	"github.com/user/chat-proxy/internal/llm"
	"github.com/user/chat-proxy/internal/middleware"
	"github.com/user/chat-proxy/internal/tokens"
)

// Delivery selects how a route answers.
type Delivery int

const (
	// DeliveryBuffered waits for the whole completion and returns JSON.
	DeliveryBuffered Delivery = iota
	// DeliveryStream relays chunks as they arrive.
	DeliveryStream
	// DeliveryEcho acknowledges the conversation without calling the provider.
	DeliveryEcho
)

func (d Delivery) String() string {
	switch d {
	case DeliveryBuffered:
		return "buffered"
	case DeliveryStream:
		return "stream"
	case DeliveryEcho:
		return "echo"
	}
	return fmt.Sprintf("delivery(%d)", int(d))
}

// Phases name the step a streaming route failed in.
const (
	PhaseCredential = "credential resolution"
	PhaseClient     = "client creation"
	PhaseStream     = "stream creation"
	PhaseResponse   = "response creation"
	PhaseGeneral    = "general"
)

const (
	maxBodyBytes   = 4 << 20
	previewLimit   = 100
	echoMessage    = "This is a test response from the simplified chat API"
	noResponseText = "No response from OpenAI"
	fallbackText   = "Streaming failed; the completion could not be started"
)

// RouteConfig is one point in the credential × delivery × error-verbosity
// space that the chat routes cover.
type RouteConfig struct {
	Name       string
	Credential credential.Resolver
	Delivery   Delivery
	// StreamFallback turns stream start failures into a 200 JSON response.
	StreamFallback bool
	// VerboseErrors adds a stack trace, and for streams the failing phase, to
	// error bodies.
	VerboseErrors bool
	// ErrorPrefix starts every provider/credential error message.
	ErrorPrefix string
}

type Settings struct {
	Model       string
	MaxDuration time.Duration
	Factory     llm.Factory
	Tokens      *tokens.Counter
}

type Handler struct {
	route    RouteConfig
	settings Settings
}

func NewHandler(settings Settings, route RouteConfig) (*Handler, error) {
	if route.Name == "" {
		return nil, errors.New("proxy: route name is required")
	}
	if route.Delivery != DeliveryEcho {
		if route.Credential == nil {
			return nil, fmt.Errorf("proxy: route %s: credential resolver is required", route.Name)
		}
		if settings.Factory == nil {
			return nil, fmt.Errorf("proxy: route %s: client factory is required", route.Name)
		}
		if settings.Model == "" {
			return nil, fmt.Errorf("proxy: route %s: model is required", route.Name)
		}
	}
	if route.ErrorPrefix == "" {
		route.ErrorPrefix = "OpenAI API error"
	}
	if settings.Tokens == nil {
		settings.Tokens = tokens.NewCounter()
	}
	return &Handler{route: route, settings: settings}, nil
}

// Chat is the gin handler for the route.
func (h *Handler) Chat(c *gin.Context) {
	start := time.Now()
	logger := middleware.Logger(c).With("route", h.route.Name, "delivery", h.route.Delivery.String())
	logger.Info("Chat request received", "method", c.Request.Method, "url", c.Request.URL.String())

	req, status, err := h.readRequest(c)
	if err != nil {
		logger.Warn("Rejected chat request", "error", err, "status", status)
		c.JSON(status, envelope.NewError("Invalid request: "+err.Error()))
		return
	}
	logger.Info("Messages received", "count", len(req.Messages), "preview", chat.Preview(req.Messages, previewLimit))

	if h.route.Delivery == DeliveryEcho {
		c.JSON(http.StatusOK, envelope.Echo{
			Message:          echoMessage,
			ReceivedMessages: len(req.Messages),
			Timestamp:        envelope.Timestamp(),
		})
		return
	}

	ctx := c.Request.Context()
	if h.settings.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.settings.MaxDuration)
		defer cancel()
	}

	strategy := h.route.Credential.Strategy()
	apiKey, err := h.route.Credential.Resolve(ctx)
	middleware.RecordCredentialResolution(string(strategy), err)
	if err != nil {
		logger.Error("Failed to resolve API key", "strategy", strategy, "error", err)
		h.fail(c, PhaseCredential, h.route.ErrorPrefix+": "+credential.Message(err))
		return
	}
	logger.Info("API key resolved", "strategy", strategy, "api_key_present", apiKey != "")

	middleware.SetModel(c, h.settings.Model)
	logger = logger.With("model", h.settings.Model)

	switch h.route.Delivery {
	case DeliveryStream:
		h.stream(ctx, c, logger, apiKey, req.Messages, start)
	default:
		h.complete(ctx, c, logger, apiKey, req.Messages)
	}
}

func (h *Handler) readRequest(c *gin.Context) (*chat.Request, int, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err)
	}
	req, err := chat.DecodeRequest(body)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return req, http.StatusOK, nil
}

func (h *Handler) complete(ctx context.Context, c *gin.Context, logger *slog.Logger, apiKey string, messages []chat.Message) {
	client, err := h.settings.Factory(apiKey)
	if err != nil {
		logger.Error("Failed to create OpenAI client", "error", err)
		h.fail(c, PhaseClient, h.route.ErrorPrefix+": "+err.Error())
		return
	}

	logger.Info("Making non-streaming request to OpenAI")
	text, err := client.Complete(ctx, h.settings.Model, messages)
	if err != nil {
		logger.Error("OpenAI request failed", "error", err, "upstream_status", llm.StatusCode(err))
		h.fail(c, PhaseGeneral, h.route.ErrorPrefix+": "+err.Error())
		return
	}
	logger.Info("OpenAI response received", "length", len(text))

	h.recordUsage(messages, text)
	if text == "" {
		text = noResponseText
	}
	c.JSON(http.StatusOK, envelope.Completion{Message: text, Timestamp: envelope.Timestamp()})
}

func (h *Handler) stream(ctx context.Context, c *gin.Context, logger *slog.Logger, apiKey string, messages []chat.Message, start time.Time) {
	client, err := h.settings.Factory(apiKey)
	if err != nil {
		logger.Error("Failed to create OpenAI client", "error", err)
		h.streamFailed(c, PhaseClient, "OpenAI client creation error: ", err)
		return
	}

	logger.Info("Creating stream")
	stream, err := client.Stream(ctx, h.settings.Model, messages)
	if err != nil {
		logger.Error("Failed to create stream", "error", err, "upstream_status", llm.StatusCode(err))
		h.streamFailed(c, PhaseStream, "Stream creation error: ", err)
		return
	}
	defer stream.Close()

	// The status is still open until the first chunk arrives, so a failure
	// here can be reported as a proper error response.
	first, err := stream.Recv()
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Error("Stream failed before first chunk", "error", err)
		h.streamFailed(c, PhaseResponse, "Response creation error: ", err)
		return
	}
	middleware.RecordTTFT(h.route.Name, h.settings.Model, time.Since(start).Seconds())

	middleware.ApplyCORS(c.Writer.Header())
	out := &dataStreamWriter{w: c.Writer}
	out.begin()

	var text []byte
	var chunks int
	chunk, recvErr := first, err
	for recvErr == nil {
		if writeErr := out.writeText(chunk); writeErr != nil {
			logger.Warn("Client went away mid-stream", "error", writeErr, "chunks", chunks)
			return
		}
		text = append(text, chunk...)
		chunks++
		chunk, recvErr = stream.Recv()
	}

	reason := "stop"
	if !errors.Is(recvErr, io.EOF) {
		logger.Error("Stream failed mid-response", "error", recvErr, "chunks", chunks)
		_ = out.writeError(recvErr.Error())
		reason = "error"
	}
	_ = out.writeFinish(reason)

	h.recordUsage(messages, string(text))
	logger.Info("Stream completed", "chunks", chunks, "finish_reason", reason, "latency_ms", time.Since(start).Milliseconds())
}

// streamFailed reports a stream that never produced output, honouring the
// route's fallback setting.
func (h *Handler) streamFailed(c *gin.Context, phase, prefix string, err error) {
	if h.route.StreamFallback {
		middleware.RecordStreamFallback(h.route.Name)
		c.JSON(http.StatusOK, envelope.StreamFallback{
			Message:        fallbackText,
			StreamingError: err.Error(),
			Timestamp:      envelope.Timestamp(),
		})
		return
	}
	h.fail(c, phase, prefix+err.Error())
}

func (h *Handler) fail(c *gin.Context, phase, msg string) {
	body := envelope.NewError(msg)
	if h.route.VerboseErrors {
		body = body.WithStack()
		if h.route.Delivery == DeliveryStream {
			body = body.WithPhase(phase)
		}
	}
	c.JSON(http.StatusInternalServerError, body)
}

func (h *Handler) recordUsage(messages []chat.Message, output string) {
	in := h.settings.Tokens.CountMessages(h.settings.Model, messages)
	out := h.settings.Tokens.Count(h.settings.Model, output)
	middleware.RecordTokenUsage(h.route.Name, h.settings.Model, in, out)
}
