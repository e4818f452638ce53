package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultTimeout = 30 * time.Second

	// APIKeyEnv is read once at client construction, never by the engine.
	APIKeyEnv = "ELEVENLABS_API_KEY"
)

// metadataKeys are API-side fields stripped from fetched agent state before
// fingerprinting, so drift checks compare configuration, not bookkeeping.
var metadataKeys = []string{"agent_id", "metadata", "access_info"}

// HTTPClient talks to the conversational agents HTTP API. Rate-limited
// calls are retried with fibonacci backoff; every request carries a
// generated request ID for log correlation.
type HTTPClient struct {
	BaseURL    string
	Logger     *slog.Logger
	MaxRetries uint64
	Backoff    time.Duration

	apiKey string
	http   *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) { c.BaseURL = u }
}

// WithTimeout bounds each HTTP call.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithLogger attaches a logger for request-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *HTTPClient) { c.Logger = l }
}

// New creates an HTTPClient with the given API key.
func New(apiKey string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		BaseURL:    defaultBaseURL,
		Logger:     slog.Default(),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		apiKey:     apiKey,
		http:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromEnv creates an HTTPClient using the credential from the
// environment.
func NewFromEnv(opts ...Option) (*HTTPClient, error) {
	key := os.Getenv(APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}
	return New(key, opts...), nil
}

// CreateAgent creates a named agent and returns its remote identifier.
func (c *HTTPClient) CreateAgent(ctx context.Context, name string, config map[string]any) (string, error) {
	body := PushBody(config, name)
	var resp struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/convai/agents/create", body, &resp); err != nil {
		return "", err
	}
	if resp.AgentID == "" {
		return "", fmt.Errorf("%w: create response carried no agent_id", ErrUnreachable)
	}
	return resp.AgentID, nil
}

// UpdateAgent replaces an existing agent's configuration.
func (c *HTTPClient) UpdateAgent(ctx context.Context, id, name string, config map[string]any) error {
	body := PushBody(config, name)
	return c.call(ctx, http.MethodPatch, "/v1/convai/agents/"+id, body, nil)
}

// GetAgent fetches the remote state of an agent.
func (c *HTTPClient) GetAgent(ctx context.Context, id string) (*AgentState, error) {
	var raw map[string]any
	if err := c.call(ctx, http.MethodGet, "/v1/convai/agents/"+id, nil, &raw); err != nil {
		return nil, err
	}

	state := &AgentState{ID: id, Config: raw}
	if v, ok := raw["agent_id"].(string); ok {
		state.ID = v
	}
	if v, ok := raw["name"].(string); ok {
		state.Name = v
	}
	for _, k := range metadataKeys {
		delete(state.Config, k)
	}
	return state, nil
}

// DeleteAgent removes a remote agent.
func (c *HTTPClient) DeleteAgent(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/v1/convai/agents/"+id, nil, nil)
}

// call performs one API request, retrying only rate-limited responses.
func (c *HTTPClient) call(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	backoff := retry.WithMaxRetries(c.MaxRetries, retry.NewFibonacci(c.Backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.once(ctx, method, path, payload, out)
		if errors.Is(err, ErrRateLimited) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *HTTPClient) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	c.Logger.Debug("remote call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if err := statusError(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding %s %s response: %v", ErrUnreachable, method, path, err)
		}
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readDetail(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnreachable, resp.StatusCode, detail)
	}
}

// readDetail pulls a short error description from a response body.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return "(no detail)"
	}
	return string(bytes.TrimSpace(data))
}

// PushBody returns the document as it is actually sent to the API: a copy
// of the config with the display name set. Callers that need to predict the
// remote's stored form (drift comparison) shape their documents through the
// same function, so the prediction and the wire payload cannot diverge.
func PushBody(config map[string]any, name string) map[string]any {
	body := make(map[string]any, len(config)+1)
	for k, v := range config {
		body[k] = v
	}
	if name != "" {
		body["name"] = name
	}
	return body
}
