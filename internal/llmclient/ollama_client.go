package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
)

// ErrBusy is returned when a generate call is already in flight. Overlapping
// backend invocations are rejected rather than interleaved.
var ErrBusy = errors.New("llmclient: a generation call is already in flight")

// OllamaClient implements schemas.LLMClient against a local Ollama server.
type OllamaClient struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.BackendConfig

	// inFlight enforces the single-in-flight-call discipline for Generate.
	inFlight atomic.Bool
	limiter  *rate.Limiter
}

// -- Ollama API request/response structures (internal to this file) --

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// NewOllamaClient initializes the client. No network call is made here;
// availability is checked by the first Ping.
func NewOllamaClient(cfg config.BackendConfig, logger *zap.Logger) (*OllamaClient, error) {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://127.0.0.1:11434"
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model identifier is required")
	}

	return &OllamaClient{
		endpoint: endpoint,
		model:    cfg.Model,
		cfg:      cfg,
		// The outer context carries per-call deadlines; the transport timeout
		// is only a backstop against connection leaks.
		httpClient: &http.Client{Timeout: cfg.PullTimeout},
		logger:     logger.Named("llm_client.ollama"),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Ping is the liveness probe: a list-models call bounded by ProbeTimeout.
func (c *OllamaClient) Ping(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	_, err := c.listModels(probeCtx)
	return err
}

// HasModel reports whether the pinned model is present locally.
func (c *OllamaClient) HasModel(ctx context.Context) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	names, err := c.listModels(probeCtx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == c.model || strings.SplitN(name, ":", 2)[0] == c.model {
			return true, nil
		}
	}
	return false, nil
}

func (c *OllamaClient) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama probe returned status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Generate runs one prompt/response round trip with the configured hard
// timeout and transient-error retries inside that deadline. Overlapping calls
// are rejected with ErrBusy.
func (c *OllamaClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer c.inFlight.Store(false)

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	payload := ollamaGenerateRequest{
		Model:  c.model,
		System: req.SystemPrompt,
		Prompt: req.UserPrompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": req.Options.Temperature,
		},
	}
	if req.Options.ForceJSONFormat {
		payload.Format = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = c.cfg.GenerateTimeout

	var responseText string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create generate request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("Network error during generation, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute generate request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read generate response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var gen ollamaGenerateResponse
		if err := json.Unmarshal(respBody, &gen); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode generate response: %w", err))
		}

		c.logger.Info("Generation complete",
			zap.Duration("duration", time.Since(start)),
			zap.Int("prompt_tokens", gen.PromptEvalCount),
			zap.Int("completion_tokens", gen.EvalCount),
		)

		responseText = strings.TrimSpace(gen.Response)
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, callCtx)); err != nil {
		return "", err
	}
	return responseText, nil
}

// PullModel fetches a model that is absent locally. Bounded by PullTimeout
// since first-time pulls download gigabytes.
func (c *OllamaClient) PullModel(ctx context.Context, model string) error {
	if model == "" {
		model = c.model
	}

	pullCtx, cancel := context.WithTimeout(ctx, c.cfg.PullTimeout)
	defer cancel()

	body, err := json.Marshal(ollamaPullRequest{Name: model, Stream: false})
	if err != nil {
		return fmt.Errorf("failed to marshal pull payload: %w", err)
	}

	req, err := http.NewRequestWithContext(pullCtx, http.MethodPost, c.endpoint+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Pulling model", zap.String("model", model))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model pull failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain the (possibly chunked) progress body so the pull runs to
	// completion before we report success.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("model pull interrupted: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model pull returned status %d", resp.StatusCode)
	}

	c.logger.Info("Model pull complete", zap.String("model", model), zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *OllamaClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Ollama API returned error status", zap.Int("status", statusCode), zap.ByteString("response", body))
	err := fmt.Errorf("ollama API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}
