// Package inference is a client for a local Ollama server.
// It sends non-streaming completion requests and checks model availability.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Default Ollama settings.
const (
	DefaultHost    = "http://localhost:11434"
	DefaultModel   = "codellama:13b-instruct"
	DefaultTimeout = 300 * time.Second
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options are the sampling parameters sent with every request.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
}

// DefaultOptions favour deterministic, low-creativity output.
func DefaultOptions() Options {
	return Options{Temperature: 0.1, TopP: 0.9, TopK: 40}
}

// Config holds Ollama client configuration.
type Config struct {
	Host    string // Ollama base URL, e.g., "http://localhost:11434"
	Model   string
	Timeout time.Duration
	Options Options
}

// Client talks to the Ollama HTTP API.
type Client struct {
	host       string
	model      string
	options    Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Ollama client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	options := cfg.Options
	if options == (Options{}) {
		options = DefaultOptions()
	}
	return &Client{
		host:    normalizeHost(cfg.Host),
		model:   model,
		options: options,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Host returns the normalized base URL.
func (c *Client) Host() string {
	return c.host
}

// Model returns the model used for completions.
func (c *Client) Model() string {
	return c.model
}

// =============================================================================
// Wire Types
// =============================================================================

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	TotalDuration   int64  `json:"total_duration,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// =============================================================================
// Operations
// =============================================================================

// Generate sends prompt to /api/generate and returns the trimmed completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", NewInferenceError("generate", 0, "prompt is empty", ErrEmptyPrompt)
	}

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classifyError("generate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseErrorResponse("generate", resp)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", NewInferenceError("generate", resp.StatusCode, "decode response", err)
	}

	c.logger.Debug("completion received",
		"model", c.model,
		"prompt_tokens", result.PromptEvalCount,
		"output_tokens", result.EvalCount,
		"duration", time.Since(start),
	)
	return strings.TrimSpace(result.Response), nil
}

// ListModels returns the names of locally available models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyError("tags", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse("tags", resp)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewInferenceError("tags", resp.StatusCode, "decode response", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckModel verifies the server is reachable and the configured model is
// installed. A missing model yields ErrModelNotFound listing what is available.
func (c *Client) CheckModel(ctx context.Context) error {
	names, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(names, c.model) {
		return NewInferenceError("tags", http.StatusOK,
			fmt.Sprintf("model %s not found; available models: %v", c.model, names), ErrModelNotFound)
	}
	c.logger.Info("connected to ollama", "host", c.host, "model", c.model)
	return nil
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c *Client) classifyError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return NewInferenceError(op, 0, "request timed out", errors.Join(ErrTimeout, err))
	}
	if errors.Is(err, context.Canceled) {
		return NewInferenceError(op, 0, "request canceled", err)
	}
	return NewInferenceError(op, 0, fmt.Sprintf("%v (is ollama running at %s?)", err, c.host),
		errors.Join(ErrConnectionFailed, err))
}

func (c *Client) parseErrorResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	message := strings.TrimSpace(string(body))

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		message = errResp.Error
	}

	if resp.StatusCode == http.StatusNotFound && strings.Contains(message, "model") {
		return NewInferenceError(op, resp.StatusCode, message, ErrModelNotFound)
	}
	return NewInferenceError(op, resp.StatusCode, message, ErrBadStatus)
}

func normalizeHost(host string) string {
	if host == "" {
		host = DefaultHost
	}
	host = strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host
}
