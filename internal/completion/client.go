// Package completion is the HTTP client for the external text-completion
// service (OpenAI-compatible chat completions endpoint).
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/leadwireai/leadwire/internal/config"
	"github.com/leadwireai/leadwire/internal/faults"
)

const errorBodyLimit = 4096

// Client calls the chat completions endpoint. Build it once at startup;
// configuration problems surface on construction, not on first use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	temp       float64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a completion client from config.
func NewClient(log *slog.Logger, cfg config.CompletionConfig) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("completion base_url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("completion model is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultCompletionTimeout) * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		temp:       cfg.Temperature,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("service", "completion")),
	}, nil
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Complete sends a non-streaming completion request. Upstream faults come
// back classified by status: auth, rate limit, or server, never retried here.
func (c *Client) Complete(ctx context.Context, req Request) (Result, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	}
	if req.MaxTokens != nil {
		body.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, faults.Wrap(faults.KindUpstreamServer, "completion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := readErrorBody(resp.Body)
		c.logger.Error("completion API error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", errBody),
		)
		return Result{}, faults.FromUpstreamStatus(resp.StatusCode,
			fmt.Sprintf("completion service returned %d", resp.StatusCode))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Result{}, faults.New(faults.KindUpstreamServer, "completion service returned no choices")
	}

	choice := decoded.Choices[0]
	return Result{
		Text:         choice.Message.Content,
		Model:        decoded.Model,
		FinishReason: choice.FinishReason,
		Usage:        decoded.Usage,
	}, nil
}

func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
