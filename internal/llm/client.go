package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MimeLyc/twitch-chat-translator/internal/telemetry"
)

const completionsPath = "/v1/chat/completions"

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 512

// Client is an OpenAI-compatible chat completions client.
// Safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new LLM client with the given configuration.
// Per-call deadlines come from the caller's context; config.Timeout is a
// hard ceiling on the underlying HTTP client.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:     config,
		baseURL:    normalizeBaseURL(config.APIURL),
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// normalizeBaseURL accepts both "http://host:1234" and "http://host:1234/v1".
func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(raw, "/")
	return strings.TrimSuffix(base, "/v1")
}

// ChatCompletion sends messages to {base}/v1/chat/completions.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		messages = append([]Message{{Role: "system", Content: opts.SystemPrompt}}, messages...)
	}

	request := ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: c.getTemperature(opts),
	}

	ctx, span := telemetry.StartSpan(ctx, "llm", "llm.chat_completion",
		attribute.String("llm.model", request.Model),
		attribute.Int("llm.messages", len(messages)),
	)
	defer span.End()

	response, err := c.makeRequest(ctx, http.MethodPost, completionsPath, request)
	if err != nil {
		telemetry.RecordError(span, err)
		return response, fmt.Errorf("chat completion failed: %w", err)
	}

	return response, nil
}

// Complete runs a single system+user exchange and returns the reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	opts := NewChatCompletionOptions().WithSystemPrompt(systemPrompt)
	response, err := c.ChatCompletion(ctx, []Message{{Role: "user", Content: prompt}}, opts)
	if err != nil {
		return "", err
	}
	return response.Content()
}

// makeRequest makes a raw HTTP request to the configured LLM API
func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(responseBody), maxErrorBody)}
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return &chatResponse, chatResponse.Error
	}

	return &chatResponse, nil
}

func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
