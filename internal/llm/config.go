package llm

import (
	"fmt"
	"time"
)

// Config holds the configuration for the inference client.
// Any OpenAI-compatible chat completions endpoint works (LM Studio,
// Ollama, OpenRouter, OpenAI).
//
// Environment Variables (read by internal/config):
// - LLM_API_KEY: API key, optional for local servers
// - LLM_API_URL: base URL (default: http://localhost:1234)
// - LLM_MODEL: model name
// - LLM_MAX_TOKENS: maximum tokens for responses (default: 500)
// - LLM_TEMPERATURE: sampling temperature (default: 0.3)
type Config struct {
	APIKey      string        `json:"-"`
	APIURL      string        `json:"api_url"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	AppName     string        `json:"app_name"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// GetHeaders returns the headers for the LLM API request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}
