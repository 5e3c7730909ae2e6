// Package openaicompat implements the OpenAI-style chat completions wire
// format shared by Groq, OpenRouter and Cerebras.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"dev.roundtable.agent/internal/llm"
	"dev.roundtable.agent/internal/models"
)

// RetryConfig defines retry behavior for API calls.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// Provider calls a chat/completions endpoint with bearer-token auth.
type Provider struct {
	baseURL      string
	extraHeaders map[string]string
	httpClient   *http.Client
	retryConfig  RetryConfig
}

type request struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message      models.ChatMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

// NewProvider creates a provider against the given API root (".../v1",
// no trailing slash). extraHeaders are sent with every request; OpenRouter
// wants HTTP-Referer and X-Title, the others need nothing.
func NewProvider(baseURL string, timeout time.Duration, extraHeaders map[string]string) *Provider {
	return NewProviderWithRetry(baseURL, timeout, extraHeaders, DefaultRetryConfig())
}

// NewProviderWithRetry creates a provider with custom retry behavior.
func NewProviderWithRetry(baseURL string, timeout time.Duration, extraHeaders map[string]string, retryConfig RetryConfig) *Provider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		baseURL:      baseURL,
		extraHeaders: extraHeaders,
		httpClient:   &http.Client{Timeout: timeout},
		retryConfig:  retryConfig,
	}
}

// Complete sends one completion request and returns the reply text.
func (p *Provider) Complete(ctx context.Context, key string, req *models.CompletionRequest) (string, error) {
	apiReq := request{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if apiReq.MaxTokens <= 0 {
		apiReq.MaxTokens = 500
	}

	resp, err := p.makeAPICall(ctx, key, apiReq)
	if err != nil {
		return "", fmt.Errorf("chat completions call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error: %d - %s", resp.StatusCode, string(body))
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: no choices with content", llm.ErrMalformedResponse)
	}
	return apiResp.Choices[0].Message.Content, nil
}

// HealthCheck lists models to verify connectivity and key validity.
func (p *Provider) HealthCheck(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) makeAPICall(ctx context.Context, key string, req request) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+key)
		for k, v := range p.extraHeaders {
			httpReq.Header.Set(k, v)
		}

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("retryable error: status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (p *Provider) calculateBackoff(attempt int) time.Duration {
	delay := p.retryConfig.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.retryConfig.Multiplier)
		if delay > p.retryConfig.MaxDelay {
			delay = p.retryConfig.MaxDelay
			break
		}
	}
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.1) // #nosec G404 - jitter doesn't require cryptographic randomness
	return delay + jitter
}
