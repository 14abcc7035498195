// Package upstream performs the single authenticated completion call made
// for each brief request.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	openaiapi "github.com/biladesigns/brief-gateway/internal/api/openai"
	"github.com/biladesigns/brief-gateway/internal/domain"
	"github.com/biladesigns/brief-gateway/internal/pkg/safehttp"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxTokens   = 500
	DefaultTemperature = float32(0.7)
)

const redacted = "[REDACTED]"

// Config describes how to reach the completion API.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	// Temperature is sent as given, including zero.
	Temperature float32

	// DenyPrivateAddresses refuses to dial loopback and private networks.
	DenyPrivateAddresses bool

	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// Client sends prompts to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	api         *openaiapi.Client
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
}

// New creates a Client. Zero values in cfg select the package defaults.
func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		var base http.RoundTripper = http.DefaultTransport
		if cfg.DenyPrivateAddresses {
			base = safehttp.NewTransport()
		}
		httpClient = &http.Client{Transport: otelhttp.NewTransport(base)}
	}

	return &Client{
		api: openaiapi.NewClient(cfg.APIKey,
			openaiapi.WithBaseURL(cfg.BaseURL),
			openaiapi.WithHTTPClient(httpClient),
		),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Model returns the model identifier sent upstream.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as the sole user message and returns the text of the
// first choice. Failures are returned as *domain.UpstreamError. No retry is
// attempted.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	temp := c.temperature
	req := &openaiapi.ChatCompletionRequest{
		Model: c.model,
		Messages: []openaiapi.ChatCompletionMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: &temp,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		var httpErr *openaiapi.HTTPError
		if errors.As(err, &httpErr) {
			return "", &domain.UpstreamError{
				StatusCode: httpErr.StatusCode,
				Body:       c.redact(string(httpErr.Body)),
			}
		}
		return "", &domain.UpstreamError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.UpstreamError{Err: fmt.Errorf("completion %s: %w", resp.ID, domain.ErrEmptyCompletion)}
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("llm.model", resp.Model),
		attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// redact removes the credential from text that may end up in logs.
func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, redacted)
}
