// Package ai talks to an OpenAI-compatible gateway for text completions and
// image generation.
package ai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bargn/bargn/internal/metrics"
	"github.com/bargn/bargn/pkg/logger"
	"github.com/bargn/bargn/pkg/models"
)

const serviceName = "ai gateway"

// DefaultRequestTimeout bounds a single gateway call when no timeout is configured.
const DefaultRequestTimeout = 45 * time.Second

// ClientOptions contains configuration for the AI client.
type ClientOptions struct {
	APIKey      string
	Model       string
	ImageModel  string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	BaseURL     string
}

// CompletionRequest is a single system + user exchange.
type CompletionRequest struct {
	System string
	Prompt string
}

// Client wraps go-openai and normalizes its errors into models.UpstreamError.
type Client struct {
	client *openai.Client
	opts   ClientOptions
	log    *slog.Logger
}

// NewClient creates a new AI client.
func NewClient(opts ClientOptions, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ai api key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("ai model is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if log == nil {
		log = logger.Discard()
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	config.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Client{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
		log:    log.With("component", "ai_client"),
	}, nil
}

// Complete sends the exchange to the chat completion endpoint and returns the
// text of the first choice. Nothing is retried.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		metrics.ObserveAIRequest("complete", "error", start)
		c.log.Error("chat completion failed", "model", c.opts.Model, "error", err)
		return "", normalizeError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.ObserveAIRequest("complete", "empty", start)
		return "", &models.UpstreamError{Service: serviceName, StatusCode: http.StatusOK, Body: "response contained no choices"}
	}
	metrics.ObserveAIRequest("complete", "ok", start)

	c.log.Debug("chat completion finished",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start),
	)
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders a single 1024x1024 image and returns it as a data URL,
// or as a hosted URL when the gateway does not return inline data.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	model := c.opts.ImageModel
	if model == "" {
		model = openai.CreateImageModelDallE3
	}

	start := time.Now()
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		metrics.ObserveAIRequest("image", "error", start)
		c.log.Error("image generation failed", "model", model, "error", err)
		return "", normalizeError(err)
	}
	if len(resp.Data) == 0 {
		metrics.ObserveAIRequest("image", "empty", start)
		return "", &models.UpstreamError{Service: serviceName, StatusCode: http.StatusOK, Body: "response contained no image"}
	}
	metrics.ObserveAIRequest("image", "ok", start)

	img := resp.Data[0]
	if img.B64JSON != "" {
		return "data:image/png;base64," + img.B64JSON, nil
	}
	if img.URL != "" {
		return img.URL, nil
	}
	return "", &models.UpstreamError{Service: serviceName, StatusCode: http.StatusOK, Body: "image payload was empty"}
}

// normalizeError converts go-openai errors into *models.UpstreamError. The
// status code is 0 for transport failures such as timeouts.
func normalizeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &models.UpstreamError{Service: serviceName, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &models.UpstreamError{Service: serviceName, StatusCode: reqErr.HTTPStatusCode, Body: body, Err: err}
	}
	return &models.UpstreamError{Service: serviceName, Err: err}
}
