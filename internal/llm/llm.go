// Package llm wraps an OpenAI-compatible chat API. Every call is bounded by
// a timeout and retried with exponential backoff; callers above this package
// never see a hung request, only a reply or an error they can degrade from.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/edaccel/tutor/internal/model"
)

// DefaultTimeout is the default per-attempt timeout for model calls.
const DefaultTimeout = 30 * time.Second

// Completer is the narrow model-call contract the phase components depend
// on. Complete passes free-form text through; CompleteJSON requests a JSON
// object response for calls with a required structured output.
type Completer interface {
	Complete(ctx context.Context, system string, transcript []model.Message) (string, error)
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	maxRetries uint64
}

// New creates a new LLM client. retries is the number of additional
// attempts after the first failure.
func New(baseURL, apiKey, modelName string, timeout time.Duration, retries int) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		api:        openai.NewClientWithConfig(config),
		model:      modelName,
		timeout:    timeout,
		maxRetries: uint64(retries),
	}
}

// Ping verifies the endpoint is reachable by listing models.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.api.ListModels(ctx)
	return err
}

// Complete sends the transcript with a system instruction and returns the
// model's free-form reply.
func (c *Client) Complete(ctx context.Context, system string, transcript []model.Message) (string, error) {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, m := range transcript {
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleTutor {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return c.call(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.7,
	})
}

// CompleteJSON sends a single prompt and requests a JSON object response.
func (c *Client) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	return c.call(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
}

func (c *Client) call(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	attempt := 0
	var reply string

	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.Warn("model call failed", "attempt", attempt, "error", err)
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			slog.Warn("model returned empty response", "attempt", attempt)
			return errors.New("empty model response")
		}
		reply = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("model call after %d attempt(s): %w", attempt, err)
	}
	return reply, nil
}
