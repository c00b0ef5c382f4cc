// Package content provides a thin wrapper around the official OpenAI Go SDK
// for the text generation the enrichment agents rely on.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyPrompt is returned when Complete is called with an empty prompt.
	ErrEmptyPrompt = errors.New("content: prompt is empty")
	// ErrNoChoiceInResponse is returned when the API response contains no choices.
	ErrNoChoiceInResponse = errors.New("content: no choice in response")
	// ErrEmptyCompletion is returned when the model returns an empty message.
	ErrEmptyCompletion = errors.New("content: model returned empty completion")
)

const defaultModel = "gpt-4o-mini"

// CompletionRequest is one generation call: an optional system framing plus
// the user prompt.
type CompletionRequest struct {
	System string
	Prompt string
}

// Generator produces text for a prompt. Satisfied by Client and by test fakes.
type Generator interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Client calls the OpenAI chat completions API via the official SDK.
type Client struct {
	sdk   openaisdk.Client
	model string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel overrides the completion model.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient creates an OpenAI completion client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		sdk:   openaisdk.NewClient(option.WithAPIKey(apiKey)),
		model: defaultModel,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Complete returns the model's completion for the request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openaisdk.SystemMessage(system))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Messages:    messages,
		Model:       c.model,
		Temperature: param.NewOpt(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoiceInResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	return text, nil
}
