// Package openai implements the model provider for the OpenAI API and
// any OpenAI-compatible endpoint reachable via base_url.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/oaistream"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/openaiconv"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/options"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

type Client struct {
	client *openai.Client
	config *config.ModelConfig
}

func NewClient(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("model configuration is required")
	}
	if cfg.Provider != "openai" {
		return nil, errors.New("model type must be 'openai'")
	}

	apiKey, _ := env.Get(ctx, "OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is required")
	}

	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	modelOptions := options.Apply(opts...)
	if client := modelOptions.HTTPClient(); client != nil {
		oc.HTTPClient = client
	}

	return &Client{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
	}, nil
}

func (c *Client) ID() string { return c.config.Provider + "/" + c.config.Model }

func (c *Client) CreateChatCompletionStream(
	ctx context.Context,
	messages []chat.Message,
	requestTools []tools.Tool,
) (chat.MessageStream, error) {
	slog.Debug("Creating OpenAI chat completion stream",
		"model", c.config.Model,
		"message_count", len(messages),
		"tool_count", len(requestTools))

	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	req := openai.ChatCompletionRequest{
		Model:         c.config.Model,
		Messages:      openaiconv.ConvertMessages(messages),
		Temperature:   float32(c.config.Temperature),
		TopP:          float32(c.config.TopP),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	if len(requestTools) > 0 {
		converted, err := openaiconv.ConvertTools(requestTools)
		if err != nil {
			return nil, err
		}
		req.Tools = converted
		if c.config.ParallelToolCalls != nil {
			req.ParallelToolCalls = *c.config.ParallelToolCalls
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("creating chat completion stream: %w", err)
	}
	return oaistream.NewStreamAdapter(stream), nil
}

func (c *Client) CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: openaiconv.ConvertMessages(messages),
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
