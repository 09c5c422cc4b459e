// Package provider defines the model provider abstraction and the
// factory that builds one from configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/azure"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/openai"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/options"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

// Provider turns a message window into a model completion.
type Provider interface {
	ID() string
	CreateChatCompletionStream(ctx context.Context, messages []chat.Message, requestTools []tools.Tool) (chat.MessageStream, error)
	CreateChatCompletion(ctx context.Context, messages []chat.Message) (string, error)
}

// New builds the provider named by the model configuration.
func New(ctx context.Context, cfg *config.ModelConfig, env environment.Provider, opts ...options.Opt) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("model configuration is required")
	}

	switch cfg.Provider {
	case "azure":
		return azure.NewClient(ctx, cfg, env, opts...)
	case "openai":
		return openai.NewClient(ctx, cfg, env, opts...)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.Provider)
	}
}
