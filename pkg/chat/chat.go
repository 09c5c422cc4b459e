// Package chat defines the provider-neutral message model shared by the
// runtime, the model providers and the session store.
package chat

import (
	"time"

	"github.com/rohitshetty84/multiagent/pkg/tools"
)

// ErrorApology is what the customer sees when a turn fails, instead of
// the raw error.
const ErrorApology = "I'm sorry, I encountered an error while processing your request. Please try again."

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

type MessagePartType string

const (
	MessagePartTypeText     MessagePartType = "text"
	MessagePartTypeImageURL MessagePartType = "image_url"
)

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type MessagePart struct {
	Type     MessagePartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageURL       `json:"image_url,omitempty"`
}

type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	// MultiContent replaces Content when a message carries attachments.
	MultiContent []MessagePart    `json:"multi_content,omitempty"`
	ToolCalls    []tools.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID   string           `json:"tool_call_id,omitempty"`
	Name         string           `json:"name,omitempty"`
	CreatedAt    time.Time        `json:"created_at,omitzero"`
}

// Usage is the token accounting reported by a provider for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// MessageStream yields incremental chunks of a streamed completion.
// Recv returns io.EOF when the stream is exhausted.
type MessageStream interface {
	Recv() (MessageStreamResponse, error)
	Close() error
}

type MessageStreamResponse struct {
	Choices []MessageStreamChoice `json:"choices"`
	// Usage arrives on the final chunk when the provider supports it.
	Usage *Usage `json:"usage,omitempty"`
}

type MessageStreamChoice struct {
	Delta        MessageDelta `json:"delta"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

type MessageDelta struct {
	Role      MessageRole      `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []tools.ToolCall `json:"tool_calls,omitempty"`
}
