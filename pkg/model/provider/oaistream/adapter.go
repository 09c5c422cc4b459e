// Package oaistream adapts the OpenAI SDK's completion stream to the
// provider-neutral message stream shared by every OpenAI-compatible
// provider.
package oaistream

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

type StreamAdapter struct {
	stream *openai.ChatCompletionStream
}

func NewStreamAdapter(stream *openai.ChatCompletionStream) *StreamAdapter {
	return &StreamAdapter{stream: stream}
}

// Recv translates the next SDK chunk. It passes io.EOF through
// unchanged when the stream ends.
func (a *StreamAdapter) Recv() (chat.MessageStreamResponse, error) {
	chunk, err := a.stream.Recv()
	if err != nil {
		return chat.MessageStreamResponse{}, err
	}

	resp := chat.MessageStreamResponse{
		Choices: make([]chat.MessageStreamChoice, len(chunk.Choices)),
	}
	for i, choice := range chunk.Choices {
		resp.Choices[i] = chat.MessageStreamChoice{
			Delta: chat.MessageDelta{
				Role:      chat.MessageRole(choice.Delta.Role),
				Content:   choice.Delta.Content,
				ToolCalls: convertToolCalls(choice.Delta.ToolCalls),
			},
			FinishReason: string(choice.FinishReason),
		}
	}
	if chunk.Usage != nil {
		resp.Usage = &chat.Usage{
			InputTokens:  chunk.Usage.PromptTokens,
			OutputTokens: chunk.Usage.CompletionTokens,
		}
	}
	return resp, nil
}

func (a *StreamAdapter) Close() error {
	return a.stream.Close()
}

func convertToolCalls(calls []openai.ToolCall) []tools.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]tools.ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = tools.ToolCall{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: tools.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return out
}
