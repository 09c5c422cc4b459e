// Package openaiconv converts the provider-neutral message model to the
// OpenAI SDK's request types. Shared by every OpenAI-compatible
// provider.
package openaiconv

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

func ConvertMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i := range messages {
		msg := &messages[i]
		m := openai.ChatCompletionMessage{Role: string(msg.Role), Name: msg.Name}
		if len(msg.MultiContent) == 0 {
			m.Content = msg.Content
		} else {
			m.MultiContent = convertMultiContent(msg.MultiContent)
		}
		if len(msg.ToolCalls) > 0 {
			m.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				m.ToolCalls[j] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolType(tc.Type),
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				}
			}
		}
		if msg.ToolCallID != "" {
			m.ToolCallID = msg.ToolCallID
		}
		out[i] = m
	}
	return out
}

// ConvertTools converts tool definitions, normalizing every parameter
// schema into the object form the API requires.
func ConvertTools(requestTools []tools.Tool) ([]openai.Tool, error) {
	out := make([]openai.Tool, len(requestTools))
	for i, tool := range requestTools {
		params, err := tools.SchemaToMap(tool.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("normalizing schema for tool %s: %w", tool.Function.Name, err)
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Strict:      tool.Function.Strict,
				Parameters:  params,
			},
		}
	}
	return out, nil
}

func convertMultiContent(multiContent []chat.MessagePart) []openai.ChatMessagePart {
	out := make([]openai.ChatMessagePart, len(multiContent))
	for i, part := range multiContent {
		p := openai.ChatMessagePart{Type: openai.ChatMessagePartType(part.Type), Text: part.Text}
		if part.Type == chat.MessagePartTypeImageURL && part.ImageURL != nil {
			p.ImageURL = &openai.ChatMessageImageURL{
				URL:    part.ImageURL.URL,
				Detail: openai.ImageURLDetail(part.ImageURL.Detail),
			}
		}
		out[i] = p
	}
	return out
}
