package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

type stubAgent struct {
	name            string
	instruction     string
	numHistoryItems int
}

func (a stubAgent) Name() string         { return a.name }
func (a stubAgent) Instruction() string  { return a.instruction }
func (a stubAgent) NumHistoryItems() int { return a.numHistoryItems }

func TestSessionNumHistoryItems(t *testing.T) {
	tests := []struct {
		name                     string
		numHistoryItems          int
		messageCount             int
		expectedConversationMsgs int
	}{
		{
			name:            "limit below user message count",
			numHistoryItems: 3,
			messageCount:    10,
			// 10 user (all protected) + 10 assistant. Need to remove 17,
			// but only the 10 assistants are removable.
			expectedConversationMsgs: 10,
		},
		{
			name:                     "limit removes all assistants",
			numHistoryItems:          5,
			messageCount:             8,
			expectedConversationMsgs: 8,
		},
		{
			name:                     "fewer messages than limit",
			numHistoryItems:          10,
			messageCount:             5,
			expectedConversationMsgs: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := stubAgent{name: "faq", instruction: "answer questions", numHistoryItems: tt.numHistoryItems}

			s := New()
			for i := range tt.messageCount {
				s.AddMessage(UserMessage(fmt.Sprintf("Message %d", i)))
				s.AddMessage(AgentMessage("faq", chat.Message{
					Role:    chat.MessageRoleAssistant,
					Content: fmt.Sprintf("Response %d", i),
				}))
			}

			messages := s.GetMessages(a)

			systemCount := 0
			conversationCount := 0
			for _, msg := range messages {
				if msg.Role == chat.MessageRoleSystem {
					systemCount++
				} else {
					conversationCount++
				}
			}

			assert.Positive(t, systemCount, "instruction should always be present")
			assert.Equal(t, tt.expectedConversationMsgs, conversationCount)
		})
	}
}

func TestTrimMessagesPreservesSystemAndUserMessages(t *testing.T) {
	messages := []chat.Message{
		{Role: chat.MessageRoleSystem, Content: "System instruction 1"},
		{Role: chat.MessageRoleSystem, Content: "System instruction 2"},
		{Role: chat.MessageRoleUser, Content: "User message 1"},
		{Role: chat.MessageRoleAssistant, Content: "Assistant response 1"},
		{Role: chat.MessageRoleSystem, Content: "Tool instruction"},
		{Role: chat.MessageRoleUser, Content: "User message 2"},
		{Role: chat.MessageRoleAssistant, Content: "Assistant response 2"},
		{Role: chat.MessageRoleUser, Content: "User message 3"},
		{Role: chat.MessageRoleAssistant, Content: "Assistant response 3"},
	}

	trimmed := trimMessages(messages, 1)

	systemCount := 0
	userCount := 0
	for _, msg := range trimmed {
		switch msg.Role {
		case chat.MessageRoleSystem:
			systemCount++
		case chat.MessageRoleUser:
			userCount++
		}
	}

	assert.Equal(t, 3, systemCount, "all system messages should be preserved")
	assert.Equal(t, 3, userCount, "all user messages should be preserved")
}

func TestTrimMessagesConversationLimit(t *testing.T) {
	messages := []chat.Message{
		{Role: chat.MessageRoleSystem, Content: "System prompt"},
		{Role: chat.MessageRoleUser, Content: "Message 1"},
		{Role: chat.MessageRoleAssistant, Content: "Response 1"},
		{Role: chat.MessageRoleUser, Content: "Message 2"},
		{Role: chat.MessageRoleAssistant, Content: "Response 2"},
		{Role: chat.MessageRoleUser, Content: "Message 3"},
		{Role: chat.MessageRoleAssistant, Content: "Response 3"},
		{Role: chat.MessageRoleUser, Content: "Message 4"},
		{Role: chat.MessageRoleAssistant, Content: "Response 4"},
	}

	testCases := []struct {
		limit                int
		expectedUser         int
		expectedConversation int
	}{
		{limit: 2, expectedUser: 4, expectedConversation: 4},
		{limit: 4, expectedUser: 4, expectedConversation: 4},
		{limit: 8, expectedUser: 4, expectedConversation: 8},
		{limit: 100, expectedUser: 4, expectedConversation: 8},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("limit_%d", tc.limit), func(t *testing.T) {
			trimmed := trimMessages(messages, tc.limit)

			userCount := 0
			conversationCount := 0
			for _, msg := range trimmed {
				if msg.Role == chat.MessageRoleSystem {
					continue
				}
				conversationCount++
				if msg.Role == chat.MessageRoleUser {
					userCount++
				}
			}

			assert.Equal(t, tc.expectedUser, userCount)
			assert.Equal(t, tc.expectedConversation, conversationCount)
		})
	}
}

func TestTrimMessagesSweepsOrphanedToolResults(t *testing.T) {
	messages := []chat.Message{
		{Role: chat.MessageRoleSystem, Content: "System prompt"},
		{Role: chat.MessageRoleUser, Content: "Old message"},
		{
			Role:    chat.MessageRoleAssistant,
			Content: "Old response with tool",
			ToolCalls: []tools.ToolCall{
				{ID: "old_tool_1", Function: tools.FunctionCall{Name: "faq_lookup"}},
			},
		},
		{
			Role:       chat.MessageRoleTool,
			Content:    "Old tool result",
			ToolCallID: "old_tool_1",
		},
		{Role: chat.MessageRoleUser, Content: "Recent message"},
		{
			Role:    chat.MessageRoleAssistant,
			Content: "Recent response with tool",
			ToolCalls: []tools.ToolCall{
				{ID: "recent_tool_1", Function: tools.FunctionCall{Name: "faq_lookup"}},
			},
		},
		{
			Role:       chat.MessageRoleTool,
			Content:    "Recent tool result",
			ToolCallID: "recent_tool_1",
		},
	}

	trimmed := trimMessages(messages, 3)

	toolCallIDs := make(map[string]bool)
	for _, msg := range trimmed {
		if msg.Role == chat.MessageRoleAssistant {
			for _, tc := range msg.ToolCalls {
				toolCallIDs[tc.ID] = true
			}
		}
	}

	userMessages := 0
	for _, msg := range trimmed {
		if msg.Role == chat.MessageRoleTool {
			assert.True(t, toolCallIDs[msg.ToolCallID],
				"tool result should have a corresponding tool call")
		}
		if msg.Role == chat.MessageRoleUser {
			userMessages++
		}
	}
	assert.Equal(t, 2, userMessages, "both user messages should be preserved")
}

func TestTrimMessagesPreservesUserMessageInLongToolLoop(t *testing.T) {
	messages := []chat.Message{
		{Role: chat.MessageRoleSystem, Content: "System prompt"},
		{Role: chat.MessageRoleUser, Content: "Update my user name to Alex"},
	}

	for i := range 30 {
		toolID := fmt.Sprintf("tool_%d", i)
		messages = append(messages, chat.Message{
			Role:    chat.MessageRoleAssistant,
			Content: fmt.Sprintf("Calling tool %d", i),
			ToolCalls: []tools.ToolCall{
				{ID: toolID, Function: tools.FunctionCall{Name: "update_user_name"}},
			},
		}, chat.Message{
			Role:       chat.MessageRoleTool,
			Content:    fmt.Sprintf("Tool result %d", i),
			ToolCallID: toolID,
		})
	}

	// 61 conversation messages (1 user + 30 assistant + 30 tool).
	trimmed := trimMessages(messages, 30)

	var userMessages []string
	for _, msg := range trimmed {
		if msg.Role == chat.MessageRoleUser {
			userMessages = append(userMessages, msg.Content)
		}
	}
	assert.Len(t, userMessages, 1, "user message must survive")
	assert.Equal(t, "Update my user name to Alex", userMessages[0])

	toolCallIDs := make(map[string]bool)
	for _, msg := range trimmed {
		if msg.Role == chat.MessageRoleAssistant {
			for _, tc := range msg.ToolCalls {
				toolCallIDs[tc.ID] = true
			}
		}
	}
	for _, msg := range trimmed {
		if msg.Role == chat.MessageRoleTool {
			assert.True(t, toolCallIDs[msg.ToolCallID],
				"tool result %s should have a corresponding tool call", msg.ToolCallID)
		}
	}
}
