// Package session tracks the state of one conversation: its messages,
// the agent currently in charge, the customer's profile and the hosted
// threads opened on the remote agent service.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rohitshetty84/multiagent/pkg/chat"
)

// Agent is the slice of an agent the session needs to assemble the
// message window sent to the model.
type Agent interface {
	Name() string
	Instruction() string
	NumHistoryItems() int
}

// UserProfile holds what the team has learned about the customer.
// Fields like the birth date are PII and must never be echoed back.
type UserProfile struct {
	UserName  string `json:"user_name,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
}

// HostedThread is a conversation thread held on the remote agent
// service for one hosted agent. Used marks that a run happened on it
// this turn, so it gets recycled before the next turn.
type HostedThread struct {
	ID   string `json:"id"`
	Used bool   `json:"used,omitempty"`
}

// Message is a chat message plus the name of the agent that produced it.
type Message struct {
	AgentName string `json:"agent_name,omitempty"`
	chat.Message
}

// Item wraps a message so the history can later carry other entry kinds.
type Item struct {
	Message *Message `json:"message,omitempty"`
}

func NewMessageItem(msg *Message) Item {
	return Item{Message: msg}
}

type Session struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Messages []Item `json:"messages"`
	// CurrentAgent is the agent in charge of the next turn. Empty
	// means the root agent.
	CurrentAgent  string                   `json:"current_agent,omitempty"`
	Profile       UserProfile              `json:"profile"`
	Threads       map[string]*HostedThread `json:"threads,omitempty"`
	InputTokens   int                      `json:"input_tokens"`
	OutputTokens  int                      `json:"output_tokens"`
	Cost          float64                  `json:"cost"`
	MaxIterations int                      `json:"max_iterations"`
	CreatedAt     time.Time                `json:"created_at"`
}

// DefaultMaxIterations bounds the tool-call loop within one turn.
const DefaultMaxIterations = 20

type Opt func(*Session)

func WithID(id string) Opt {
	return func(s *Session) {
		s.ID = id
	}
}

func WithTitle(title string) Opt {
	return func(s *Session) {
		s.Title = title
	}
}

func WithMaxIterations(n int) Opt {
	return func(s *Session) {
		s.MaxIterations = n
	}
}

func New(opts ...Opt) *Session {
	s := &Session{
		ID:            uuid.NewString(),
		MaxIterations: DefaultMaxIterations,
		CreatedAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const maxTitleLength = 50

// TitleFromContent derives a session title from the first line of a
// message, truncated on a rune boundary.
func TitleFromContent(content string) string {
	title := strings.TrimSpace(content)
	if line, _, found := strings.Cut(title, "\n"); found {
		title = line
	}
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength]) + "..."
	}
	return title
}

// UserMessage builds a history entry for user input.
func UserMessage(content string, parts ...chat.MessagePart) *Message {
	return &Message{
		Message: chat.Message{
			Role:         chat.MessageRoleUser,
			Content:      content,
			MultiContent: parts,
			CreatedAt:    time.Now(),
		},
	}
}

// AgentMessage builds a history entry attributed to an agent.
func AgentMessage(agentName string, msg chat.Message) *Message {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return &Message{AgentName: agentName, Message: msg}
}

func (s *Session) AddMessage(msg *Message) {
	s.Messages = append(s.Messages, NewMessageItem(msg))
}

// AddUsage accumulates token counts reported by a provider.
func (s *Session) AddUsage(usage *chat.Usage) {
	if usage == nil {
		return
	}
	s.InputTokens += usage.InputTokens
	s.OutputTokens += usage.OutputTokens
}

// AgentName returns the agent in charge of the next turn.
func (s *Session) AgentName() string {
	if s.CurrentAgent == "" {
		return "root"
	}
	return s.CurrentAgent
}

func (s *Session) SetCurrentAgent(name string) {
	s.CurrentAgent = name
}

// Thread returns the hosted thread for an agent, if one is open.
func (s *Session) Thread(agentName string) *HostedThread {
	return s.Threads[agentName]
}

func (s *Session) SetThread(agentName, threadID string) {
	if s.Threads == nil {
		s.Threads = make(map[string]*HostedThread)
	}
	s.Threads[agentName] = &HostedThread{ID: threadID}
}

// MarkThreadUsed flags a hosted thread for recycling after the turn.
func (s *Session) MarkThreadUsed(agentName string) {
	if t := s.Threads[agentName]; t != nil {
		t.Used = true
	}
}

func (s *Session) ClearThread(agentName string) {
	delete(s.Threads, agentName)
}

// UsedThreads returns the agents whose hosted threads ran this turn.
func (s *Session) UsedThreads() map[string]string {
	used := make(map[string]string)
	for name, t := range s.Threads {
		if t.Used {
			used[name] = t.ID
		}
	}
	return used
}

// GetMessages assembles the message window for one agent: its
// instruction as the system message, then the conversation history,
// trimmed to the agent's history limit.
func (s *Session) GetMessages(a Agent) []chat.Message {
	messages := make([]chat.Message, 0, len(s.Messages)+1)
	messages = append(messages, chat.Message{
		Role:    chat.MessageRoleSystem,
		Content: a.Instruction(),
	})

	for i := range s.Messages {
		item := s.Messages[i]
		if item.Message == nil {
			continue
		}
		messages = append(messages, item.Message.Message)
	}

	return trimMessages(messages, a.NumHistoryItems())
}

// AllMessages returns the raw history for UIs and persistence.
func (s *Session) AllMessages() []*Message {
	out := make([]*Message, 0, len(s.Messages))
	for _, item := range s.Messages {
		if item.Message != nil {
			out = append(out, item.Message)
		}
	}
	return out
}

// trimMessages drops the oldest conversation messages until at most
// maxItems remain. System and user messages are never dropped; tool
// results whose tool call got trimmed are swept away so the history
// stays valid for the model.
func trimMessages(messages []chat.Message, maxItems int) []chat.Message {
	if maxItems <= 0 {
		return messages
	}

	conversation := 0
	for _, msg := range messages {
		if msg.Role != chat.MessageRoleSystem {
			conversation++
		}
	}
	toRemove := conversation - maxItems
	if toRemove <= 0 {
		return messages
	}

	kept := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if toRemove > 0 && msg.Role != chat.MessageRoleSystem && msg.Role != chat.MessageRoleUser {
			toRemove--
			continue
		}
		kept = append(kept, msg)
	}

	liveToolCalls := make(map[string]bool)
	for _, msg := range kept {
		if msg.Role != chat.MessageRoleAssistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			liveToolCalls[tc.ID] = true
		}
	}

	out := kept[:0]
	for _, msg := range kept {
		if msg.Role == chat.MessageRoleTool && !liveToolCalls[msg.ToolCallID] {
			continue
		}
		out = append(out, msg)
	}
	return out
}
