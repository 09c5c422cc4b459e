package runtime

import "github.com/rohitshetty84/multiagent/pkg/tools"

// Event is one item on a run's event stream.
type Event interface {
	isEvent()
}

// StreamStartedEvent opens every run.
type StreamStartedEvent struct {
	SessionID string
}

// AgentSwitchEvent announces which agent is handling the turn. Emitted
// at the start of a run and after every handoff.
type AgentSwitchEvent struct {
	AgentName string
}

// AgentChoiceEvent carries one streamed content chunk from the model.
type AgentChoiceEvent struct {
	AgentName string
	Content   string
}

// PartialToolCallEvent streams a tool call as its arguments arrive.
type PartialToolCallEvent struct {
	AgentName string
	ToolCall  tools.ToolCall
}

// ToolCallEvent reports a fully assembled tool call about to run.
type ToolCallEvent struct {
	AgentName string
	ToolCall  tools.ToolCall
}

// ToolCallResponseEvent reports a tool call's result.
type ToolCallResponseEvent struct {
	AgentName string
	ToolCall  tools.ToolCall
	Response  string
	IsError   bool
}

// AgentHandoffEvent reports a conversation transfer between agents.
type AgentHandoffEvent struct {
	FromAgent string
	ToAgent   string
}

// UsageEvent reports token usage for one completion.
type UsageEvent struct {
	AgentName    string
	InputTokens  int
	OutputTokens int
}

// ErrorEvent reports a failure that ended the run.
type ErrorEvent struct {
	Error string
}

// StreamStoppedEvent closes every run.
type StreamStoppedEvent struct {
	SessionID string
}

func (StreamStartedEvent) isEvent()    {}
func (AgentSwitchEvent) isEvent()      {}
func (AgentChoiceEvent) isEvent()      {}
func (PartialToolCallEvent) isEvent()  {}
func (ToolCallEvent) isEvent()         {}
func (ToolCallResponseEvent) isEvent() {}
func (AgentHandoffEvent) isEvent()     {}
func (UsageEvent) isEvent()            {}
func (ErrorEvent) isEvent()            {}
func (StreamStoppedEvent) isEvent()    {}
