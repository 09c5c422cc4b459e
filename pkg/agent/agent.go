// Package agent defines a single member of a team: its instruction, the
// model it runs on, the toolsets it can call and the agents it may hand
// the conversation to.
package agent

import (
	"context"
	"strings"

	"github.com/rohitshetty84/multiagent/pkg/model/provider"
	"github.com/rohitshetty84/multiagent/pkg/session"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

// HandoffHook runs when the conversation is transferred to an agent,
// before the agent produces its first response. It may mutate the
// user's profile, e.g. to assign a temporary account ID.
type HandoffHook func(ctx context.Context, profile *session.UserProfile) error

type Agent struct {
	name            string
	description     string
	instruction     string
	model           provider.Provider
	toolsets        []tools.ToolSet
	handoffs        []*Agent
	handoffHook     HandoffHook
	welcomeMessage  string
	numHistoryItems int
}

type Opt func(*Agent)

func WithDescription(description string) Opt {
	return func(a *Agent) {
		a.description = description
	}
}

func WithModel(model provider.Provider) Opt {
	return func(a *Agent) {
		a.model = model
	}
}

func WithToolSets(toolsets ...tools.ToolSet) Opt {
	return func(a *Agent) {
		a.toolsets = append(a.toolsets, toolsets...)
	}
}

// WithHandoffs declares the agents this agent can transfer the
// conversation to.
func WithHandoffs(agents ...*Agent) Opt {
	return func(a *Agent) {
		a.handoffs = append(a.handoffs, agents...)
	}
}

// WithHandoffHook installs a hook that runs when the conversation is
// transferred to this agent.
func WithHandoffHook(hook HandoffHook) Opt {
	return func(a *Agent) {
		a.handoffHook = hook
	}
}

func WithWelcomeMessage(message string) Opt {
	return func(a *Agent) {
		a.welcomeMessage = message
	}
}

// WithNumHistoryItems limits how much conversation history the agent
// sees. Zero means the full history.
func WithNumHistoryItems(n int) Opt {
	return func(a *Agent) {
		a.numHistoryItems = n
	}
}

func New(name, instruction string, opts ...Opt) *Agent {
	a := &Agent{
		name:        name,
		instruction: instruction,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Description() string {
	return a.description
}

// handoffPreamble tells models that transfers happen via tool calls and
// must stay invisible to the user. Prepended to the instruction of any
// agent that has handoff targets.
const handoffPreamble = `# System context
You are part of a multi-agent system designed to make agent coordination and execution easy. Agents uses two primary abstraction: **Agents** and **Handoffs**. An agent encompasses instructions and tools and can hand off a conversation to another agent when appropriate. Handoffs are achieved by calling a handoff function, generally named ` + "`transfer_to_<agent_name>`" + `. Transfers between agents are handled seamlessly in the background; do not mention or draw attention to these transfers in your conversation with the user.`

// Instruction returns the system prompt for this agent. Agents that can
// hand off get the shared coordination preamble prepended.
func (a *Agent) Instruction() string {
	if len(a.handoffs) == 0 {
		return a.instruction
	}
	return handoffPreamble + "\n\n" + a.instruction
}

func (a *Agent) Model() provider.Provider {
	return a.model
}

func (a *Agent) ToolSets() []tools.ToolSet {
	return a.toolsets
}

func (a *Agent) Handoffs() []*Agent {
	return a.handoffs
}

// WireHandoffs sets the handoff targets after construction. Teams can
// contain handoff cycles, so targets are wired once every member
// exists.
func (a *Agent) WireHandoffs(agents ...*Agent) {
	a.handoffs = agents
}

func (a *Agent) HandoffHook() HandoffHook {
	return a.handoffHook
}

func (a *Agent) WelcomeMessage() string {
	return a.welcomeMessage
}

func (a *Agent) NumHistoryItems() int {
	return a.numHistoryItems
}

// Tools collects every tool the agent can call: its toolsets' tools
// plus one transfer tool per handoff target.
func (a *Agent) Tools(ctx context.Context) ([]tools.Tool, error) {
	var out []tools.Tool
	for _, ts := range a.toolsets {
		t, err := ts.Tools(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, t...)
	}
	return out, nil
}

// ToolSlug normalizes an agent name for use in a tool name, e.g.
// "Account Management Agent" becomes "account_management_agent".
func ToolSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(slug, " ", "_")
}
