// Package runtime drives a team of agents through a conversation turn:
// streaming model output, executing tool calls, transferring the
// conversation between agents and recycling hosted threads.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rohitshetty84/multiagent/pkg/agent"
	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/contextutil"
	"github.com/rohitshetty84/multiagent/pkg/foundry"
	"github.com/rohitshetty84/multiagent/pkg/metrics"
	"github.com/rohitshetty84/multiagent/pkg/session"
	"github.com/rohitshetty84/multiagent/pkg/team"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

// Runtime executes one conversation turn at a time.
type Runtime interface {
	RunStream(ctx context.Context, sess *session.Session) <-chan Event
	CurrentAgent(sess *session.Session) *agent.Agent
	Team() *team.Team
}

// ThreadStore manages threads on the remote agent service. Satisfied by
// *foundry.Client.
type ThreadStore interface {
	CreateThread(ctx context.Context) (*foundry.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
}

const transferToolPrefix = "transfer_to_"

// LocalRuntime runs the team in process.
type LocalRuntime struct {
	team        *team.Team
	recorder    metrics.Recorder
	threadStore ThreadStore
}

type Opt func(*LocalRuntime)

func WithRecorder(recorder metrics.Recorder) Opt {
	return func(rt *LocalRuntime) {
		rt.recorder = recorder
	}
}

// WithThreadStore enables hosted thread recycling after each turn.
func WithThreadStore(store ThreadStore) Opt {
	return func(rt *LocalRuntime) {
		rt.threadStore = store
	}
}

func New(t *team.Team, opts ...Opt) (*LocalRuntime, error) {
	if t == nil {
		return nil, errors.New("team is required")
	}
	rt := &LocalRuntime{
		team:     t,
		recorder: metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *LocalRuntime) Team() *team.Team {
	return rt.team
}

// CurrentAgent resolves the agent in charge of the session's next turn.
func (rt *LocalRuntime) CurrentAgent(sess *session.Session) *agent.Agent {
	return rt.team.Agent(sess.AgentName())
}

// RunStream executes one turn and streams its events. The channel is
// closed when the turn finishes.
func (rt *LocalRuntime) RunStream(ctx context.Context, sess *session.Session) <-chan Event {
	events := make(chan Event, 128)
	go func() {
		defer close(events)
		rt.run(ctx, sess, events)
	}()
	return events
}

func (rt *LocalRuntime) run(ctx context.Context, sess *session.Session, events chan<- Event) {
	ctx = contextutil.WithSession(ctx, sess)

	emit(ctx, events, StreamStartedEvent{SessionID: sess.ID})
	defer emit(ctx, events, StreamStoppedEvent{SessionID: sess.ID})
	defer rt.recycleThreads(ctx, sess)

	turnStart := time.Now()
	firstToken := false
	status := "success"
	defer func() {
		rt.recorder.ObserveTurn(sess.AgentName(), status, time.Since(turnStart))
	}()

	maxIterations := sess.MaxIterations
	if maxIterations <= 0 {
		maxIterations = session.DefaultMaxIterations
	}

	emit(ctx, events, AgentSwitchEvent{AgentName: sess.AgentName()})

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			status = "canceled"
			return
		}
		if iteration >= maxIterations {
			status = "error"
			slog.Warn("Turn exceeded iteration limit", "session_id", sess.ID, "max_iterations", maxIterations)
			emit(ctx, events, ErrorEvent{Error: fmt.Sprintf("agent loop exceeded %d iterations", maxIterations)})
			return
		}

		a := rt.CurrentAgent(sess)
		if a == nil {
			status = "error"
			emit(ctx, events, ErrorEvent{Error: fmt.Sprintf("unknown agent %q", sess.AgentName())})
			return
		}

		agentTools, err := rt.agentTools(ctx, a)
		if err != nil {
			status = "error"
			emit(ctx, events, ErrorEvent{Error: err.Error()})
			return
		}

		stream, err := a.Model().CreateChatCompletionStream(ctx, sess.GetMessages(a), agentTools)
		if err != nil {
			status = "error"
			slog.Error("Failed to create completion stream", "agent", a.Name(), "error", err)
			emit(ctx, events, ErrorEvent{Error: err.Error()})
			return
		}

		content, toolCalls, err := rt.consumeStream(ctx, sess, a, stream, events, &firstToken, turnStart)
		if err != nil {
			status = "error"
			slog.Error("Completion stream failed", "agent", a.Name(), "error", err)
			emit(ctx, events, ErrorEvent{Error: err.Error()})
			return
		}

		sess.AddMessage(session.AgentMessage(a.Name(), chat.Message{
			Role:      chat.MessageRoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		}))

		if len(toolCalls) == 0 {
			return
		}

		for _, call := range toolCalls {
			rt.executeToolCall(ctx, sess, a, agentTools, call, events)
		}
	}
}

// agentTools collects the agent's own tools plus one transfer tool per
// handoff target.
func (rt *LocalRuntime) agentTools(ctx context.Context, a *agent.Agent) ([]tools.Tool, error) {
	out, err := a.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("collecting tools for %s: %w", a.Name(), err)
	}

	for _, target := range a.Handoffs() {
		description := fmt.Sprintf("Transfer the conversation to the %s agent.", target.Name())
		if target.Description() != "" {
			description += " " + target.Description()
		}
		out = append(out, tools.Tool{
			Function: tools.FunctionDefinition{
				Name:        transferToolPrefix + agent.ToolSlug(target.Name()),
				Description: description,
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
		})
	}
	return out, nil
}

func (rt *LocalRuntime) consumeStream(
	ctx context.Context,
	sess *session.Session,
	a *agent.Agent,
	stream chat.MessageStream,
	events chan<- Event,
	firstToken *bool,
	turnStart time.Time,
) (string, []tools.ToolCall, error) {
	defer stream.Close()

	var content string
	var toolCalls []tools.ToolCall

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return content, toolCalls, nil
		}
		if err != nil {
			return "", nil, err
		}

		if resp.Usage != nil {
			sess.AddUsage(resp.Usage)
			rt.recorder.ObserveTokens(a.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
			emit(ctx, events, UsageEvent{
				AgentName:    a.Name(),
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			})
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				if !*firstToken {
					*firstToken = true
					rt.recorder.ObserveFirstToken(a.Name(), time.Since(turnStart))
				}
				content += choice.Delta.Content
				emit(ctx, events, AgentChoiceEvent{AgentName: a.Name(), Content: choice.Delta.Content})
			}
			for _, delta := range choice.Delta.ToolCalls {
				toolCalls = mergeToolCallDelta(toolCalls, delta)
				emit(ctx, events, PartialToolCallEvent{AgentName: a.Name(), ToolCall: delta})
			}
		}
	}
}

// mergeToolCallDelta folds a streamed tool call fragment into the
// accumulated calls. Fragments for the same call share an index and
// append to the arguments.
func mergeToolCallDelta(calls []tools.ToolCall, delta tools.ToolCall) []tools.ToolCall {
	if delta.Index == nil {
		return append(calls, delta)
	}

	idx := *delta.Index
	for len(calls) <= idx {
		calls = append(calls, tools.ToolCall{})
	}

	call := &calls[idx]
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Type != "" {
		call.Type = delta.Type
	}
	if delta.Function.Name != "" {
		call.Function.Name = delta.Function.Name
	}
	call.Function.Arguments += delta.Function.Arguments
	return calls
}

func (rt *LocalRuntime) executeToolCall(
	ctx context.Context,
	sess *session.Session,
	a *agent.Agent,
	agentTools []tools.Tool,
	call tools.ToolCall,
	events chan<- Event,
) {
	emit(ctx, events, ToolCallEvent{AgentName: a.Name(), ToolCall: call})

	var output string
	var isError bool

	switch {
	case isTransferTool(call.Function.Name):
		output, isError = rt.transfer(ctx, sess, a, call.Function.Name, events)

	default:
		output, isError = rt.callHandler(ctx, a, agentTools, call)
	}

	status := "success"
	if isError {
		status = "error"
	}
	rt.recorder.IncToolCall(a.Name(), call.Function.Name, status)

	emit(ctx, events, ToolCallResponseEvent{
		AgentName: a.Name(),
		ToolCall:  call,
		Response:  output,
		IsError:   isError,
	})

	sess.AddMessage(session.AgentMessage(a.Name(), chat.Message{
		Role:       chat.MessageRoleTool,
		Content:    output,
		ToolCallID: call.ID,
	}))
}

func isTransferTool(name string) bool {
	return len(name) > len(transferToolPrefix) && name[:len(transferToolPrefix)] == transferToolPrefix
}

// transfer hands the conversation to another agent and runs its handoff
// hook, if any.
func (rt *LocalRuntime) transfer(
	ctx context.Context,
	sess *session.Session,
	from *agent.Agent,
	toolName string,
	events chan<- Event,
) (string, bool) {
	slug := toolName[len(transferToolPrefix):]

	var target *agent.Agent
	for _, candidate := range from.Handoffs() {
		if agent.ToolSlug(candidate.Name()) == slug {
			target = candidate
			break
		}
	}
	if target == nil {
		return fmt.Sprintf("Cannot transfer to unknown agent %q.", slug), true
	}

	if hook := target.HandoffHook(); hook != nil {
		if err := hook(ctx, &sess.Profile); err != nil {
			slog.Error("Handoff hook failed", "to_agent", target.Name(), "error", err)
			return chat.ErrorApology, true
		}
	}

	sess.SetCurrentAgent(target.Name())
	rt.recorder.IncHandoff(from.Name(), target.Name())
	slog.Debug("Conversation transferred", "from", from.Name(), "to", target.Name())

	emit(ctx, events, AgentHandoffEvent{FromAgent: from.Name(), ToAgent: target.Name()})
	emit(ctx, events, AgentSwitchEvent{AgentName: target.Name()})

	return fmt.Sprintf("Transferred to %s.", target.Name()), false
}

func (rt *LocalRuntime) callHandler(
	ctx context.Context,
	a *agent.Agent,
	agentTools []tools.Tool,
	call tools.ToolCall,
) (string, bool) {
	for _, tool := range agentTools {
		if tool.Function.Name != call.Function.Name || tool.Handler == nil {
			continue
		}
		result, err := tool.Handler(ctx, call)
		if err != nil || result == nil {
			slog.Error("Tool handler failed", "agent", a.Name(), "tool", call.Function.Name, "error", err)
			return chat.ErrorApology, true
		}
		return result.Output, result.IsError
	}
	return fmt.Sprintf("Unknown tool %q.", call.Function.Name), true
}

// recycleThreads replaces every hosted thread that ran this turn with a
// fresh one, so the next question starts from a clean slate.
func (rt *LocalRuntime) recycleThreads(ctx context.Context, sess *session.Session) {
	if rt.threadStore == nil {
		return
	}

	for agentName, threadID := range sess.UsedThreads() {
		if err := rt.threadStore.DeleteThread(ctx, threadID); err != nil {
			slog.Warn("Failed to delete used hosted thread", "thread_id", threadID, "error", err)
		}

		fresh, err := rt.threadStore.CreateThread(ctx)
		if err != nil {
			// Next lookup will create one lazily.
			slog.Warn("Failed to recreate hosted thread", "agent", agentName, "error", err)
			sess.ClearThread(agentName)
			continue
		}
		sess.SetThread(agentName, fresh.ID)
	}
}

func emit(ctx context.Context, events chan<- Event, event Event) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}
