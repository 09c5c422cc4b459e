// Package builtin holds the toolsets referenced by name from agents
// files.
package builtin

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/contextutil"
	"github.com/rohitshetty84/multiagent/pkg/foundry"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

const ToolNameFaqLookup = "faq_lookup"

// agentClient is the slice of the foundry client the FAQ tool uses.
// Narrowed for tests.
type agentClient interface {
	CreateThread(ctx context.Context) (*foundry.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (*foundry.ThreadMessage, error)
	ListMessages(ctx context.Context, threadID string) (*foundry.MessageList, error)
	StreamRun(ctx context.Context, threadID, agentID string) (*foundry.RunStream, error)
}

// FaqTool answers questions by running a hosted agent on the remote
// agent service. Each session keeps one thread per hosted agent; the
// thread is recycled after every turn it was used in.
type FaqTool struct {
	tools.BaseToolSet
	client    agentClient
	agentName string
	agentID   string
}

var _ tools.ToolSet = (*FaqTool)(nil)

type FaqLookupArgs struct {
	Question string `json:"question" jsonschema:"The customer's question, as asked"`
}

func NewFaqTool(client *foundry.Client, agentName, agentID string) *FaqTool {
	return &FaqTool{client: client, agentName: agentName, agentID: agentID}
}

func (t *FaqTool) Tools(context.Context) ([]tools.Tool, error) {
	return []tools.Tool{
		{
			Function: tools.FunctionDefinition{
				Name:        ToolNameFaqLookup,
				Description: "Look up the answer to a customer question in the FAQ knowledge base.",
				Parameters:  tools.MustSchemaFor[FaqLookupArgs](),
			},
			Handler: tools.NewHandler(t.lookup),
		},
	}, nil
}

// lookup never surfaces raw failures to the model; every error becomes
// the standard apology so the agent relays something the customer can
// act on.
func (t *FaqTool) lookup(ctx context.Context, args FaqLookupArgs) (*tools.ToolCallResult, error) {
	sess := contextutil.GetSession(ctx)
	if sess == nil {
		slog.Error("FAQ lookup called outside a session")
		return tools.ResultError(chat.ErrorApology), nil
	}

	thread := sess.Thread(t.agentName)
	if thread == nil {
		created, err := t.client.CreateThread(ctx)
		if err != nil {
			slog.Error("Failed to create hosted thread", "agent", t.agentName, "error", err)
			return tools.ResultError(chat.ErrorApology), nil
		}
		sess.SetThread(t.agentName, created.ID)
		thread = sess.Thread(t.agentName)
	}

	if _, err := t.client.CreateMessage(ctx, thread.ID, "user", args.Question); err != nil {
		slog.Error("Failed to post question to hosted thread", "thread_id", thread.ID, "error", err)
		return tools.ResultError(chat.ErrorApology), nil
	}

	answer, err := t.runAndCollect(ctx, thread.ID)
	sess.MarkThreadUsed(t.agentName)
	if err != nil {
		slog.Error("Hosted agent run failed", "thread_id", thread.ID, "error", err)
		return tools.ResultError(chat.ErrorApology), nil
	}

	if answer == "" {
		// Some runs complete without streaming text; fall back to the
		// thread's message list.
		list, err := t.client.ListMessages(ctx, thread.ID)
		if err != nil {
			slog.Error("Failed to list hosted thread messages", "thread_id", thread.ID, "error", err)
			return tools.ResultError(chat.ErrorApology), nil
		}
		answer = list.LastTextByRole("assistant")
	}
	if answer == "" {
		return tools.ResultError(chat.ErrorApology), nil
	}

	return &tools.ToolCallResult{Output: answer}, nil
}

func (t *FaqTool) runAndCollect(ctx context.Context, threadID string) (string, error) {
	stream, err := t.client.StreamRun(ctx, threadID, t.agentID)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var answer string
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return answer, nil
		}
		if err != nil {
			return "", err
		}

		switch event.Type {
		case foundry.EventMessageDelta:
			answer += event.DeltaText()
		case foundry.EventRunFailed:
			return "", event.FailureError()
		case foundry.EventError:
			return "", errors.New(string(event.Data))
		}
	}
}
