package team_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohitshetty84/multiagent/pkg/agent"
	"github.com/rohitshetty84/multiagent/pkg/team"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

type trackingToolSet struct {
	tools.BaseToolSet
	started atomic.Bool
	stopped atomic.Bool
}

func (ts *trackingToolSet) Tools(context.Context) ([]tools.Tool, error) { return nil, nil }

func (ts *trackingToolSet) Start(context.Context) error {
	ts.started.Store(true)
	return nil
}

func (ts *trackingToolSet) Stop(context.Context) error {
	ts.stopped.Store(true)
	return nil
}

func TestTeam_AgentLookup(t *testing.T) {
	t.Parallel()

	root := agent.New("root", "triage")
	faq := agent.New("faq", "answer questions")

	tm := team.New(team.WithID("support"), team.WithAgents(root, faq))

	assert.Equal(t, "support", tm.ID())
	assert.Equal(t, 2, tm.Size())
	assert.Same(t, faq, tm.Agent("faq"))
	assert.Nil(t, tm.Agent("ghost"))
	assert.Equal(t, "root", tm.AgentNames()[0])
}

func TestTeam_ToolSetLifecycle(t *testing.T) {
	t.Parallel()

	ts := &trackingToolSet{}

	// The same toolset is shared by both agents and must only be
	// started and stopped once.
	root := agent.New("root", "triage", agent.WithToolSets(ts))
	faq := agent.New("faq", "answer questions", agent.WithToolSets(ts))

	tm := team.New(team.WithAgents(root, faq))

	require.NoError(t, tm.StartToolSets(t.Context()))
	assert.True(t, ts.started.Load())

	require.NoError(t, tm.StopToolSets(t.Context()))
	assert.True(t, ts.stopped.Load())
}
