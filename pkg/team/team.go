// Package team groups the agents loaded from one configuration file and
// manages the lifecycle of their toolsets.
package team

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/rohitshetty84/multiagent/pkg/agent"
	"github.com/rohitshetty84/multiagent/pkg/tools"
)

type Team struct {
	id     string
	agents map[string]*agent.Agent
}

type Opt func(*Team)

func WithID(id string) Opt {
	return func(t *Team) {
		t.id = id
	}
}

func WithAgents(agents ...*agent.Agent) Opt {
	return func(t *Team) {
		for _, a := range agents {
			t.agents[a.Name()] = a
		}
	}
}

func New(opts ...Opt) *Team {
	t := &Team{
		agents: make(map[string]*agent.Agent),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Team) ID() string {
	return t.id
}

func (t *Team) Agent(name string) *agent.Agent {
	return t.agents[name]
}

func (t *Team) Size() int {
	return len(t.agents)
}

// AgentNames returns the names of every agent in the team, root first.
func (t *Team) AgentNames() []string {
	names := make([]string, 0, len(t.agents))
	if _, ok := t.agents["root"]; ok {
		names = append(names, "root")
	}
	for name := range t.agents {
		if name != "root" {
			names = append(names, name)
		}
	}
	return names
}

// StartToolSets starts every toolset that needs starting, once per
// toolset even when shared between agents. Toolsets start in parallel
// since some open network connections.
func (t *Team) StartToolSets(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, ts := range t.uniqueToolSets() {
		startable, ok := ts.(tools.Startable)
		if !ok {
			continue
		}
		eg.Go(func() error {
			return startable.Start(ctx)
		})
	}
	return eg.Wait()
}

// StopToolSets stops every startable toolset, collecting errors rather
// than stopping at the first one.
func (t *Team) StopToolSets(ctx context.Context) error {
	var errs []error
	for _, ts := range t.uniqueToolSets() {
		startable, ok := ts.(tools.Startable)
		if !ok {
			continue
		}
		if err := startable.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Team) uniqueToolSets() []tools.ToolSet {
	seen := make(map[tools.ToolSet]bool)
	var out []tools.ToolSet
	for _, a := range t.agents {
		for _, ts := range a.ToolSets() {
			if seen[ts] {
				continue
			}
			seen[ts] = true
			out = append(out, ts)
		}
	}
	return out
}
