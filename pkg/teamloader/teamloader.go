// Package teamloader turns a parsed agents file into a runnable team:
// model providers, builtin toolsets, hosted agent wiring and handoff
// hooks.
package teamloader

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/rohitshetty84/multiagent/pkg/agent"
	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/foundry"
	"github.com/rohitshetty84/multiagent/pkg/model/provider"
	"github.com/rohitshetty84/multiagent/pkg/model/provider/options"
	"github.com/rohitshetty84/multiagent/pkg/session"
	"github.com/rohitshetty84/multiagent/pkg/team"
	"github.com/rohitshetty84/multiagent/pkg/tools"
	"github.com/rohitshetty84/multiagent/pkg/tools/builtin"
)

// EndpointEnv names the project endpoint of the remote agent service.
const EndpointEnv = "AZURE_AI_PROJECT_ENDPOINT"

// APIKeyEnv optionally carries an API key for the agent service; when
// unset, Entra ID credentials are used.
const APIKeyEnv = "AZURE_AI_API_KEY"

// Result is a loaded team plus the shared clients it was wired with.
type Result struct {
	Team *team.Team
	// AgentService is non-nil when the team uses hosted agents.
	AgentService *foundry.Client
}

// Load builds the team described by cfg.
func Load(ctx context.Context, cfg *config.Config, runConfig *config.RuntimeConfig) (*Result, error) {
	env, err := runConfig.EnvProvider()
	if err != nil {
		return nil, err
	}

	loader := &loader{cfg: cfg, runConfig: runConfig, env: env}
	return loader.load(ctx)
}

type loader struct {
	cfg          *config.Config
	runConfig    *config.RuntimeConfig
	env          environment.Provider
	agentService *foundry.Client
}

func (l *loader) load(ctx context.Context) (*Result, error) {
	agents := make(map[string]*agent.Agent, len(l.cfg.Agents))

	for name, agentCfg := range l.cfg.Agents {
		a, err := l.buildAgent(ctx, name, agentCfg)
		if err != nil {
			return nil, fmt.Errorf("building agent %s: %w", name, err)
		}
		agents[name] = a
	}

	// Handoffs can form cycles, so wire them once all agents exist.
	for name, agentCfg := range l.cfg.Agents {
		targets := make([]*agent.Agent, len(agentCfg.Handoffs))
		for i, target := range agentCfg.Handoffs {
			targets[i] = agents[target]
		}
		agents[name].WireHandoffs(targets...)
	}

	members := make([]*agent.Agent, 0, len(agents))
	for _, a := range agents {
		members = append(members, a)
	}

	return &Result{
		Team:         team.New(team.WithAgents(members...)),
		AgentService: l.agentService,
	}, nil
}

func (l *loader) buildAgent(ctx context.Context, name string, agentCfg config.AgentConfig) (*agent.Agent, error) {
	modelCfg := l.cfg.Models[agentCfg.Model]

	var providerOpts []options.Opt
	if l.runConfig.HTTPClient != nil {
		providerOpts = append(providerOpts, options.WithHTTPClient(l.runConfig.HTTPClient))
	}
	model, err := provider.New(ctx, &modelCfg, l.env, providerOpts...)
	if err != nil {
		return nil, err
	}

	toolsets, err := l.buildToolSets(ctx, name, agentCfg.Tools)
	if err != nil {
		return nil, err
	}

	opts := []agent.Opt{
		agent.WithDescription(agentCfg.Description),
		agent.WithModel(model),
		agent.WithToolSets(toolsets...),
		agent.WithWelcomeMessage(agentCfg.Welcome),
		agent.WithNumHistoryItems(agentCfg.NumHistoryItems),
	}

	if agentCfg.OnHandoff != "" {
		hook, ok := handoffHooks[agentCfg.OnHandoff]
		if !ok {
			return nil, fmt.Errorf("unknown handoff hook %q", agentCfg.OnHandoff)
		}
		opts = append(opts, agent.WithHandoffHook(hook))
	}

	return agent.New(name, agentCfg.Instruction, opts...), nil
}

func (l *loader) buildToolSets(ctx context.Context, agentName string, names []string) ([]tools.ToolSet, error) {
	var toolsets []tools.ToolSet
	for _, name := range names {
		switch name {
		case builtin.ToolNameFaqLookup:
			toolset, err := l.buildFaqTool(ctx, agentName)
			if err != nil {
				return nil, err
			}
			toolsets = append(toolsets, toolset)

		case builtin.ToolNameUpdateUserName:
			toolsets = append(toolsets, builtin.NewAccountTool())

		default:
			return nil, fmt.Errorf("unknown tool %q", name)
		}
	}
	return toolsets, nil
}

func (l *loader) buildFaqTool(ctx context.Context, agentName string) (tools.ToolSet, error) {
	hosted, ok := l.cfg.HostedAgents[agentName]
	if !ok {
		return nil, fmt.Errorf("agent %s uses %s but has no hosted_agents entry", agentName, builtin.ToolNameFaqLookup)
	}

	agentID := hosted.ID
	if agentID == "" {
		agentID, _ = l.env.Get(ctx, hosted.IDEnv)
	}
	if agentID == "" {
		return nil, fmt.Errorf("hosted agent %s has no ID (set %s)", agentName, hosted.IDEnv)
	}

	client, err := l.agentServiceClient(ctx)
	if err != nil {
		return nil, err
	}
	return builtin.NewFaqTool(client, agentName, agentID), nil
}

// agentServiceClient builds the shared foundry client on first use.
func (l *loader) agentServiceClient(ctx context.Context) (*foundry.Client, error) {
	if l.agentService != nil {
		return l.agentService, nil
	}

	endpoint, _ := l.env.Get(ctx, EndpointEnv)
	if endpoint == "" {
		return nil, fmt.Errorf("%s environment variable is required for hosted agents", EndpointEnv)
	}

	opts := []foundry.Option{}
	if l.runConfig.HTTPClient != nil {
		opts = append(opts, foundry.WithHTTPClient(l.runConfig.HTTPClient))
	}

	if apiKey, _ := l.env.Get(ctx, APIKeyEnv); apiKey != "" {
		opts = append(opts, foundry.WithAPIKey(apiKey))
	} else {
		credential, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("building azure credential: %w", err)
		}
		opts = append(opts, foundry.WithTokenCredential(credential))
	}

	client, err := foundry.NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	l.agentService = client
	return client, nil
}

// handoffHooks maps on_handoff names from the agents file to hooks.
var handoffHooks = map[string]agent.HandoffHook{
	"assign_user_id": assignUserID,
}

// assignUserID gives the conversation a temporary account ID so account
// changes can be attributed. Existing IDs are kept.
func assignUserID(_ context.Context, profile *session.UserProfile) error {
	if profile.UserID != "" {
		return nil
	}
	profile.UserID = fmt.Sprintf("ID-%d", rand.IntN(900)+100)
	slog.Info("Assigned temporary account ID", "user_id", profile.UserID)
	return nil
}
