package teamloader_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/session"
	"github.com/rohitshetty84/multiagent/pkg/teamloader"
)

func testEnv() *config.RuntimeConfig {
	return &config.RuntimeConfig{
		DefaultEnvProvider: environment.NewMapProvider(map[string]string{
			"AZURE_OPENAI_API_KEY":      "key",
			"AZURE_OPENAI_ENDPOINT":     "https://example.openai.azure.com",
			"AZURE_AI_PROJECT_ENDPOINT": "https://example.services.ai.azure.com/api/projects/demo",
			"AZURE_AI_API_KEY":          "agent-key",
			"FAQ_AGENT_ID":              "agent_abc",
		}),
	}
}

func TestLoad_CustomerSupportTeam(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join("..", "config", "testdata", "customer_support.yaml"))
	require.NoError(t, err)

	result, err := teamloader.Load(t.Context(), cfg, testEnv())
	require.NoError(t, err)

	tm := result.Team
	assert.Equal(t, 4, tm.Size())
	require.NotNil(t, result.AgentService, "hosted agents need the agent service client")

	root := tm.Agent("root")
	require.NotNil(t, root)
	require.Len(t, root.Handoffs(), 3)
	assert.Contains(t, root.Instruction(), "# System context")

	faq := tm.Agent("faq")
	require.NotNil(t, faq)
	faqTools, err := faq.Tools(t.Context())
	require.NoError(t, err)
	require.Len(t, faqTools, 1)
	assert.Equal(t, "faq_lookup", faqTools[0].Function.Name)

	account := tm.Agent("account_management")
	require.NotNil(t, account)
	require.NotNil(t, account.HandoffHook())

	// The hook assigns an ID once and keeps it afterwards.
	profile := &session.UserProfile{}
	require.NoError(t, account.HandoffHook()(t.Context(), profile))
	assert.Regexp(t, `^ID-\d{3}$`, profile.UserID)

	assigned := profile.UserID
	require.NoError(t, account.HandoffHook()(t.Context(), profile))
	assert.Equal(t, assigned, profile.UserID)
}

func TestLoad_MissingHostedAgentID(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`
agents:
  root:
    instruction: triage
    model: azure/gpt-4o
  faq:
    instruction: answer
    model: azure/gpt-4o
    tools: [faq_lookup]
hosted_agents:
  faq:
    id_env: MISSING_AGENT_ID
`))
	require.NoError(t, err)

	runConfig := &config.RuntimeConfig{
		DefaultEnvProvider: environment.NewMapProvider(map[string]string{
			"AZURE_OPENAI_API_KEY":  "key",
			"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com",
		}),
	}
	_, err = teamloader.Load(t.Context(), cfg, runConfig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_AGENT_ID")
}

func TestLoad_UnknownTool(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`
agents:
  root:
    instruction: triage
    model: azure/gpt-4o
    tools: [launch_rockets]
`))
	require.NoError(t, err)

	_, err = teamloader.Load(t.Context(), cfg, testEnv())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch_rockets")
}
