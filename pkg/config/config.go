// Package config loads and validates the YAML description of an agent
// team: the agents, the models they run on, and the hosted agents they
// can reach on the remote agent service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Version      string                       `yaml:"version,omitempty"`
	Agents       map[string]AgentConfig       `yaml:"agents"`
	Models       map[string]ModelConfig       `yaml:"models,omitempty"`
	HostedAgents map[string]HostedAgentConfig `yaml:"hosted_agents,omitempty"`
}

type AgentConfig struct {
	Description string `yaml:"description,omitempty"`
	Instruction string `yaml:"instruction"`
	Model       string `yaml:"model"`
	// Tools names built-in toolsets, e.g. "faq_lookup" or "update_user_name".
	Tools []string `yaml:"tools,omitempty"`
	// Handoffs lists the agents this agent may transfer the conversation to.
	Handoffs []string `yaml:"handoffs,omitempty"`
	// OnHandoff names a hook that runs when the conversation is
	// transferred to this agent, e.g. "assign_user_id".
	OnHandoff       string `yaml:"on_handoff,omitempty"`
	Welcome         string `yaml:"welcome,omitempty"`
	NumHistoryItems int    `yaml:"num_history_items,omitempty"`
}

type ModelConfig struct {
	Provider string `yaml:"provider"`
	// Model is the model name, or the deployment name on Azure.
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	APIVersion        string  `yaml:"api_version,omitempty"`
	Temperature       float64 `yaml:"temperature,omitempty"`
	TopP              float64 `yaml:"top_p,omitempty"`
	MaxTokens         int     `yaml:"max_tokens,omitempty"`
	ParallelToolCalls *bool   `yaml:"parallel_tool_calls,omitempty"`
}

// HostedAgentConfig points at an agent that lives on the remote agent
// service. The ID is usually environment-specific, so it can be read
// from an environment variable instead of being written in the file.
type HostedAgentConfig struct {
	ID          string `yaml:"id,omitempty"`
	IDEnv       string `yaml:"id_env,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// RootAgentName is the agent every new conversation starts with.
const RootAgentName = "root"

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates a configuration from raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("config defines no agents")
	}
	if _, ok := cfg.Agents[RootAgentName]; !ok {
		return fmt.Errorf("config defines no '%s' agent", RootAgentName)
	}

	for agentName, agent := range cfg.Agents {
		if agent.Model == "" {
			return fmt.Errorf("agent '%s' has no model", agentName)
		}
		if _, exists := cfg.Models[agent.Model]; !exists {
			if provider, model, ok := strings.Cut(agent.Model, "/"); ok {
				autoRegisterModel(cfg, provider, model)
			} else {
				return fmt.Errorf("agent '%s' references non-existent model '%s'", agentName, agent.Model)
			}
		}

		for _, target := range agent.Handoffs {
			if _, exists := cfg.Agents[target]; !exists {
				return fmt.Errorf("agent '%s' references non-existent handoff target '%s'", agentName, target)
			}
			if target == agentName {
				return fmt.Errorf("agent '%s' hands off to itself", agentName)
			}
		}
	}

	for name := range cfg.HostedAgents {
		hosted := cfg.HostedAgents[name]
		if hosted.ID == "" && hosted.IDEnv == "" {
			return fmt.Errorf("hosted agent '%s' needs either 'id' or 'id_env'", name)
		}
	}

	return nil
}

func autoRegisterModel(cfg *Config, provider, model string) {
	if cfg.Models == nil {
		cfg.Models = make(map[string]ModelConfig)
	}
	cfg.Models[provider+"/"+model] = ModelConfig{
		Provider: provider,
		Model:    model,
	}
}

// RootDescription returns the description shown for the whole file:
// the root agent's description, or its instruction's first line.
func (c *Config) RootDescription() string {
	root := c.Agents[RootAgentName]
	if root.Description != "" {
		return root.Description
	}
	if line, _, ok := strings.Cut(root.Instruction, "\n"); ok {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(root.Instruction)
}

// Multi reports whether the file defines more than one agent.
func (c *Config) Multi() bool {
	return len(c.Agents) > 1
}
