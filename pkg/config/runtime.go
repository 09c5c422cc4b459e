package config

import (
	"net/http"

	"github.com/rohitshetty84/multiagent/pkg/environment"
)

// RuntimeConfig carries per-process settings that are not part of the
// agents file: where secrets come from and how HTTP calls are made.
type RuntimeConfig struct {
	DefaultEnvProvider environment.Provider
	EnvFiles           []string
	HTTPClient         *http.Client
}

// EnvProvider resolves the environment provider, building the default
// chain lazily when none was injected.
func (rc *RuntimeConfig) EnvProvider() (environment.Provider, error) {
	if rc.DefaultEnvProvider != nil {
		return rc.DefaultEnvProvider, nil
	}
	return environment.Default(rc.EnvFiles...)
}
