// Package environment abstracts where configuration secrets come from:
// process environment, dotenv files, or in-memory overrides.
package environment

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Provider resolves a named environment value.
type Provider interface {
	Get(ctx context.Context, name string) (string, bool)
}

// OSProvider reads from the process environment.
type OSProvider struct{}

func NewOSProvider() OSProvider { return OSProvider{} }

func (OSProvider) Get(_ context.Context, name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapProvider provides values from an in-memory map. Used for injecting
// session-scoped values that take precedence over other providers.
type MapProvider struct {
	values map[string]string
}

func NewMapProvider(values map[string]string) *MapProvider {
	return &MapProvider{values: values}
}

func (p *MapProvider) Get(_ context.Context, name string) (string, bool) {
	val, found := p.values[name]
	return val, found
}

// FilesProvider loads one or more dotenv files once and serves lookups
// from the parsed result. Later files win over earlier ones.
type FilesProvider struct {
	values map[string]string
}

func NewFilesProvider(paths ...string) (*FilesProvider, error) {
	values := map[string]string{}
	for _, path := range paths {
		parsed, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", path, err)
		}
		for k, v := range parsed {
			values[k] = v
		}
	}
	return &FilesProvider{values: values}, nil
}

func (p *FilesProvider) Get(_ context.Context, name string) (string, bool) {
	val, found := p.values[name]
	return val, found
}

// Chain tries each provider in order and returns the first match.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Get(ctx context.Context, name string) (string, bool) {
	for _, p := range c.providers {
		if val, found := p.Get(ctx, name); found {
			return val, true
		}
	}
	return "", false
}

// Default builds the standard lookup chain: explicit env files first,
// then the process environment.
func Default(envFiles ...string) (Provider, error) {
	if len(envFiles) == 0 {
		return NewOSProvider(), nil
	}
	files, err := NewFilesProvider(envFiles...)
	if err != nil {
		return nil, err
	}
	return NewChain(files, NewOSProvider()), nil
}
