package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is one loadable agents file.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// Sources maps a routing key (the file's path relative to the agents
// directory) to its source.
type Sources map[string]Source

// fileSource loads an agents configuration from a YAML file.
type fileSource struct {
	path string
}

func NewFileSource(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string { return s.path }

func (s fileSource) Read(context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", s.path, err)
	}
	return data, nil
}

// bytesSource loads an agents configuration from memory.
type bytesSource struct {
	name string
	data []byte
}

func NewBytesSource(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Read(context.Context) ([]byte, error) {
	return s.data, nil
}

// ResolveSources walks a directory and returns every YAML file in it,
// keyed by its path relative to the directory. Keys are sorted stable
// so listings are deterministic.
func ResolveSources(dir string) (Sources, error) {
	sources := make(Sources)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		sources[filepath.ToSlash(rel)] = NewFileSource(path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving agent sources in %s: %w", dir, err)
	}

	return sources, nil
}

// Keys returns the routing keys in sorted order.
func (s Sources) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup finds a source by key, tolerating a leading slash.
func (s Sources) Lookup(key string) (Source, bool) {
	src, ok := s[strings.TrimPrefix(key, "/")]
	return src, ok
}
