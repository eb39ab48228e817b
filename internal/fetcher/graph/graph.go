// Package graph serves neighbors from an in-memory adjacency list. It backs
// the built-in test scenarios and graphs loaded from YAML files.
package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultLatency simulates the cost of a network fetch.
const DefaultLatency = 15 * time.Millisecond

// ErrUnknownScenario is returned for scenario names that are not built in.
var ErrUnknownScenario = errors.New("unknown scenario")

// Fetcher returns neighbors from a fixed graph. Nodes missing from the graph
// have no neighbors. Safe for concurrent use once built.
type Fetcher struct {
	seed    string
	edges   map[string][]string
	latency time.Duration
}

// New builds a Fetcher over edges. The map is copied.
func New(edges map[string][]string, latency time.Duration) *Fetcher {
	copied := make(map[string][]string, len(edges))
	for node, out := range edges {
		copied[node] = append([]string(nil), out...)
	}
	return &Fetcher{edges: copied, latency: latency}
}

// Seed returns the suggested start node, if the graph has one.
func (f *Fetcher) Seed() string {
	return f.seed
}

// FetchNeighbors waits for the simulated latency and returns a copy of the
// neighbors of node.
func (f *Fetcher) FetchNeighbors(ctx context.Context, node string) ([]string, error) {
	if f.latency > 0 {
		timer := time.NewTimer(f.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("graph fetch %s: %w", node, ctx.Err())
		case <-timer.C:
		}
	}
	return append([]string(nil), f.edges[node]...), nil
}

// Scenario returns a built-in graph by name, matched case-insensitively.
func Scenario(name string, latency time.Duration) (*Fetcher, error) {
	def, ok := scenarios[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	f := New(def.edges, latency)
	f.seed = def.seed
	return f, nil
}

// Scenarios lists the built-in scenario names.
func Scenarios() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File is the YAML layout accepted by LoadFile.
//
//	seed: http://news.yahoo.com/
//	edges:
//	  http://news.yahoo.com/: [http://news.yahoo.com/a]
type File struct {
	Seed  string              `yaml:"seed"`
	Edges map[string][]string `yaml:"edges"`
}

// LoadFile reads a graph from a YAML file.
func LoadFile(path string, latency time.Duration) (*Fetcher, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode graph file: %w", err)
	}
	if len(file.Edges) == 0 {
		return nil, fmt.Errorf("graph file %s has no edges", path)
	}
	f := New(file.Edges, latency)
	f.seed = file.Seed
	return f, nil
}
