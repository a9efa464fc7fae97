// Package graph provides a dependency graph for delegation scheduling.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the delegation graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents a directed acyclic graph of delegation
// dependencies. Delegations are nodes, and edges represent "blocked by"
// relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps delegation ID to the delegation itself.
	nodes map[string]*models.Delegation
	// edges maps delegation ID to IDs of delegations it depends on.
	edges map[string][]string
	// completed tracks which delegations have been marked complete.
	// It may be seeded with IDs completed in earlier iterations, which
	// never appear as nodes.
	completed map[string]bool
	// known holds IDs registered in earlier batches that have not
	// completed. A dependency on one is unsatisfiable, not unknown.
	known map[string]bool
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.Delegation),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		known:     make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// SeedCompleted marks IDs from earlier iterations as already complete.
// Dependencies on seeded IDs are considered satisfied even though the
// delegations are not part of this graph.
func (g *DependencyGraph) SeedCompleted(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.completed[id] = true
	}
}

// SeedKnown records IDs that exist outside this graph without having
// completed, so dependencies on them report as unsatisfiable rather
// than unknown.
func (g *DependencyGraph) SeedKnown(ids []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range ids {
		g.known[id] = true
	}
}

// Build constructs the dependency graph from a slice of delegations.
// A dependency must reference either another delegation in the slice or
// a previously seeded completed ID. Returns an error on a cycle or an
// unknown reference.
func (g *DependencyGraph) Build(delegations []*models.Delegation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d delegations", len(delegations))

	for _, d := range delegations {
		g.nodes[d.ID] = d
		g.edges[d.ID] = nil
	}

	for _, d := range delegations {
		for _, depID := range d.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				if g.completed[depID] {
					// Satisfied in an earlier iteration; no edge needed.
					continue
				}
				if g.known[depID] {
					return fmt.Errorf("delegation %s depends on %s, which exists but has not completed", d.ID, depID)
				}
				return fmt.Errorf("delegation %s depends on unknown delegation %s", d.ID, depID)
			}
			g.edges[d.ID] = append(g.edges[d.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Back edge.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// TopologicalSort returns delegation IDs in an order where all
// dependencies come before the delegations that depend on them.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for id := range g.nodes {
		visit(id)
	}

	return result, nil
}

// GetReady returns delegation IDs with no unmet dependencies that are
// not yet completed or terminal. These can run in parallel.
func (g *DependencyGraph) GetReady() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for id, d := range g.nodes {
		if g.completed[id] {
			continue
		}
		if d.Status.Terminal() {
			continue
		}

		satisfied := true
		for _, depID := range g.edges[id] {
			if g.completed[depID] {
				continue
			}
			dep, exists := g.nodes[depID]
			if !exists || dep.Status != models.DelegationStatusCompleted {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}

	g.debugLog("[graph.GetReady] %d ready: %v", len(ready), ready)
	return ready
}

// MarkComplete marks a delegation as completed in the graph,
// unblocking its dependents in subsequent GetReady calls.
func (g *DependencyGraph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// Get returns the delegation for a given ID, or nil if not found.
func (g *DependencyGraph) Get(id string) *models.Delegation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Size returns the number of delegations in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the in-graph IDs the given delegation depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// Dependents returns the IDs of delegations that depend on the given ID.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for nodeID, deps := range g.edges {
		for _, depID := range deps {
			if depID == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}
	return dependents
}

// CompletedIDs returns all IDs marked complete, including seeded ones.
func (g *DependencyGraph) CompletedIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.completed))
	for id, done := range g.completed {
		if done {
			ids = append(ids, id)
		}
	}
	return ids
}
