// Package agents contains the built-in processing agents and the explicit
// registry table mapping agent names to implementations. New agents register
// by adding an entry; there is no reflection-based discovery.
package agents

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scribemesh/scribemesh/core"
)

// Registry is an explicit name -> Agent table. It is safe for concurrent
// use; registration normally happens once at startup.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]core.Agent)}
}

// Register adds an agent under its name. Duplicate names are rejected so a
// config entry can never be ambiguous about which agent it governs.
func (r *Registry) Register(agent core.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := agent.Name()
	if name == "" {
		return fmt.Errorf("agent has empty name")
	}
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent %q already registered", name)
	}
	r.agents[name] = agent
	return nil
}

// Get returns the agent registered under name, or nil.
func (r *Registry) Get(name string) core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[name]
}

// All returns the registered agents in name order. The slice is a snapshot
// safe for caller mutation.
func (r *Registry) All() []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]core.Agent, 0, len(names))
	for _, name := range names {
		out = append(out, r.agents[name])
	}
	return out
}

// Defaults returns a registry pre-populated with the built-in agents.
func Defaults() *Registry {
	r := NewRegistry()
	for _, agent := range []core.Agent{
		NewSummaryAgent(),
		NewPrescriptionAgent(),
		NewFollowUpAgent(),
		NewActionItemAgent(),
	} {
		// Built-in names are unique by construction.
		_ = r.Register(agent)
	}
	return r
}
