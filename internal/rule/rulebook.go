// internal/rule/rulebook.go
//
// The RuleBook is the explicit, caller-constructed registry of rule
// checkers: a name-to-factory map, a priority order, and per-rule
// configuration. The validator instantiates one Rule per ordered entry
// and binds the instance back so the book can roll audit logs up.

package rule

import (
	"fmt"
	"sync"
)

// Factory builds a fresh checker for one registry entry. A factory
// returning nil marks the entry as unavailable; the validator drops it.
type Factory func() Checker

// RuleBook holds rule factories, their priority order, and their
// configuration. First name in the order whose rule applies wins.
type RuleBook struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
	configs   map[string]Config
	instances map[string]*Rule
}

// NewRuleBook builds a registry. Every ordered name must have a
// factory.
func NewRuleBook(factories map[string]Factory, order []string, configs map[string]Config) (*RuleBook, error) {
	if configs == nil {
		configs = map[string]Config{}
	}
	for _, name := range order {
		if _, ok := factories[name]; !ok {
			return nil, fmt.Errorf("rule: order names %q but no factory is registered for it", name)
		}
	}
	copied := make(map[string]Factory, len(factories))
	for name, factory := range factories {
		copied[name] = factory
	}
	return &RuleBook{
		factories: copied,
		order:     append([]string(nil), order...),
		configs:   configs,
		instances: map[string]*Rule{},
	}, nil
}

// DefaultOrder is the canonical priority: constrained shapes first,
// strings last so the catch-all cannot shadow anything.
var DefaultOrder = []string{"choice", "action_request", "boolean", "number", "mapping", "string"}

// Default returns a rulebook covering every built-in checker with fix
// enabled and the canonical priority order.
func Default() *RuleBook {
	book, err := NewRuleBook(
		map[string]Factory{
			"choice":         func() Checker { return ChoiceChecker{} },
			"action_request": func() Checker { return ActionRequestChecker{} },
			"boolean":        func() Checker { return BooleanChecker{} },
			"number":         func() Checker { return NumberChecker{} },
			"mapping":        func() Checker { return MappingChecker{} },
			"string":         func() Checker { return StringChecker{} },
		},
		DefaultOrder,
		map[string]Config{
			"choice":         {ApplyTypes: []string{"enum"}, Fix: true},
			"action_request": {Fields: []string{"action_request"}, ApplyTypes: []string{"list"}, Fix: true},
			"boolean":        {ApplyTypes: []string{"bool"}, Fix: true},
			"number":         {ApplyTypes: []string{"int", "float", "number"}, Fix: true},
			"mapping":        {ApplyTypes: []string{"dict", "map"}, Fix: true},
			"string":         {ApplyTypes: []string{"str", "string"}, Fix: true},
		},
	)
	if err != nil {
		// The built-in tables are static; a mismatch is a programming error.
		panic(err)
	}
	return book
}

// Get looks up one entry by name.
func (b *RuleBook) Get(name string) (Factory, Config, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	factory, ok := b.factories[name]
	if !ok {
		return nil, Config{}, false
	}
	return factory, b.configs[name], true
}

// Order returns the priority-ordered names.
func (b *RuleBook) Order() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.order...)
}

// Contains reports whether a name is registered.
func (b *RuleBook) Contains(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.factories[name]
	return ok
}

// Add registers a new entry at the end of the order. Collisions error.
func (b *RuleBook) Add(name string, factory Factory, cfg Config) error {
	if name == "" {
		return fmt.Errorf("rule: name is required")
	}
	if factory == nil {
		return fmt.Errorf("rule: factory is required for %s", name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.factories[name]; exists {
		return fmt.Errorf("rule: %s already registered", name)
	}
	b.factories[name] = factory
	b.configs[name] = cfg
	b.order = append(b.order, name)
	return nil
}

// Remove deletes an entry, its config, its order slot, and its bound
// instance.
func (b *RuleBook) Remove(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.factories[name]; !exists {
		return fmt.Errorf("rule: %s is not registered", name)
	}
	delete(b.factories, name)
	delete(b.configs, name)
	delete(b.instances, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// Bind associates an instantiated rule with its entry so the book can
// aggregate audit logs.
func (b *RuleBook) Bind(name string, r *Rule) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instances[name] = r
}

// AppliedLog flattens every bound rule's applicability trail, in order.
func (b *RuleBook) AppliedLog() []LogEntry {
	return b.flatten((*Rule).AppliedLog)
}

// InvokedLog flattens every bound rule's invocation trail, in order.
func (b *RuleBook) InvokedLog() []LogEntry {
	return b.flatten((*Rule).InvokedLog)
}

func (b *RuleBook) flatten(get func(*Rule) []LogEntry) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []LogEntry
	for _, name := range b.order {
		if r, ok := b.instances[name]; ok {
			out = append(out, get(r)...)
		}
	}
	return out
}
