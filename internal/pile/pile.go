// internal/pile/pile.go
//
// A Pile is an ordered, id-keyed, de-duplicated collection. The
// executor stores every admitted action in one and snapshots it by
// status.

package pile

import (
	"fmt"
	"reflect"
	"sync"
)

// Item is anything a pile can hold.
type Item interface {
	ID() string
}

// Pile keeps items in insertion order, keyed by id. Inclusion is
// idempotent: re-including an id overwrites the stored item without
// disturbing its position.
type Pile[T Item] struct {
	mu       sync.RWMutex
	order    []string
	items    map[string]T
	itemType reflect.Type
	strict   bool
}

// New returns an empty pile.
func New[T Item]() *Pile[T] {
	return &Pile[T]{items: map[string]T{}}
}

// NewStrict returns an empty pile that rejects items whose concrete
// type differs from itemType.
func NewStrict[T Item](itemType reflect.Type) *Pile[T] {
	return &Pile[T]{items: map[string]T{}, itemType: itemType, strict: true}
}

// Include inserts or overwrites an item. Strict piles reject items of
// the wrong concrete type.
func (p *Pile[T]) Include(item T) error {
	id := item.ID()
	if id == "" {
		return fmt.Errorf("pile: item has no id")
	}
	if p.strict {
		if got := reflect.TypeOf(item); got != p.itemType {
			return fmt.Errorf("pile: item %s has type %s, want %s", id, got, p.itemType)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.items[id]; !exists {
		p.order = append(p.order, id)
	}
	p.items[id] = item
	return nil
}

// Get looks an item up by id.
func (p *Pile[T]) Get(id string) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[id]
	return item, ok
}

// Contains reports membership by id.
func (p *Pile[T]) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.items[id]
	return ok
}

// Len returns the number of stored items.
func (p *Pile[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Items returns a snapshot of all items in insertion order.
func (p *Pile[T]) Items() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]T, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.items[id])
	}
	return out
}

// Filter returns the items matching keep, preserving insertion order.
func (p *Pile[T]) Filter(keep func(T) bool) []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []T
	for _, id := range p.order {
		if item := p.items[id]; keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Strict reports whether the pile enforces a concrete item type.
func (p *Pile[T]) Strict() bool { return p.strict }
