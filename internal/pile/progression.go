package pile

import "sync"

// Progression is the FIFO of action ids awaiting admission. Ids enter
// at the tail when the executor accepts an action and leave from the
// head as the executor drains into the processor.
type Progression struct {
	mu      sync.Mutex
	ids     []string
	present map[string]struct{}
}

// NewProgression returns an empty progression.
func NewProgression() *Progression {
	return &Progression{present: map[string]struct{}{}}
}

// Include appends an id unless it is already queued.
func (p *Progression) Include(id string) {
	if id == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.present[id]; ok {
		return
	}
	p.ids = append(p.ids, id)
	p.present[id] = struct{}{}
}

// PopLeft removes and returns the oldest id.
func (p *Progression) PopLeft() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.ids) == 0 {
		return "", false
	}
	id := p.ids[0]
	p.ids = p.ids[1:]
	delete(p.present, id)
	return id, true
}

// Len returns how many ids are queued.
func (p *Progression) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// IDs returns a snapshot of the queued ids in admission order.
func (p *Progression) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}
