// internal/pipeline/processor.go
//
// The Processor is the capacity-gated consumer at the center of the
// pipeline: it admits queued actions while capacity lasts, consults a
// permission hook per admission attempt, runs granted actions
// concurrently, and re-arms capacity after each wave drains.

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelworks/sluice/internal/action"
	"github.com/kestrelworks/sluice/internal/logging"
)

// PermissionFunc decides whether an action may be admitted. It receives
// the action's request payload and may block (rate limiters, quota
// lookups). The default grants everything.
type PermissionFunc func(ctx context.Context, request map[string]any) (bool, error)

// Processor drains a FIFO of pending actions in capacity-bounded waves.
type Processor struct {
	capacity   int
	refresh    time.Duration
	permission PermissionFunc
	log        *logging.ComponentLogger

	mu        sync.Mutex
	queue     []*action.Action
	available int

	stopMu    sync.Mutex
	stopped   bool
	executing bool
}

// ProcessorOption customizes a new processor.
type ProcessorOption func(*Processor)

// WithPermission installs the admission policy hook.
func WithPermission(fn PermissionFunc) ProcessorOption {
	return func(p *Processor) {
		if fn != nil {
			p.permission = fn
		}
	}
}

// WithProcessorLogger attaches a shared project logger.
func WithProcessorLogger(log *logging.Logger) ProcessorOption {
	return func(p *Processor) {
		p.log = log.Component("processor")
	}
}

// NewProcessor creates a processor that admits at most capacity actions
// per wave and sleeps refresh between re-polls of a deferred candidate.
func NewProcessor(capacity int, refresh time.Duration, opts ...ProcessorOption) (*Processor, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("pipeline: capacity must be at least 1")
	}
	if refresh <= 0 {
		return nil, fmt.Errorf("pipeline: refresh interval must be positive")
	}
	p := &Processor{
		capacity:   capacity,
		refresh:    refresh,
		available:  capacity,
		permission: func(context.Context, map[string]any) (bool, error) { return true, nil },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Enqueue appends an action to the internal FIFO. It never blocks.
func (p *Processor) Enqueue(a *action.Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, a)
}

// QueueLen returns how many actions are waiting for admission.
func (p *Processor) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Available returns the capacity remaining in the current wave.
func (p *Processor) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Capacity returns the configured per-wave admission bound.
func (p *Processor) Capacity() int { return p.capacity }

// Refresh returns the configured re-poll interval.
func (p *Processor) Refresh() time.Duration { return p.refresh }

func (p *Processor) dequeue() *action.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	a := p.queue[0]
	p.queue = p.queue[1:]
	return a
}

func (p *Processor) consumeCapacity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.available > 0 {
		p.available--
	}
}

func (p *Processor) resetCapacity() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = p.capacity
}

// Process runs one draining pass: admission waves continue until the
// queue is empty or a wave admits nothing. Within a wave the processor
// admits while capacity lasts; a candidate left pending by a denied
// permission check is re-polled after the refresh interval instead of
// dequeuing past it. Each wave's tasks are joined before capacity is
// re-armed. An error returned by an action's Invoke means its contract
// was violated and aborts the pass.
func (p *Processor) Process(ctx context.Context) error {
	for {
		var group errgroup.Group
		spawned := 0
		var prev *action.Action

		for p.Available() > 0 && p.QueueLen() > 0 {
			var next *action.Action
			if prev != nil && prev.Status() == action.StatusPending {
				// The last candidate was deferred; give it another
				// chance after the refresh interval.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.refresh):
				}
				next = prev
			} else {
				if next = p.dequeue(); next == nil {
					break
				}
			}

			granted, err := p.permission(ctx, next.Request())
			if err != nil {
				return fmt.Errorf("pipeline: permission check: %w", err)
			}
			if granted {
				if err := next.MarkProcessing(); err != nil {
					return fmt.Errorf("pipeline: admit %s: %w", next.ID(), err)
				}
				a := next
				group.Go(func() error { return a.Invoke(ctx) })
				spawned++
				p.log.Printf("admitted %s", a.ID())
			} else {
				p.log.Printf("deferred %s", next.ID())
			}

			prev = next
			p.consumeCapacity()
		}

		if spawned == 0 {
			return nil
		}
		if err := group.Wait(); err != nil {
			return fmt.Errorf("pipeline: pass aborted: %w", err)
		}
		p.resetCapacity()
		if p.QueueLen() == 0 {
			return nil
		}
	}
}

// Stop signals the execute loop to wind down after the current pass.
func (p *Processor) Stop() {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	p.stopped = true
}

// Start clears the stop signal so processing may resume.
func (p *Processor) Start() {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	p.stopped = false
}

// Stopped reports whether the execute loop has been told to stop.
func (p *Processor) Stopped() bool {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	return p.stopped
}

// Executing reports whether the execute loop is currently running.
func (p *Processor) Executing() bool {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	return p.executing
}

func (p *Processor) setExecuting(v bool) {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()
	p.executing = v
}

// ExecuteLoop processes continuously until Stop is called or the
// context ends, sleeping the refresh interval between passes.
func (p *Processor) ExecuteLoop(ctx context.Context) error {
	p.setExecuting(true)
	defer p.setExecuting(false)
	p.Start()

	for !p.Stopped() {
		if err := p.Process(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.refresh):
		}
	}
	return nil
}
