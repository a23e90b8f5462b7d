// internal/pipeline/executor.go

package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/kestrelworks/sluice/internal/action"
	"github.com/kestrelworks/sluice/internal/logging"
	"github.com/kestrelworks/sluice/internal/pile"
)

// Executor bridges callers to the processor. It owns the pile of every
// accepted action and the progression of ids awaiting admission; both
// are mutated only under the executor's lock so an append is never lost
// between a drain and the next one.
type Executor struct {
	mu        sync.Mutex
	pile      *pile.Pile[*action.Action]
	pending   *pile.Progression
	processor *Processor
	log       *logging.ComponentLogger
}

// ExecutorOption customizes a new executor.
type ExecutorOption func(*Executor)

// WithStrictActions makes the pile reject anything but *action.Action.
func WithStrictActions() ExecutorOption {
	return func(e *Executor) {
		e.pile = pile.NewStrict[*action.Action](reflect.TypeOf(&action.Action{}))
	}
}

// WithExecutorLogger attaches a shared project logger.
func WithExecutorLogger(log *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = log.Component("executor")
	}
}

// NewExecutor wires an executor to its processor.
func NewExecutor(processor *Processor, opts ...ExecutorOption) (*Executor, error) {
	if processor == nil {
		return nil, fmt.Errorf("pipeline: executor requires a processor")
	}
	e := &Executor{
		pile:      pile.New[*action.Action](),
		pending:   pile.NewProgression(),
		processor: processor,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Processor exposes the wired processor.
func (e *Executor) Processor() *Processor { return e.processor }

// Append accepts an action: it enters the pile and the pending
// progression atomically, so status snapshots and the admission queue
// can never disagree about it.
func (e *Executor) Append(a *action.Action) error {
	if a == nil {
		return fmt.Errorf("pipeline: action is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pile.Include(a); err != nil {
		return err
	}
	e.pending.Include(a.ID())
	e.log.Printf("accepted %s", a.ID())
	return nil
}

// Forward drains the whole pending progression into the processor's
// queue, then runs one processing pass. The executor lock covers the
// drain only; the pass itself runs unlocked so callers can keep
// appending while actions execute.
func (e *Executor) Forward(ctx context.Context) error {
	e.mu.Lock()
	drained := 0
	for {
		id, ok := e.pending.PopLeft()
		if !ok {
			break
		}
		if a, found := e.pile.Get(id); found {
			e.processor.Enqueue(a)
			drained++
		}
	}
	e.mu.Unlock()
	if drained > 0 {
		e.log.Printf("forwarded %d action(s)", drained)
	}
	return e.processor.Process(ctx)
}

// Contains reports whether an action id has been accepted.
func (e *Executor) Contains(id string) bool {
	return e.pile.Contains(id)
}

// Actions returns every accepted action in insertion order.
func (e *Executor) Actions() []*action.Action {
	return e.pile.Items()
}

// PendingActions returns a point-in-time snapshot of actions still
// pending. Not a live view.
func (e *Executor) PendingActions() []*action.Action {
	return e.byStatus(action.StatusPending)
}

// CompletedActions returns a point-in-time snapshot of completed actions.
func (e *Executor) CompletedActions() []*action.Action {
	return e.byStatus(action.StatusCompleted)
}

// FailedActions returns a point-in-time snapshot of failed actions.
func (e *Executor) FailedActions() []*action.Action {
	return e.byStatus(action.StatusFailed)
}

func (e *Executor) byStatus(s action.Status) []*action.Action {
	return e.pile.Filter(func(a *action.Action) bool { return a.Status() == s })
}
