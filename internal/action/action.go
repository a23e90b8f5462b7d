// internal/action/action.go
//
// An Action is the unit of work the pipeline admits and runs. It owns a
// small status state machine and records exactly one outcome.

package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks an action through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Operation is the work an action carries. It may block on I/O; the
// context covers the whole run.
type Operation func(ctx context.Context) (any, error)

// Action pairs an operation with identity, status, and an outcome slot.
// Identity and creation time are fixed at construction. Status only ever
// moves forward: pending -> processing -> completed or failed.
type Action struct {
	id        string
	createdAt time.Time
	op        Operation
	request   map[string]any

	mu            sync.Mutex
	status        Status
	executionTime time.Duration
	result        any
	err           error
}

// Option customizes a new action.
type Option func(*Action)

// WithRequest attaches the request payload consulted by the admission
// permission hook.
func WithRequest(request map[string]any) Option {
	return func(a *Action) {
		a.request = request
	}
}

// New creates a pending action around the given operation.
func New(op Operation, opts ...Option) (*Action, error) {
	if op == nil {
		return nil, fmt.Errorf("action: operation is required")
	}
	a := &Action{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		op:        op,
		status:    StatusPending,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ID returns the stable unique identity.
func (a *Action) ID() string { return a.id }

// CreatedAt returns the creation timestamp.
func (a *Action) CreatedAt() time.Time { return a.createdAt }

// Request returns the payload handed to the permission hook. May be nil.
func (a *Action) Request() map[string]any { return a.request }

// Status returns the current lifecycle state.
func (a *Action) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// MarkProcessing flips a pending action to processing. The processor
// calls this immediately before spawning Invoke.
func (a *Action) MarkProcessing() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != StatusPending {
		return fmt.Errorf("action: %s is %s, cannot mark processing", a.id, a.status)
	}
	a.status = StatusProcessing
	return nil
}

// Invoke runs the operation and records the outcome. On every exit path
// it sets the execution time and exactly one of result or error, then
// the terminal status. Operation failures and panics are absorbed into
// the failed outcome; a non-nil return means the action was invoked
// outside its contract and the pass should abort.
func (a *Action) Invoke(ctx context.Context) error {
	a.mu.Lock()
	if a.status.Terminal() {
		a.mu.Unlock()
		return fmt.Errorf("action: %s already %s", a.id, a.status)
	}
	a.mu.Unlock()

	start := time.Now()
	result, opErr := a.run(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.executionTime = time.Since(start)
	if opErr != nil {
		a.err = opErr
		a.result = nil
		a.status = StatusFailed
		return nil
	}
	a.result = result
	a.err = nil
	a.status = StatusCompleted
	return nil
}

// run executes the operation with panics converted into errors.
func (a *Action) run(ctx context.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("action: operation panicked: %v", r)
		}
	}()
	return a.op(ctx)
}

// ExecutionTime returns the elapsed duration, zero until terminal.
func (a *Action) ExecutionTime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executionTime
}

// Result returns the success value, nil unless completed.
func (a *Action) Result() any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

// Err returns the failure, nil unless failed.
func (a *Action) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
