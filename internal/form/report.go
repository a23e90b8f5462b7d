package form

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Completable is implemented by forms that can report whether all
// requested fields have values. BaseForm satisfies it.
type Completable interface {
	Form
	Filled() bool
}

// Report aggregates completed forms from one logical session.
type Report struct {
	id string

	mu    sync.Mutex
	forms map[string]Form
	order []string
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{id: uuid.NewString(), forms: map[string]Form{}}
}

// ID returns the report's identity.
func (r *Report) ID() string { return r.id }

// Fill records the given forms. With strict set, a form whose requested
// fields are not all committed is rejected and nothing is recorded.
func (r *Report) Fill(forms []Form, strict bool) error {
	if strict {
		for _, f := range forms {
			c, ok := f.(Completable)
			if !ok {
				continue
			}
			if !c.Filled() {
				return fmt.Errorf("form: report cannot include incomplete form %s", f.ID())
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range forms {
		if _, exists := r.forms[f.ID()]; !exists {
			r.order = append(r.order, f.ID())
		}
		r.forms[f.ID()] = f
	}
	return nil
}

// Forms returns the recorded forms in first-seen order.
func (r *Report) Forms() []Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Form, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.forms[id])
	}
	return out
}
