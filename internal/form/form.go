// internal/form/form.go
//
// Forms describe the fields a caller wants resolved out of a model
// response. The validator consumes this surface; BaseForm is the
// concrete implementation used by the CLI and tests.

package form

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Form is the collaborator surface the validator works against.
type Form interface {
	// ID identifies the form instance for audit logs.
	ID() string
	// RequestedFields lists the field names awaiting values.
	RequestedFields() []string
	// Annotation returns the declared type tags of a field.
	Annotation(field string) []string
	// Attr resolves a declared constraint set ("choices" or "keys").
	Attr(field, name string) (any, bool)
	// ValidationOptions returns per-field rule configuration.
	ValidationOptions(field string) map[string]any
	// Fill commits resolved values onto the form.
	Fill(values map[string]any) error
}

// Field declares one form field and its constraints.
type Field struct {
	Name       string
	Annotation []string
	Choices    []string
	Keys       []string
	Options    map[string]any
}

// BaseForm is a straightforward in-memory Form.
type BaseForm struct {
	id        string
	fields    map[string]Field
	requested []string

	mu     sync.Mutex
	values map[string]any
}

// NewBaseForm declares a form over the given fields. Every field is
// requested.
func NewBaseForm(fields ...Field) (*BaseForm, error) {
	f := &BaseForm{
		id:     uuid.NewString(),
		fields: make(map[string]Field, len(fields)),
		values: map[string]any{},
	}
	for _, field := range fields {
		if field.Name == "" {
			return nil, fmt.Errorf("form: field name is required")
		}
		if _, exists := f.fields[field.Name]; exists {
			return nil, fmt.Errorf("form: duplicate field %q", field.Name)
		}
		f.fields[field.Name] = field
		f.requested = append(f.requested, field.Name)
	}
	return f, nil
}

// ID returns the form's identity.
func (f *BaseForm) ID() string { return f.id }

// RequestedFields lists the declared field names in order.
func (f *BaseForm) RequestedFields() []string {
	out := make([]string, len(f.requested))
	copy(out, f.requested)
	return out
}

// Annotation returns a field's declared type tags.
func (f *BaseForm) Annotation(field string) []string {
	return f.fields[field].Annotation
}

// Attr resolves a field's constraint set by name.
func (f *BaseForm) Attr(field, name string) (any, bool) {
	decl, ok := f.fields[field]
	if !ok {
		return nil, false
	}
	switch name {
	case "choices":
		if len(decl.Choices) > 0 {
			return decl.Choices, true
		}
	case "keys":
		if len(decl.Keys) > 0 {
			return decl.Keys, true
		}
	}
	return nil, false
}

// ValidationOptions returns a field's rule configuration. May be nil.
func (f *BaseForm) ValidationOptions(field string) map[string]any {
	return f.fields[field].Options
}

// Fill commits resolved values. Values for unknown keys are stored too;
// the validator passes non-requested response keys through unchanged.
func (f *BaseForm) Fill(values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.values[k] = v
	}
	return nil
}

// Value returns a committed value.
func (f *BaseForm) Value(field string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[field]
	return v, ok
}

// Filled reports whether every requested field has a committed value.
func (f *BaseForm) Filled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, field := range f.requested {
		if _, ok := f.values[field]; !ok {
			return false
		}
	}
	return true
}
