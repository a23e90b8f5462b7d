// internal/rule/rule.go
//
// A Rule binds one value checker to its dispatch configuration: which
// fields or type tags it claims, whether a failed validation earns a
// repair attempt, and the audit logs of every applicability check and
// invocation.

package rule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Options carries per-field validation configuration (bounds, choices,
// precision, and so on). Opaque to the dispatch layer; each checker
// reads the keys it understands.
type Options map[string]any

// Merged overlays extra on top of the receiver without mutating either.
func (o Options) Merged(extra Options) Options {
	if len(extra) == 0 {
		return o
	}
	out := make(Options, len(o)+len(extra))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Strings reads a string-slice option, accepting []string or []any.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return nil
}

// Bool reads a boolean option with a default.
func (o Options) Bool(key string, fallback bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return fallback
}

// Float reads a numeric option, accepting float64 or int.
func (o Options) Float(key string) (float64, bool) {
	switch v := o[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int reads an integer option, accepting int or float64.
func (o Options) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// String reads a string option.
func (o Options) String(key string) (string, bool) {
	v, ok := o[key].(string)
	return v, ok
}

// Checker validates one category of field value and can attempt a
// repair. Implementations are stateless; configuration arrives through
// Options on every call.
type Checker interface {
	Name() string
	Validate(ctx context.Context, value any, opts Options) (any, error)
	Fix(ctx context.Context, value any, opts Options) (any, error)
}

// FormRef is the slice of the form surface a rule needs for its audit
// trail and custom conditions.
type FormRef interface {
	ID() string
}

// Condition customizes applicability when annotation dispatch is off.
type Condition func(ctx context.Context, field string, value any, form FormRef) (bool, error)

// Config is a rule's dispatch configuration.
type Config struct {
	// ApplyTypes are the type tags the rule claims for annotation-based
	// dispatch, e.g. "str" or "int".
	ApplyTypes []string
	// ExcludeTypes veto a claim even when ApplyTypes matched.
	ExcludeTypes []string
	// Fields is an explicit allow-list: a named field always applies
	// regardless of annotation.
	Fields []string
	// Fix enables exactly one repair attempt after a failed validation.
	Fix bool
	// Options is handed to the checker on every invocation.
	Options Options
	// Condition, when set, decides applicability for calls that opt out
	// of annotation dispatch. Defaults to never applying.
	Condition Condition
}

// LogEntry records one applicability check or invocation.
type LogEntry struct {
	Field     string
	FormID    string
	Timestamp time.Time
	Options   Options
}

// Rule is one instantiated (applicability, validate, fix) unit.
type Rule struct {
	name    string
	checker Checker
	cfg     Config

	mu         sync.Mutex
	enabled    bool
	appliedLog []LogEntry
	invokedLog []LogEntry
}

// New instantiates a rule around a checker.
func New(name string, checker Checker, cfg Config) (*Rule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule: name is required")
	}
	if checker == nil {
		return nil, fmt.Errorf("rule: checker is required for %s", name)
	}
	return &Rule{name: name, checker: checker, cfg: cfg, enabled: true}, nil
}

// Name returns the rule's registry name.
func (r *Rule) Name() string { return r.name }

// Enabled reports whether the validator should consider this rule.
func (r *Rule) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetEnabled flips the rule's enabled flag.
func (r *Rule) SetEnabled(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = v
}

// Config returns the dispatch configuration.
func (r *Rule) Config() Config { return r.cfg }

// Applies decides whether the rule claims a field. An explicit field
// match wins outright. With annotation dispatch enabled, the field's
// type tags are intersected with ApplyTypes minus ExcludeTypes; with it
// disabled, the configured Condition decides. Every check is recorded
// in the applied log.
func (r *Rule) Applies(ctx context.Context, field string, value any, form FormRef, annotation []string, useAnnotation bool) (bool, error) {
	r.logApplied(field, form)
	for _, name := range r.cfg.Fields {
		if name == field {
			return true, nil
		}
	}
	if !useAnnotation {
		if r.cfg.Condition == nil {
			return false, nil
		}
		return r.cfg.Condition(ctx, field, value, form)
	}
	for _, tag := range annotation {
		if contains(r.cfg.ApplyTypes, tag) && !contains(r.cfg.ExcludeTypes, tag) {
			return true, nil
		}
	}
	return false, nil
}

// Invoke validates a value, with one repair attempt when fix is
// enabled. Success is recorded in the invoked log; failure wraps the
// field name and the full cause chain.
func (r *Rule) Invoke(ctx context.Context, field string, value any, form FormRef, extra Options) (any, error) {
	opts := r.cfg.Options.Merged(extra)
	validated, err := r.checker.Validate(ctx, value, opts)
	if err == nil {
		r.logInvoked(field, form, opts)
		return validated, nil
	}
	if !r.cfg.Fix {
		return nil, &FieldError{Field: field, Rule: r.name, Err: err}
	}
	fixed, fixErr := r.checker.Fix(ctx, value, opts)
	if fixErr != nil {
		return nil, &FieldError{Field: field, Rule: r.name, Err: errors.Join(err, fixErr)}
	}
	r.logInvoked(field, form, opts)
	return fixed, nil
}

// AppliedLog returns a snapshot of the applicability audit trail.
func (r *Rule) AppliedLog() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.appliedLog))
	copy(out, r.appliedLog)
	return out
}

// InvokedLog returns a snapshot of the invocation audit trail.
func (r *Rule) InvokedLog() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LogEntry, len(r.invokedLog))
	copy(out, r.invokedLog)
	return out
}

func (r *Rule) logApplied(field string, form FormRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliedLog = append(r.appliedLog, LogEntry{
		Field:     field,
		FormID:    formID(form),
		Timestamp: time.Now(),
		Options:   r.cfg.Options,
	})
}

func (r *Rule) logInvoked(field string, form FormRef, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokedLog = append(r.invokedLog, LogEntry{
		Field:     field,
		FormID:    formID(form),
		Timestamp: time.Now(),
		Options:   opts,
	})
}

func formID(form FormRef) string {
	if form == nil {
		return ""
	}
	return form.ID()
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// FieldError reports a field value that failed validation and, when a
// repair was attempted, the repair as well.
type FieldError struct {
	Field string
	Rule  string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("rule: field %q failed %s validation: %v", e.Field, e.Rule, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
