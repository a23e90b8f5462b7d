// internal/validator/validator.go
//
// The Validator dispatches a form's requested fields to the first
// applicable rule, gives failed validations one repair attempt through
// the rule's fix path, and commits resolved values onto the form.

package validator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/sluice/internal/form"
	"github.com/kestrelworks/sluice/internal/logging"
	"github.com/kestrelworks/sluice/internal/rule"
)

// Formatter parses a multi-field string response into a field map. The
// context makes async formatters (e.g. an LLM call) first class.
type Formatter func(ctx context.Context, response string) (map[string]any, error)

// Record is one entry in the flat validation log: an attempt carries a
// value, an error carries the failure text.
type Record struct {
	Field     string
	FormID    string
	Value     any
	Error     string
	Timestamp time.Time
}

// Summary partitions the validation log.
type Summary struct {
	TotalAttempts int
	Errors        []Record
	Successes     []Record
}

// Validator owns one instantiated rule per rulebook entry plus the
// flat validation log. A validator belongs to a single logical
// conversation; it is not meant for concurrent mutation from many
// callers.
type Validator struct {
	id        string
	createdAt time.Time
	book      *rule.RuleBook
	formatter Formatter
	log       *logging.ComponentLogger

	mu     sync.Mutex
	active map[string]*rule.Rule
	trail  []Record
}

// Option customizes a new validator.
type Option func(*Validator)

// WithRuleBook supplies the rule registry. Defaults to the built-ins.
func WithRuleBook(book *rule.RuleBook) Option {
	return func(v *Validator) {
		if book != nil {
			v.book = book
		}
	}
}

// WithFormatter installs the multi-field string response parser.
func WithFormatter(f Formatter) Option {
	return func(v *Validator) {
		v.formatter = f
	}
}

// WithLogger attaches a shared project logger.
func WithLogger(log *logging.Logger) Option {
	return func(v *Validator) {
		v.log = log.Component("validator")
	}
}

// New instantiates one rule per rulebook entry. A nil factory result
// drops the entry; a rule that fails to construct is a configuration
// error and aborts.
func New(opts ...Option) (*Validator, error) {
	v := &Validator{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		book:      rule.Default(),
		active:    map[string]*rule.Rule{},
	}
	for _, opt := range opts {
		opt(v)
	}
	for _, name := range v.book.Order() {
		factory, cfg, ok := v.book.Get(name)
		if !ok || factory == nil {
			return nil, fmt.Errorf("validator: rulebook names %q but carries no factory for it", name)
		}
		checker := factory()
		if checker == nil {
			// Entry is registered but unavailable; leave it out of the
			// active set.
			v.log.Printf("dropping rule %s: factory produced nothing", name)
			continue
		}
		r, err := rule.New(name, checker, cfg)
		if err != nil {
			return nil, fmt.Errorf("validator: instantiate rule %s: %w", name, err)
		}
		v.active[name] = r
		v.book.Bind(name, r)
	}
	return v, nil
}

// ID returns the validator's identity.
func (v *Validator) ID() string { return v.id }

// RuleBook exposes the backing registry.
func (v *Validator) RuleBook() *rule.RuleBook { return v.book }

// ActiveRules lists the instantiated rule names in priority order.
func (v *Validator) ActiveRules() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for _, name := range v.book.Order() {
		if _, ok := v.active[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// ValidateField resolves one field value through the first enabled rule
// that applies. A later rule is never consulted once one has claimed
// the field, even if its invocation then fails. With strict off, a
// field no rule claims passes through unchanged.
func (v *Validator) ValidateField(ctx context.Context, field string, value any, f form.Form, strict, useAnnotation bool, extra rule.Options) (any, error) {
	annotation := f.Annotation(field)
	for _, name := range v.book.Order() {
		r := v.activeRule(name)
		if r == nil || !r.Enabled() {
			continue
		}
		applies, err := r.Applies(ctx, field, value, f, annotation, useAnnotation)
		if err != nil {
			v.recordError(field, f, value, err)
			return nil, fmt.Errorf("validator: applicability check for %q: %w", field, err)
		}
		if !applies {
			continue
		}
		out, err := r.Invoke(ctx, field, value, f, extra)
		if err != nil {
			v.recordError(field, f, value, err)
			return nil, err
		}
		v.recordAttempt(field, f, out)
		return out, nil
	}
	if !strict {
		return value, nil
	}
	err := fmt.Errorf("validator: no rule applies to field %q; pass strict=false to accept the raw value", field)
	v.recordError(field, f, value, err)
	return nil, err
}

// ValidateResponse coerces a raw response into the form's requested
// fields and commits the result. A bare string becomes the single
// requested field's value, or goes through the formatter when several
// fields are requested. Response keys outside the requested set pass
// through unchanged.
func (v *Validator) ValidateResponse(ctx context.Context, f form.Form, response any, strict, useAnnotation bool) error {
	requested := f.RequestedFields()
	fields, err := v.responseFields(ctx, response, requested)
	if err != nil {
		return err
	}

	resolved := make(map[string]any, len(fields))
	for key, value := range fields {
		if contains(requested, key) {
			extra := rule.Options(f.ValidationOptions(key))
			if constraint, ok := constraintSet(f, key); ok {
				extra = extra.Merged(rule.Options{"keys": constraint})
			}
			value, err = v.ValidateField(ctx, key, value, f, strict, useAnnotation, extra)
			if err != nil {
				return err
			}
		}
		resolved[key] = value
	}
	return f.Fill(resolved)
}

// ValidateReport commits the given forms into the report. Field-level
// validation is assumed to have already happened per form.
func (v *Validator) ValidateReport(report *form.Report, forms []form.Form, strict bool) error {
	return report.Fill(forms, strict)
}

func (v *Validator) responseFields(ctx context.Context, response any, requested []string) (map[string]any, error) {
	switch resp := response.(type) {
	case map[string]any:
		return resp, nil
	case string:
		if len(requested) == 1 {
			return map[string]any{requested[0]: resp}, nil
		}
		if v.formatter == nil {
			return nil, fmt.Errorf("validator: string response with %d requested fields needs a formatter", len(requested))
		}
		fields, err := v.formatter(ctx, resp)
		if err != nil {
			return nil, fmt.Errorf("validator: format response: %w", err)
		}
		return fields, nil
	}
	return nil, fmt.Errorf("validator: response must be a string or a field map, got %T", response)
}

func constraintSet(f form.Form, field string) ([]string, bool) {
	for _, attr := range []string{"choices", "keys"} {
		if raw, ok := f.Attr(field, attr); ok {
			switch set := raw.(type) {
			case []string:
				return set, true
			case []any:
				out := make([]string, 0, len(set))
				for _, item := range set {
					out = append(out, fmt.Sprintf("%v", item))
				}
				return out, true
			}
		}
	}
	return nil, false
}

// AddRule instantiates and registers a new rule. The name must be free
// in both the active set and the rulebook.
func (v *Validator) AddRule(name string, checker rule.Checker, cfg rule.Config) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.active[name]; exists {
		return fmt.Errorf("validator: rule %q already exists", name)
	}
	r, err := rule.New(name, checker, cfg)
	if err != nil {
		return err
	}
	if err := v.book.Add(name, func() rule.Checker { return checker }, cfg); err != nil {
		return err
	}
	v.active[name] = r
	v.book.Bind(name, r)
	return nil
}

// RemoveRule drops a rule from the active set and the rulebook.
func (v *Validator) RemoveRule(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.active[name]; !exists {
		return fmt.Errorf("validator: rule %q does not exist", name)
	}
	if err := v.book.Remove(name); err != nil {
		return err
	}
	delete(v.active, name)
	return nil
}

// EnableRule marks a rule eligible for dispatch again.
func (v *Validator) EnableRule(name string) error {
	return v.setEnabled(name, true)
}

// DisableRule excludes a rule from dispatch without removing it.
func (v *Validator) DisableRule(name string) error {
	return v.setEnabled(name, false)
}

func (v *Validator) setEnabled(name string, enabled bool) error {
	r := v.activeRule(name)
	if r == nil {
		return fmt.Errorf("validator: rule %q does not exist", name)
	}
	r.SetEnabled(enabled)
	return nil
}

func (v *Validator) activeRule(name string) *rule.Rule {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active[name]
}

// Log returns a snapshot of the flat validation log.
func (v *Validator) Log() []Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Record, len(v.trail))
	copy(out, v.trail)
	return out
}

// Summarize partitions the log into attempts, errors, and successes.
func (v *Validator) Summarize() Summary {
	records := v.Log()
	s := Summary{TotalAttempts: len(records)}
	for _, record := range records {
		if record.Error != "" {
			s.Errors = append(s.Errors, record)
		} else {
			s.Successes = append(s.Successes, record)
		}
	}
	return s
}

func (v *Validator) recordAttempt(field string, f form.Form, value any) {
	v.append(Record{Field: field, FormID: f.ID(), Value: value, Timestamp: time.Now()})
}

func (v *Validator) recordError(field string, f form.Form, value any, err error) {
	v.append(Record{Field: field, FormID: f.ID(), Value: value, Error: err.Error(), Timestamp: time.Now()})
	v.log.Printf("field %s failed: %v", field, err)
}

func (v *Validator) append(r Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trail = append(v.trail, r)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
