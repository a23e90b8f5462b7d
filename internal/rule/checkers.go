// internal/rule/checkers.go
//
// The built-in checkers. Validation accepts values already in the right
// shape; the fix paths coerce the loosely structured text models emit.

package rule

import (
	"context"
	"fmt"

	"github.com/kestrelworks/sluice/internal/coerce"
)

// BooleanChecker accepts native booleans; its fix path maps common
// truthy/falsy spellings.
type BooleanChecker struct{}

func (BooleanChecker) Name() string { return "boolean" }

func (BooleanChecker) Validate(_ context.Context, value any, _ Options) (any, error) {
	if b, ok := value.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("rule: %T is not a boolean", value)
}

func (BooleanChecker) Fix(_ context.Context, value any, _ Options) (any, error) {
	return coerce.Boolean(value)
}

// NumberChecker accepts native numeric values; its fix path parses
// numeric text honoring num_type, precision, upper_bound and
// lower_bound options.
type NumberChecker struct{}

func (NumberChecker) Name() string { return "number" }

func (NumberChecker) Validate(_ context.Context, value any, _ Options) (any, error) {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return value, nil
	}
	return nil, fmt.Errorf("rule: %T is not numeric", value)
}

func (NumberChecker) Fix(_ context.Context, value any, opts Options) (any, error) {
	numOpts := coerce.NumberOptions{Kind: coerce.KindFloat}
	if kind, ok := opts.String("num_type"); ok {
		numOpts.Kind = coerce.NumberKind(kind)
	}
	if precision, ok := opts.Int("precision"); ok {
		numOpts.Precision = &precision
	}
	if upper, ok := opts.Float("upper_bound"); ok {
		numOpts.UpperBound = &upper
	}
	if lower, ok := opts.Float("lower_bound"); ok {
		numOpts.LowerBound = &lower
	}
	return coerce.Number(value, numOpts)
}

// StringChecker accepts native strings, the empty string included; its
// fix path stringifies arbitrary values.
type StringChecker struct{}

func (StringChecker) Name() string { return "string" }

func (StringChecker) Validate(_ context.Context, value any, _ Options) (any, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return nil, fmt.Errorf("rule: %T is not a string", value)
}

func (StringChecker) Fix(_ context.Context, value any, _ Options) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("rule: cannot stringify nil")
	}
	return coerce.String(value), nil
}

// MappingChecker accepts string-keyed mappings. With a "keys" option
// set, the present keys must equal the required set exactly; the fix
// path parses JSON-ish input and force-reconciles mismatched keys.
type MappingChecker struct{}

func (MappingChecker) Name() string { return "mapping" }

func (MappingChecker) Validate(_ context.Context, value any, opts Options) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rule: %T is not a mapping", value)
	}
	keys := opts.Strings("keys")
	if len(keys) == 0 {
		return m, nil
	}
	if len(m) != len(keys) {
		return nil, fmt.Errorf("rule: mapping has %d keys, want exactly %d", len(m), len(keys))
	}
	for _, key := range keys {
		if _, present := m[key]; !present {
			return nil, fmt.Errorf("rule: mapping is missing required key %q", key)
		}
	}
	return m, nil
}

func (MappingChecker) Fix(_ context.Context, value any, opts Options) (any, error) {
	m, err := coerce.Mapping(value)
	if err != nil {
		return nil, err
	}
	keys := opts.Strings("keys")
	if len(keys) == 0 {
		return m, nil
	}
	return coerce.ReconcileKeys(m, keys), nil
}

// ChoiceChecker accepts values belonging to a fixed choice set (the
// "keys" option); its fix path substitutes the closest match by string
// similarity.
type ChoiceChecker struct{}

func (ChoiceChecker) Name() string { return "choice" }

func (ChoiceChecker) Validate(_ context.Context, value any, opts Options) (any, error) {
	choices := opts.Strings("keys")
	if len(choices) == 0 {
		return nil, fmt.Errorf("rule: no choices configured")
	}
	text := coerce.String(value)
	for _, choice := range choices {
		if text == choice {
			return value, nil
		}
	}
	return nil, fmt.Errorf("rule: %q is not one of %v", text, choices)
}

func (ChoiceChecker) Fix(_ context.Context, value any, opts Options) (any, error) {
	choices := opts.Strings("keys")
	best, ok := coerce.MostSimilar(coerce.String(value), choices)
	if !ok {
		return nil, fmt.Errorf("rule: no choices to match %v against", value)
	}
	return best, nil
}
