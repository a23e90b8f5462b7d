package rule

import (
	"context"
	"fmt"

	"github.com/kestrelworks/sluice/internal/coerce"
)

// The shape every tool-call entry must carry.
var actionRequestKeys = []string{"function", "arguments"}

// ActionRequestChecker accepts a list of well-formed tool-call
// mappings, each carrying at least "function" and "arguments". The fix
// path parses JSON-ish input into candidate mappings and keeps the
// well-formed ones; with the "discard" option off, one malformed entry
// fails the whole repair.
type ActionRequestChecker struct{}

func (ActionRequestChecker) Name() string { return "action_request" }

func (ActionRequestChecker) Validate(_ context.Context, value any, _ Options) (any, error) {
	entries, ok := value.([]map[string]any)
	if !ok {
		generic, isList := value.([]any)
		if !isList {
			return nil, fmt.Errorf("rule: action request must be a list of mappings, got %T", value)
		}
		entries = make([]map[string]any, 0, len(generic))
		for _, item := range generic {
			m, isMap := item.(map[string]any)
			if !isMap {
				return nil, fmt.Errorf("rule: action request entry is %T, not a mapping", item)
			}
			entries = append(entries, m)
		}
	}
	for i, entry := range entries {
		if !wellFormedRequest(entry) {
			return nil, fmt.Errorf("rule: action request entry %d is missing function/arguments", i)
		}
	}
	return entries, nil
}

func (ActionRequestChecker) Fix(_ context.Context, value any, opts Options) (any, error) {
	discard := opts.Bool("discard", true)
	candidates, err := requestCandidates(value)
	if err != nil {
		return nil, err
	}
	corrected := make([]map[string]any, 0, len(candidates))
	for i, candidate := range candidates {
		m, err := coerce.Mapping(candidate)
		if err != nil || !wellFormedRequest(m) {
			if discard {
				continue
			}
			return nil, fmt.Errorf("rule: malformed action request entry %d: %v", i, candidate)
		}
		corrected = append(corrected, m)
	}
	return corrected, nil
}

func requestCandidates(value any) ([]any, error) {
	switch t := value.(type) {
	case []any:
		return t, nil
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out, nil
	case map[string]any:
		return []any{t}, nil
	case string:
		m, err := coerce.Mapping(t)
		if err != nil {
			return nil, fmt.Errorf("rule: cannot parse action request text: %w", err)
		}
		return []any{m}, nil
	}
	return nil, fmt.Errorf("rule: cannot repair action request of type %T", value)
}

func wellFormedRequest(m map[string]any) bool {
	for _, key := range actionRequestKeys {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}
