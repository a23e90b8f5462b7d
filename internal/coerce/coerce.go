// internal/coerce/coerce.go
//
// Coercion helpers used by rule fix paths: turning loosely structured
// model output into strings, numbers, and key/value mappings.

package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// String renders any value as text. Mappings and sequences are rendered
// as JSON so the result stays machine-recoverable.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}
	switch v.(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

// StripLower trims and lowercases the textual form of a value.
func StripLower(v any) string {
	return strings.ToLower(strings.TrimSpace(String(v)))
}

// Boolean maps truthy and falsy spellings onto native booleans.
func Boolean(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	switch StripLower(v) {
	case "true", "1", "correct", "yes":
		return true, nil
	case "false", "0", "incorrect", "no", "none", "n/a":
		return false, nil
	}
	return false, fmt.Errorf("coerce: cannot convert %v into a boolean", v)
}

// NumberKind selects the numeric type a coercion should produce.
type NumberKind string

const (
	KindInt   NumberKind = "int"
	KindFloat NumberKind = "float"
)

// NumberOptions bound and shape a numeric coercion.
type NumberOptions struct {
	Kind       NumberKind
	Precision  *int
	UpperBound *float64
	LowerBound *float64
}

var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?(?:[eE][+-]?\d+)?(?:\s*/\s*-?\d+(?:\.\d+)?)?`)

// Number extracts a numeric value. Native numbers convert directly;
// text is scanned for its first numeric token, including fractions like
// "2/3". Bounds are inclusive-exclusive per the configured limits:
// values above UpperBound or below LowerBound are rejected.
func Number(v any, opts NumberOptions) (any, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if opts.UpperBound != nil && f > *opts.UpperBound {
		return nil, fmt.Errorf("coerce: %v exceeds upper bound %v", f, *opts.UpperBound)
	}
	if opts.LowerBound != nil && f < *opts.LowerBound {
		return nil, fmt.Errorf("coerce: %v below lower bound %v", f, *opts.LowerBound)
	}
	if opts.Kind == KindInt {
		return int(math.Round(f)), nil
	}
	if opts.Precision != nil {
		scale := math.Pow10(*opts.Precision)
		f = math.Round(f*scale) / scale
	}
	return f, nil
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int8:
		return float64(t), nil
	case int16:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case bool:
		return 0, fmt.Errorf("coerce: cannot treat boolean as number")
	}
	text := String(v)
	token := numberPattern.FindString(text)
	if token == "" {
		return 0, fmt.Errorf("coerce: no numeric value found in %q", text)
	}
	if num, den, ok := strings.Cut(token, "/"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("coerce: parse %q: %w", token, err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil {
			return 0, fmt.Errorf("coerce: parse %q: %w", token, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("coerce: division by zero in %q", token)
		}
		return n / d, nil
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("coerce: parse %q: %w", token, err)
	}
	return f, nil
}

// Mapping turns a value into a string-keyed map. Strings go through the
// fuzzy JSON parser; other values take a JSON round trip.
func Mapping(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[String(k)] = val
		}
		return out, nil
	case string:
		return FuzzyParseMapping(t)
	case []byte:
		return FuzzyParseMapping(string(t))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("coerce: cannot convert %T into a mapping: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("coerce: cannot convert %T into a mapping: %w", v, err)
	}
	return out, nil
}

var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// FuzzyParseMapping parses JSON-ish text into a map, repairing the
// defects model output commonly carries: surrounding prose, markdown
// fences, single quotes, python literals, and unclosed brackets.
func FuzzyParseMapping(text string) (map[string]any, error) {
	candidates := []string{strings.TrimSpace(text)}
	if m := codeBlockPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	for _, candidate := range candidates {
		for _, variant := range repairVariants(candidate) {
			var out map[string]any
			if err := json.Unmarshal([]byte(variant), &out); err == nil {
				return out, nil
			}
		}
	}
	return nil, fmt.Errorf("coerce: cannot parse %q as a mapping", text)
}

func repairVariants(s string) []string {
	variants := []string{s}
	quoted := strings.ReplaceAll(s, "'", `"`)
	if quoted != s {
		variants = append(variants, quoted)
	}
	python := pythonLiterals(quoted)
	if python != quoted {
		variants = append(variants, python)
	}
	if closed := closeBrackets(python); closed != python {
		variants = append(variants, closed)
	}
	return variants
}

func pythonLiterals(s string) string {
	s = strings.ReplaceAll(s, "True", "true")
	s = strings.ReplaceAll(s, "False", "false")
	s = strings.ReplaceAll(s, "None", "null")
	return s
}

// closeBrackets appends closers for any brackets left open, skipping
// string contents. Mismatched closers make the input unrecoverable and
// it is returned unchanged.
func closeBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) == 0 {
				return s
			}
			open := stack[len(stack)-1]
			if (c == '}' && open != '{') || (c == ']' && open != '[') {
				return s
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) == 0 {
		return s
	}
	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
