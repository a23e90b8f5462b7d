package coerce

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoolean(t *testing.T) {
	cases := []struct {
		in   any
		want bool
		ok   bool
	}{
		{true, true, true},
		{false, false, true},
		{"Yes", true, true},
		{"TRUE", true, true},
		{"1", true, true},
		{"correct", true, true},
		{"No", false, true},
		{"n/a", false, true},
		{"None", false, true},
		{"0", false, true},
		{"maybe", false, false},
		{3.2, false, false},
	}
	for _, tc := range cases {
		got, err := Boolean(tc.in)
		if !tc.ok {
			assert.Error(t, err, "input %v", tc.in)
			continue
		}
		require.NoError(t, err, "input %v", tc.in)
		assert.Equal(t, tc.want, got, "input %v", tc.in)
	}
}

func TestNumberFromText(t *testing.T) {
	got, err := Number("score: 7.5", NumberOptions{Kind: KindFloat})
	require.NoError(t, err)
	assert.Equal(t, 7.5, got)

	got, err = Number("about 2/3 of the total", NumberOptions{Kind: KindFloat})
	require.NoError(t, err)
	assert.InDelta(t, 0.6667, got.(float64), 0.001)

	got, err = Number("answer is -12", NumberOptions{Kind: KindInt})
	require.NoError(t, err)
	assert.Equal(t, -12, got)

	_, err = Number("no digits here", NumberOptions{})
	assert.Error(t, err)
}

func TestNumberPrecisionAndBounds(t *testing.T) {
	precision := 2
	got, err := Number("3.14159", NumberOptions{Kind: KindFloat, Precision: &precision})
	require.NoError(t, err)
	assert.Equal(t, 3.14, got)

	upper := 10.0
	_, err = Number(11, NumberOptions{Kind: KindFloat, UpperBound: &upper})
	assert.Error(t, err)

	lower := 0.0
	_, err = Number(-1, NumberOptions{Kind: KindFloat, LowerBound: &lower})
	assert.Error(t, err)

	got, err = Number(7, NumberOptions{Kind: KindFloat, UpperBound: &upper, LowerBound: &lower})
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
}

func TestFuzzyParseMapping(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want map[string]any
	}{
		{
			name: "clean json",
			in:   `{"function": "search", "arguments": {"q": "go"}}`,
			want: map[string]any{"function": "search", "arguments": map[string]any{"q": "go"}},
		},
		{
			name: "single quotes",
			in:   `{'function': 'search', 'arguments': {'q': 'go'}}`,
			want: map[string]any{"function": "search", "arguments": map[string]any{"q": "go"}},
		},
		{
			name: "markdown fence",
			in:   "Here you go:\n```json\n{\"answer\": 42}\n```\nDone.",
			want: map[string]any{"answer": float64(42)},
		},
		{
			name: "python literals",
			in:   `{'valid': True, 'note': None}`,
			want: map[string]any{"valid": true, "note": nil},
		},
		{
			name: "unclosed bracket",
			in:   `{"items": [1, 2, 3`,
			want: map[string]any{"items": []any{float64(1), float64(2), float64(3)}},
		},
		{
			name: "surrounding prose",
			in:   `The result is {"status": "ok"} as requested.`,
			want: map[string]any{"status": "ok"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FuzzyParseMapping(tc.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFuzzyParseMappingRejectsGarbage(t *testing.T) {
	_, err := FuzzyParseMapping("not a mapping at all")
	assert.Error(t, err)
}

func TestReconcileKeys(t *testing.T) {
	got := ReconcileKeys(
		map[string]any{"function": "search", "argument": map[string]any{"q": "go"}, "extra": 1},
		[]string{"function", "arguments"},
	)
	require.Len(t, got, 2)
	assert.Equal(t, "search", got["function"])
	assert.Equal(t, map[string]any{"q": "go"}, got["arguments"])
}

func TestReconcileKeysFillsMissing(t *testing.T) {
	got := ReconcileKeys(map[string]any{}, []string{"function", "arguments"})
	require.Len(t, got, 2)
	assert.Nil(t, got["function"])
	assert.Nil(t, got["arguments"])
}

func TestMostSimilar(t *testing.T) {
	choice, ok := MostSimilar("blu", []string{"red", "blue", "green"})
	require.True(t, ok)
	assert.Equal(t, "blue", choice)

	// No subsequence match: falls back to edit distance.
	choice, ok = MostSimilar("funcshun", []string{"function", "arguments"})
	require.True(t, ok)
	assert.Equal(t, "function", choice)

	_, ok = MostSimilar("anything", nil)
	assert.False(t, ok)
}

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "plain", String("plain"))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "42", String(42))
	assert.Equal(t, `{"k":"v"}`, String(map[string]any{"k": "v"}))
}
