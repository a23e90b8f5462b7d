package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/sluice/internal/form"
	"github.com/kestrelworks/sluice/internal/rule"
)

type stubChecker struct {
	name        string
	validateErr error
	fixed       any
}

func (c *stubChecker) Name() string { return c.name }

func (c *stubChecker) Validate(_ context.Context, value any, _ rule.Options) (any, error) {
	if c.validateErr != nil {
		return nil, c.validateErr
	}
	return value, nil
}

func (c *stubChecker) Fix(_ context.Context, _ any, _ rule.Options) (any, error) {
	return c.fixed, nil
}

func twoRuleBook(t *testing.T) *rule.RuleBook {
	t.Helper()
	book, err := rule.NewRuleBook(
		map[string]rule.Factory{
			"first":  func() rule.Checker { return &stubChecker{name: "first"} },
			"second": func() rule.Checker { return &stubChecker{name: "second"} },
		},
		[]string{"first", "second"},
		map[string]rule.Config{
			"first":  {Fields: []string{"answer"}},
			"second": {Fields: []string{"answer"}},
		},
	)
	require.NoError(t, err)
	return book
}

func answerForm(t *testing.T) *form.BaseForm {
	t.Helper()
	f, err := form.NewBaseForm(form.Field{Name: "answer", Annotation: []string{"str"}})
	require.NoError(t, err)
	return f
}

func TestFirstApplicableRuleWins(t *testing.T) {
	book := twoRuleBook(t)
	v, err := New(WithRuleBook(book))
	require.NoError(t, err)

	f := answerForm(t)
	out, err := v.ValidateField(context.Background(), "answer", "yes", f, true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "yes", out)

	applied := book.InvokedLog()
	require.Len(t, applied, 1)

	_, _, ok := book.Get("second")
	require.True(t, ok)
	// The second rule also claims the field but must never see it.
	assert.Equal(t, 1, len(book.AppliedLog()), "dispatch stops at the first claimant")
}

func TestFirstRuleFailureIsFinal(t *testing.T) {
	boom := errors.New("bad value")
	book, err := rule.NewRuleBook(
		map[string]rule.Factory{
			"first":  func() rule.Checker { return &stubChecker{name: "first", validateErr: boom} },
			"second": func() rule.Checker { return &stubChecker{name: "second"} },
		},
		[]string{"first", "second"},
		map[string]rule.Config{
			"first":  {Fields: []string{"answer"}},
			"second": {Fields: []string{"answer"}},
		},
	)
	require.NoError(t, err)
	v, err := New(WithRuleBook(book))
	require.NoError(t, err)

	_, err = v.ValidateField(context.Background(), "answer", "nope", answerForm(t), true, true, nil)
	require.Error(t, err, "a failed claimant must not fall through to later rules")

	var fe *rule.FieldError
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, "first", fe.Rule)
}

func TestUnclaimedFieldPassthrough(t *testing.T) {
	v, err := New(WithRuleBook(twoRuleBook(t)))
	require.NoError(t, err)

	f, err := form.NewBaseForm(form.Field{Name: "note"})
	require.NoError(t, err)

	out, err := v.ValidateField(context.Background(), "note", 42, f, false, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, out, "strict=false passes unclaimed values through")

	_, err = v.ValidateField(context.Background(), "note", 42, f, true, true, nil)
	assert.Error(t, err, "strict=true rejects unclaimed fields")
}

func TestDisabledRuleIsSkipped(t *testing.T) {
	book := twoRuleBook(t)
	v, err := New(WithRuleBook(book))
	require.NoError(t, err)
	require.NoError(t, v.DisableRule("first"))

	_, err = v.ValidateField(context.Background(), "answer", "yes", answerForm(t), true, true, nil)
	require.NoError(t, err)

	invoked := book.InvokedLog()
	require.Len(t, invoked, 1, "the second rule takes over when the first is disabled")

	require.NoError(t, v.EnableRule("first"))
	assert.Error(t, v.EnableRule("ghost"))
}

func TestValidateResponseSingleFieldString(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	f, err := form.NewBaseForm(form.Field{Name: "confirmed", Annotation: []string{"bool"}})
	require.NoError(t, err)

	require.NoError(t, v.ValidateResponse(context.Background(), f, "Yes", true, true))
	got, ok := f.Value("confirmed")
	require.True(t, ok)
	assert.Equal(t, true, got, "bare string routes to the single requested field and repairs to a bool")
}

func TestValidateResponseMapWithChoices(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	f, err := form.NewBaseForm(
		form.Field{Name: "decision", Annotation: []string{"enum"}, Choices: []string{"approve", "reject"}},
		form.Field{Name: "score", Annotation: []string{"float"}},
	)
	require.NoError(t, err)

	err = v.ValidateResponse(context.Background(), f, map[string]any{
		"decision": "aprove",
		"score":    "confidence: 0.87",
		"debug":    "raw trace",
	}, true, true)
	require.NoError(t, err)

	decision, _ := f.Value("decision")
	assert.Equal(t, "approve", decision)
	score, _ := f.Value("score")
	assert.Equal(t, 0.87, score)
	debug, _ := f.Value("debug")
	assert.Equal(t, "raw trace", debug, "non-requested keys pass through untouched")
}

func TestValidateResponseFormatter(t *testing.T) {
	formatter := func(_ context.Context, response string) (map[string]any, error) {
		return map[string]any{"a": response, "b": "1"}, nil
	}
	v, err := New(WithFormatter(formatter))
	require.NoError(t, err)

	f, err := form.NewBaseForm(
		form.Field{Name: "a", Annotation: []string{"str"}},
		form.Field{Name: "b", Annotation: []string{"int"}, Options: map[string]any{"num_type": "int"}},
	)
	require.NoError(t, err)

	require.NoError(t, v.ValidateResponse(context.Background(), f, "payload", true, true))
	b, _ := f.Value("b")
	assert.Equal(t, 1, b)
}

func TestValidateResponseMultiFieldStringWithoutFormatter(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	f, err := form.NewBaseForm(form.Field{Name: "a"}, form.Field{Name: "b"})
	require.NoError(t, err)

	err = v.ValidateResponse(context.Background(), f, "unparsed", false, true)
	assert.Error(t, err)
}

func TestAddRemoveRule(t *testing.T) {
	v, err := New(WithRuleBook(twoRuleBook(t)))
	require.NoError(t, err)

	err = v.AddRule("third", &stubChecker{name: "third"}, rule.Config{Fields: []string{"extra"}})
	require.NoError(t, err)
	assert.Contains(t, v.ActiveRules(), "third")

	err = v.AddRule("third", &stubChecker{name: "third"}, rule.Config{})
	assert.Error(t, err, "duplicate names collide")

	require.NoError(t, v.RemoveRule("third"))
	assert.NotContains(t, v.ActiveRules(), "third")
	assert.Error(t, v.RemoveRule("third"))
}

func TestLogSummary(t *testing.T) {
	v, err := New(WithRuleBook(twoRuleBook(t)))
	require.NoError(t, err)

	f := answerForm(t)
	_, err = v.ValidateField(context.Background(), "answer", "ok", f, true, true, nil)
	require.NoError(t, err)
	_, err = v.ValidateField(context.Background(), "missing", "x", f, true, true, nil)
	require.Error(t, err)

	s := v.Summarize()
	assert.Equal(t, 2, s.TotalAttempts)
	assert.Len(t, s.Successes, 1)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "missing", s.Errors[0].Field)
}
