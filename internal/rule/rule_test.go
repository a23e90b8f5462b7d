package rule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	validateErr   error
	fixResult     any
	fixErr        error
	validateCalls int
	fixCalls      int
}

func (c *countingChecker) Name() string { return "counting" }

func (c *countingChecker) Validate(_ context.Context, value any, _ Options) (any, error) {
	c.validateCalls++
	if c.validateErr != nil {
		return nil, c.validateErr
	}
	return value, nil
}

func (c *countingChecker) Fix(_ context.Context, _ any, _ Options) (any, error) {
	c.fixCalls++
	return c.fixResult, c.fixErr
}

type fakeForm struct{ id string }

func (f fakeForm) ID() string { return f.id }

func TestAppliesByExplicitField(t *testing.T) {
	r, err := New("test", &countingChecker{}, Config{Fields: []string{"answer"}})
	require.NoError(t, err)

	ok, err := r.Applies(context.Background(), "answer", "v", fakeForm{id: "f1"}, nil, true)
	require.NoError(t, err)
	assert.True(t, ok, "explicit field must apply regardless of annotation")

	ok, err = r.Applies(context.Background(), "other", "v", fakeForm{id: "f1"}, nil, true)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Len(t, r.AppliedLog(), 2, "every applicability check is recorded")
	assert.Equal(t, "f1", r.AppliedLog()[0].FormID)
}

func TestAppliesByAnnotation(t *testing.T) {
	r, err := New("test", &countingChecker{}, Config{
		ApplyTypes:   []string{"int", "float"},
		ExcludeTypes: []string{"float"},
	})
	require.NoError(t, err)

	ok, err := r.Applies(context.Background(), "n", 1, nil, []string{"int"}, true)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Applies(context.Background(), "n", 1.0, nil, []string{"float"}, true)
	require.NoError(t, err)
	assert.False(t, ok, "excluded tag must veto the claim")

	ok, err = r.Applies(context.Background(), "n", "x", nil, []string{"str"}, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppliesConditionFallback(t *testing.T) {
	called := false
	r, err := New("test", &countingChecker{}, Config{
		ApplyTypes: []string{"int"},
		Condition: func(_ context.Context, field string, _ any, _ FormRef) (bool, error) {
			called = true
			return field == "special", nil
		},
	})
	require.NoError(t, err)

	// Annotation dispatch disabled: the condition decides.
	ok, err := r.Applies(context.Background(), "special", "v", nil, []string{"int"}, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, called)

	bare, err := New("bare", &countingChecker{}, Config{ApplyTypes: []string{"int"}})
	require.NoError(t, err)
	ok, err = bare.Applies(context.Background(), "special", "v", nil, []string{"int"}, false)
	require.NoError(t, err)
	assert.False(t, ok, "default condition never applies")
}

func TestInvokeSuccessSkipsFix(t *testing.T) {
	checker := &countingChecker{}
	r, err := New("test", checker, Config{Fix: true})
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), "f", "value", fakeForm{id: "f2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "value", out)
	assert.Zero(t, checker.fixCalls)
	assert.Len(t, r.InvokedLog(), 1)
}

func TestInvokeFixDisabledFailsImmediately(t *testing.T) {
	checker := &countingChecker{validateErr: errors.New("bad value")}
	r, err := New("test", checker, Config{Fix: false})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "f", "value", nil, nil)
	require.Error(t, err)
	assert.Zero(t, checker.fixCalls, "fix must not run when disabled")

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "f", fieldErr.Field)
	assert.Empty(t, r.InvokedLog(), "failed invocation is not logged as invoked")
}

func TestInvokeFixRepairsOnce(t *testing.T) {
	checker := &countingChecker{validateErr: errors.New("bad value"), fixResult: "repaired"}
	r, err := New("test", checker, Config{Fix: true})
	require.NoError(t, err)

	out, err := r.Invoke(context.Background(), "f", "value", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "repaired", out)
	assert.Equal(t, 1, checker.fixCalls)
	assert.Len(t, r.InvokedLog(), 1)
}

func TestInvokeFixFailureWrapsBothErrors(t *testing.T) {
	validateErr := errors.New("original failure")
	fixErr := errors.New("repair failure")
	checker := &countingChecker{validateErr: validateErr, fixErr: fixErr}
	r, err := New("test", checker, Config{Fix: true})
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "f", "value", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, validateErr)
	assert.ErrorIs(t, err, fixErr)
}

func TestEnabledFlag(t *testing.T) {
	r, err := New("test", &countingChecker{}, Config{})
	require.NoError(t, err)
	assert.True(t, r.Enabled())
	r.SetEnabled(false)
	assert.False(t, r.Enabled())
}
