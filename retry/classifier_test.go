package retry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultClassifier(t *testing.T, maxAttempts int) *RuleClassifier {
	t.Helper()
	c, err := NewRuleClassifier(DefaultRules(maxAttempts))
	require.NoError(t, err)
	return c
}

func TestNewRuleClassifierRejectsZeroAttempts(t *testing.T) {
	_, err := NewRuleClassifier(Rules{MaxAttempts: 0})
	assert.ErrorIs(t, err, ErrInvalidRules)
}

func TestClassify(t *testing.T) {
	c := newDefaultClassifier(t, 3)
	timeout := categorizedErr{c: Timeout}
	reset := categorizedErr{c: ConnectionReset}

	tests := []struct {
		name    string
		outcome Outcome
		kind    Kind
		reason  string
	}{
		{name: "200_success", outcome: Outcome{Attempt: 1, Status: 200}, kind: Success},
		{name: "204_success", outcome: Outcome{Attempt: 1, Status: 204}, kind: Success},
		{name: "2xx_success_on_last_attempt", outcome: Outcome{Attempt: 3, Status: 201}, kind: Success},
		{name: "404_stop", outcome: Outcome{Attempt: 1, Status: 404}, kind: Fatal, reason: ReasonStopStatus},
		{name: "418_not_retryable", outcome: Outcome{Attempt: 1, Status: 418}, kind: Fatal, reason: ReasonStatusNotRetry},
		{name: "302_not_retryable", outcome: Outcome{Attempt: 1, Status: 302}, kind: Fatal, reason: ReasonStatusNotRetry},
		{name: "503_retry", outcome: Outcome{Attempt: 1, Status: 503}, kind: Retry},
		{name: "503_budget_spent", outcome: Outcome{Attempt: 3, Status: 503}, kind: Fatal, reason: ReasonMaxAttempts},
		{name: "timeout_retry", outcome: Outcome{Attempt: 2, Err: timeout}, kind: Retry},
		{name: "timeout_budget_spent", outcome: Outcome{Attempt: 3, Err: timeout}, kind: Fatal, reason: ReasonMaxAttempts},
		{name: "reset_stop", outcome: Outcome{Attempt: 1, Err: reset}, kind: Fatal, reason: ReasonStopError},
		{name: "unknown_error", outcome: Outcome{Attempt: 1, Err: errors.New("boom")}, kind: Fatal, reason: ReasonErrorNotRetry},
		{name: "empty_outcome", outcome: Outcome{Attempt: 1}, kind: Fatal, reason: ReasonErrorNotRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify(tt.outcome)
			assert.Equal(t, tt.kind, res.Kind, res.Kind.String())
			assert.Equal(t, tt.reason, res.Reason)
		})
	}
}

func TestClassifyCarriesDetails(t *testing.T) {
	c := newDefaultClassifier(t, 2)

	res := c.Classify(Outcome{Attempt: 1, Status: 401})
	assert.Equal(t, 401, res.StatusCode)
	assert.NoError(t, res.Err)

	reset := categorizedErr{c: ConnectionReset}
	res = c.Classify(Outcome{Attempt: 1, Err: reset})
	assert.Equal(t, 0, res.StatusCode)
	assert.Equal(t, reset, res.Err)

	res = c.Classify(Outcome{Attempt: 2, Status: 502})
	assert.Equal(t, ReasonMaxAttempts, res.Reason)
	assert.Equal(t, 502, res.StatusCode)

	res = c.Classify(Outcome{Attempt: 1})
	assert.ErrorIs(t, res.Err, ErrEmptyOutcome)
}

func TestStopCodesTakePrecedence(t *testing.T) {
	rules := DefaultRules(5)
	rules.RetryStatusCodes = append(rules.RetryStatusCodes, 404)
	c, err := NewRuleClassifier(rules)
	require.NoError(t, err)

	res := c.Classify(Outcome{Attempt: 1, Status: 404})
	assert.Equal(t, Fatal, res.Kind)
	assert.Equal(t, ReasonStopStatus, res.Reason)
}

func TestClassifyIsPure(t *testing.T) {
	c := newDefaultClassifier(t, 4)
	o := Outcome{Attempt: 2, Status: 503}
	first := c.Classify(o)
	for range 10 {
		assert.Equal(t, first, c.Classify(o))
	}
}

func TestRulesAreCopied(t *testing.T) {
	rules := DefaultRules(2)
	c, err := NewRuleClassifier(rules)
	require.NoError(t, err)

	rules.StopStatusCodes[0] = 999
	assert.Equal(t, 400, c.Rules().StopStatusCodes[0])
	assert.Equal(t, 2, c.MaxAttempts())
}

func TestRulesWithDefaults(t *testing.T) {
	r := Rules{StopCategories: []Category{}}.WithDefaults()
	assert.Equal(t, DefaultRetryStatusCodes(), r.RetryStatusCodes)
	assert.Equal(t, DefaultStopStatusCodes(), r.StopStatusCodes)
	assert.Equal(t, DefaultRetryCategories(), r.RetryCategories)
	assert.Empty(t, r.StopCategories)
	assert.Equal(t, DefaultMaxAttempts, r.MaxAttempts)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "fatal", Fatal.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
