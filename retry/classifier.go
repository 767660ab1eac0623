package retry

import "fmt"

// Classifier decides what to do with the outcome of one attempt.
type Classifier interface {
	Classify(Outcome) Result
}

// RuleClassifier classifies outcomes against a fixed Rules value.
type RuleClassifier struct {
	rules       Rules
	retryStatus map[int]struct{}
	stopStatus  map[int]struct{}
	retryErrors map[Category]struct{}
	stopErrors  map[Category]struct{}
}

var _ Classifier = (*RuleClassifier)(nil)

// NewRuleClassifier builds a classifier. The rules are copied, so later changes to
// the caller's slices have no effect.
func NewRuleClassifier(rules Rules) (*RuleClassifier, error) {
	if rules.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidRules, rules.MaxAttempts)
	}
	rules = rules.clone()
	return &RuleClassifier{
		rules:       rules,
		retryStatus: toSet(rules.RetryStatusCodes),
		stopStatus:  toSet(rules.StopStatusCodes),
		retryErrors: toSet(rules.RetryCategories),
		stopErrors:  toSet(rules.StopCategories),
	}, nil
}

// Rules returns a copy of the rules in use.
func (c *RuleClassifier) Rules() Rules {
	return c.rules.clone()
}

// MaxAttempts returns the attempt budget.
func (c *RuleClassifier) MaxAttempts() int {
	return c.rules.MaxAttempts
}

// Classify applies status checks, then error checks, then the attempt budget.
// The budget is spent once Outcome.Attempt reaches MaxAttempts.
func (c *RuleClassifier) Classify(o Outcome) Result {
	if o.HasResponse() {
		if o.Status >= 200 && o.Status < 300 {
			return succeeded()
		}
		if _, stop := c.stopStatus[o.Status]; stop {
			return fatal(ReasonStopStatus, o.Status, o.Err)
		}
		if _, retry := c.retryStatus[o.Status]; !retry {
			return fatal(ReasonStatusNotRetry, o.Status, o.Err)
		}
	} else {
		err := o.Err
		if err == nil {
			err = ErrEmptyOutcome
		}
		category := CategoryOf(err)
		if _, stop := c.stopErrors[category]; stop {
			return fatal(ReasonStopError, 0, err)
		}
		if _, retry := c.retryErrors[category]; !retry {
			return fatal(ReasonErrorNotRetry, 0, err)
		}
	}

	if o.Attempt >= c.rules.MaxAttempts {
		return fatal(ReasonMaxAttempts, o.Status, o.Err)
	}
	return retrying()
}

func toSet[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
