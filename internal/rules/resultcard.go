// internal/rules/resultcard.go
package rules

import (
	"math"
	"slices"
)

/*
 * Result aggregation.
 *
 * A ResultCard is created per evaluation pass and collects every rule
 * outcome: per-status attempt/pass tallies, the sets of achieved and failed
 * statuses, the failing RuleResults, and the abort signal. Only statuses
 * registered with RegisterStatuses are tallied.
 *
 * abortEvent is monotonic: once a failing abort-on-fail rule is registered
 * it stays set for the lifetime of the card.
 *
 * A card is not safe for concurrent use; each evaluation owns its card.
 */

// RuleResult records one failing rule evaluation.
type RuleResult struct {
	Rule        *Rule
	Failure     string
	AbortOnFail bool
}

// Field returns the field the error belongs to, "" for whole-entity.
func (r RuleResult) Field() string {
	if r.Rule == nil {
		return ""
	}
	return r.Rule.Field()
}

// ErrorMessage returns the message shown to users.
func (r RuleResult) ErrorMessage() string {
	if r.Rule == nil {
		return r.Failure
	}
	return r.Rule.ErrorMessage()
}

// StatusTally counts attempts and passes for one status.
type StatusTally struct {
	Attempts int
	Passes   int
}

// ResultCard aggregates rule outcomes for a single evaluation pass.
type ResultCard struct {
	tracked  []string
	tally    map[string]*StatusTally
	achieved []string
	failed   []string
	errors   []RuleResult
	abort    bool
}

// NewResultCard creates an empty card.
func NewResultCard() *ResultCard {
	return &ResultCard{tally: make(map[string]*StatusTally)}
}

// RegisterStatuses adds labels to the tracked set, keeping first-seen order.
func (c *ResultCard) RegisterStatuses(labels ...string) {
	for _, l := range labels {
		if _, ok := c.tally[l]; ok {
			continue
		}
		c.tracked = append(c.tracked, l)
		c.tally[l] = &StatusTally{}
	}
}

// RegisterPass records a passing evaluation of rule.
func (c *ResultCard) RegisterPass(rule *Rule) {
	c.register(rule, false, "", false)
}

// RegisterFailure records a failing evaluation of rule with its payload.
func (c *ResultCard) RegisterFailure(rule *Rule, failure string, abortOnFail bool) {
	c.register(rule, true, failure, abortOnFail)
}

func (c *ResultCard) register(rule *Rule, failed bool, failure string, abortOnFail bool) {
	var outcomes []string
	if rule != nil {
		outcomes = rule.Outcomes
	}
	for _, status := range outcomes {
		t, ok := c.tally[status]
		if !ok {
			continue
		}
		t.Attempts++
		if failed {
			c.failed = appendUnique(c.failed, status)
		} else {
			t.Passes++
			c.achieved = appendUnique(c.achieved, status)
		}
	}

	if !failed {
		return
	}
	c.errors = append(c.errors, RuleResult{Rule: rule, Failure: failure, AbortOnFail: abortOnFail})
	if abortOnFail {
		c.abort = true
	}
}

func appendUnique(set []string, s string) []string {
	if slices.Contains(set, s) {
		return set
	}
	return append(set, s)
}

// TrackedStatuses returns the tracked status labels in registration order.
func (c *ResultCard) TrackedStatuses() []string {
	return slices.Clone(c.tracked)
}

// AchievedStatuses returns statuses with at least one passing registration.
func (c *ResultCard) AchievedStatuses() []string {
	return slices.Clone(c.achieved)
}

// FailedStatuses returns statuses with at least one failing registration.
func (c *ResultCard) FailedStatuses() []string {
	return slices.Clone(c.failed)
}

// Tally returns the counters for label.
func (c *ResultCard) Tally(label string) (StatusTally, bool) {
	t, ok := c.tally[label]
	if !ok {
		return StatusTally{}, false
	}
	return *t, true
}

// StatusProgressPercentage returns round(passes/attempts*100) for label.
// Returns (0, false) when label is untracked or has no attempts.
func (c *ResultCard) StatusProgressPercentage(label string) (int, bool) {
	t, ok := c.tally[label]
	if !ok || t.Attempts == 0 {
		return 0, false
	}
	return int(math.Round(float64(t.Passes) / float64(t.Attempts) * 100)), true
}

// Errors returns the failing rule results in registration order.
func (c *ResultCard) Errors() []RuleResult {
	return slices.Clone(c.errors)
}

// AbortEvent reports whether a failing abort-on-fail rule was registered.
func (c *ResultCard) AbortEvent() bool {
	return c.abort
}

// Passed reports whether no rule failed.
func (c *ResultCard) Passed() bool {
	return len(c.errors) == 0
}
