// Package recurrence turns declarative repetition rules into concrete
// calendar dates and task instances. Every method on Engine is a pure
// function over its arguments; concurrent use needs no coordination.
package recurrence

// Engine evaluates recurrence rules against an injected calendar policy.
type Engine struct {
	policy CalendarPolicy
}

func NewEngine(policy CalendarPolicy) *Engine {
	return &Engine{policy: policy}
}
