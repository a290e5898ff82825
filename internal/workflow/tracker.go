// Package workflow tracks the progress of multi-step tool executions so a
// failure can be attributed to the step that was active when it happened.
package workflow

import (
	"encoding/json"
	"fmt"
)

// Step names one stage of a tool's execution, e.g. "quote" or "confirmation".
type Step string

// Steps used by the funds-moving tools.
const (
	StepQuote        Step = "quote"
	StepWallet       Step = "wallet"
	StepTransaction  Step = "transaction"
	StepConfirmation Step = "confirmation"
)

// Tracker records the current step of an invocation, the detail gathered so
// far, and the first error encountered. Once an error is recorded the step
// pointer no longer advances.
type Tracker struct {
	step    Step
	detail  map[string]any
	failed  bool
	failure string
}

// NewTracker starts a tracker at the given initial step.
func NewTracker(initial Step) *Tracker {
	return &Tracker{
		step:   initial,
		detail: make(map[string]any),
	}
}

// Advance moves the tracker to the next step and merges detail into the
// accumulated payload. Later keys win on conflict. Advancing after a failure
// is a no-op so the reported step stays the one active at the time of error.
func (t *Tracker) Advance(step Step, detail map[string]any) {
	if t.failed {
		return
	}
	t.step = step
	t.merge(detail)
}

// Record merges detail into the current step without advancing.
func (t *Tracker) Record(detail map[string]any) {
	if t.failed {
		return
	}
	t.merge(detail)
}

// Fail records the first error message and freezes the step pointer.
func (t *Tracker) Fail(message string) {
	if t.failed {
		return
	}
	t.failed = true
	t.failure = message
}

// Step returns the step that is (or was, on failure) active.
func (t *Tracker) Step() Step {
	return t.step
}

// Failed reports whether an error has been recorded.
func (t *Tracker) Failed() bool {
	return t.failed
}

// FailureMessage returns the attributed failure line, empty when no error
// has been recorded.
func (t *Tracker) FailureMessage() string {
	if !t.failed {
		return ""
	}
	return fmt.Sprintf("operation failed at step %s: %s", t.step, t.failure)
}

// Detail returns a copy of the accumulated detail payload.
func (t *Tracker) Detail() map[string]any {
	clone := make(map[string]any, len(t.detail))
	for k, v := range t.detail {
		clone[k] = v
	}
	return clone
}

// Summarize renders the invocation outcome: the attributed failure line on
// error, otherwise the accumulated detail as compact JSON.
func (t *Tracker) Summarize() string {
	if t.failed {
		return t.FailureMessage()
	}
	encoded, err := json.Marshal(t.detail)
	if err != nil {
		return fmt.Sprintf("operation completed at step %s", t.step)
	}
	return string(encoded)
}

func (t *Tracker) merge(detail map[string]any) {
	for k, v := range detail {
		t.detail[k] = v
	}
}
