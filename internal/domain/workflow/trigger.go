package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	// TriggerAdvance fires when the current step's predicate is satisfied and
	// more steps remain in the plan.
	TriggerAdvance Trigger = "ADVANCE"

	// TriggerComplete fires when the last step's predicate is satisfied.
	TriggerComplete Trigger = "COMPLETE"

	// TriggerShortCircuit fires when a short-circuit step is approved,
	// bypassing the remainder of the plan.
	TriggerShortCircuit Trigger = "SHORT_CIRCUIT"

	// TriggerFail fires when the current step's predicate becomes
	// permanently unsatisfiable.
	TriggerFail Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
