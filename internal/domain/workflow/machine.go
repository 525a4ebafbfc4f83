package workflow

import "context"

// TransitionListener is invoked after a successful transition. Listeners run
// synchronously in registration order; they must not block.
type TransitionListener func(ctx context.Context, from, to State, trigger Trigger)

// StateMachine tracks the current lifecycle state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger

	// Subscribe registers a listener invoked after every successful transition
	Subscribe(listener TransitionListener)
}
