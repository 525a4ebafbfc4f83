package approval

import "errors"

var (
	// ErrValidation is returned for malformed rule or plan input, before any state mutation
	ErrValidation = errors.New("validation failed")

	// ErrNotEligible is returned when the approver is not among the current step's resolved approvers
	ErrNotEligible = errors.New("approver not eligible for current step")

	// ErrAlreadyDecided is returned when the approver already recorded a decision for this step
	ErrAlreadyDecided = errors.New("approver already decided for this step")

	// ErrWorkflowTerminal is returned when a decision is submitted after the workflow left Pending
	ErrWorkflowTerminal = errors.New("workflow is terminal")

	// ErrUnresolvableApprover is returned when a rule selector resolves to zero approvers at plan build
	ErrUnresolvableApprover = errors.New("approver selector resolved to no users")

	// ErrConflict is returned when the ledger uniqueness constraint rejects a concurrent duplicate
	ErrConflict = errors.New("decision already recorded")

	// ErrConversionUnavailable is returned when the external currency converter fails
	ErrConversionUnavailable = errors.New("currency conversion unavailable")

	// ErrNotFound is returned when an entity, identity, or rule set does not exist
	ErrNotFound = errors.New("not found")
)
